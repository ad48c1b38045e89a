package utils

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Paginate returns the lines on page (1-based), the clamped page and the
// page count.
func Paginate(lines []string, page, perPage int) ([]string, int, int) {
	if perPage <= 0 {
		perPage = 20
	}
	total := max((len(lines)+perPage-1)/perPage, 1)
	page = min(max(page, 1), total)
	start := (page - 1) * perPage
	end := min(start+perPage, len(lines))
	if start >= len(lines) {
		return nil, page, total
	}
	return lines[start:end], page, total
}

// CreatePaginationComponents creates previous/next buttons whose custom IDs
// are "<prefix>:<page>". The middle button shows the position and is inert.
func CreatePaginationComponents(currentPage, totalPages int, prefix string) []discordgo.MessageComponent {
	if totalPages <= 1 {
		return nil
	}
	pageID := func(p int) string { return fmt.Sprintf("%s:%d", prefix, p) }

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Anterior",
					Style:    discordgo.SecondaryButton,
					Disabled: currentPage == 1,
					CustomID: pageID(currentPage - 1),
				},
				discordgo.Button{
					Label:    fmt.Sprintf("%d/%d", currentPage, totalPages),
					Style:    discordgo.SecondaryButton,
					Disabled: true,
					CustomID: prefix + ":page",
				},
				discordgo.Button{
					Label:    "Siguiente",
					Style:    discordgo.SecondaryButton,
					Disabled: currentPage == totalPages,
					CustomID: pageID(currentPage + 1),
				},
			},
		},
	}
}
