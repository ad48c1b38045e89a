package router

import (
	"fmt"
	"sort"
	"strings"

	"ceniza-bot/utils"
)

const (
	DefaultContextChars = 2600
	DefaultContextLines = 80
)

type scoredLine struct {
	line  string
	score int
}

// CompileContext dedupes the configured server context lines, ranks them and
// renders the best ones as a "- " list that fits maxChars and maxLines.
// Lines sharing words with query rank higher. A trailing note says how many
// lines were left out.
func CompileContext(lines []string, query string, maxChars, maxLines int) string {
	if maxChars <= 0 {
		maxChars = DefaultContextChars
	}
	if maxLines <= 0 {
		maxLines = DefaultContextLines
	}

	queryWords := make(map[string]bool)
	for _, w := range strings.Fields(utils.Normalize(query)) {
		if len([]rune(w)) > 2 {
			queryWords[w] = true
		}
	}

	seen := make(map[string]bool)
	var scored []scoredLine
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := utils.Normalize(l)
		if seen[key] {
			continue
		}
		seen[key] = true
		scored = append(scored, scoredLine{line: l, score: scoreLine(l, queryWords)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var out []string
	chars := 0
	for _, s := range scored {
		if len(out) >= maxLines {
			break
		}
		add := "- " + s.line
		if chars+len(add)+1 > maxChars {
			continue
		}
		out = append(out, add)
		chars += len(add) + 1
	}

	if omitted := len(scored) - len(out); omitted > 0 {
		out = append(out, fmt.Sprintf("- (Contexto recortado por tamaño: %d líneas omitidas; usa /config context-list para ver el listado completo.)", omitted))
	}
	return strings.Join(out, "\n")
}

func scoreLine(line string, queryWords map[string]bool) int {
	t := utils.Normalize(line)
	if t == "" {
		return 0
	}
	raw := strings.ToLower(line)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(t, s) {
				return true
			}
		}
		return false
	}

	score := 1
	if has("nunca", "siempre", "prohib", "oblig") {
		score += 6
	}
	if has("no invent") {
		score += 5
	}
	if has("no muestres", "no reveles", "privad") {
		score += 4
	}
	if has("slash", "item", "config", "reset") && strings.Contains(raw, "/") {
		score += 4
	}
	if has("rol", "rango", "moder", "admin") {
		score += 3
	}
	if has("canal", "discord") || strings.Contains(raw, "#") {
		score += 3
	}
	if has("terraria", "wiki", "item", "crafteo") {
		score += 3
	}
	if has("ip", "puerto", "host") {
		score += 2
	}
	if has("iphone", "android", "jaja", "xd") {
		score--
	}

	for _, w := range strings.Fields(t) {
		if queryWords[w] {
			score += 2
		}
	}
	return score
}
