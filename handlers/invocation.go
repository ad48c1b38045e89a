package handlers

import (
	"regexp"
	"strings"

	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
)

var (
	tagRe      = regexp.MustCompile(`(?i)@(dibujar|editar|video)\b`)
	drawTagRe  = regexp.MustCompile(`(?i)@dibujar\b`)
	editTagRe  = regexp.MustCompile(`(?i)@editar\b`)
	videoTagRe = regexp.MustCompile(`(?i)@video\b`)
	urlRe      = regexp.MustCompile(`https?://[^\s>]+`)
	imageExtRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp)(\?|$)`)
)

var resetSignals = []string{
	"olvida",
	"reset",
	"reinicia conversacion",
	"reinicia la conversacion",
	"nueva conversacion",
	"nuevo chat",
	"borrar historial",
}

// invocation describes how a message addressed the bot.
type invocation struct {
	DM       bool
	Mention  bool
	Prefix   bool
	Tag      bool
	IsReply  bool
	Explicit bool
}

// any reports whether the message may be for the bot. Replies still need
// to be checked against the replied-to author.
func (v invocation) any() bool {
	return v.DM || v.Mention || v.Prefix || v.Tag || v.IsReply
}

func detectInvocation(m *discordgo.Message, botID string, prefixes []string) invocation {
	v := invocation{
		DM:      m.GuildID == "",
		Mention: hasBotMention(m.Content, botID),
		Prefix:  hasPrefix(m.Content, prefixes),
		Tag:     tagRe.MatchString(m.Content),
		IsReply: m.MessageReference != nil,
	}
	v.Explicit = v.Mention || v.Prefix
	return v
}

// hasBotMention only looks at the written text, so the implicit ping of a
// reply does not count.
func hasBotMention(content, botID string) bool {
	if botID == "" {
		return false
	}
	return strings.Contains(content, "<@"+botID+">") || strings.Contains(content, "<@!"+botID+">")
}

func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return utils.Normalize(fields[0])
}

func hasPrefix(content string, prefixes []string) bool {
	w := firstWord(content)
	if w == "" {
		return false
	}
	for _, p := range prefixes {
		if w == utils.Normalize(p) {
			return true
		}
	}
	return false
}

// stripBotCallPrefix removes bot mentions, a leading call prefix and the
// punctuation that usually follows it.
func stripBotCallPrefix(raw, botID string, prefixes []string) string {
	text := strings.TrimSpace(raw)
	if botID != "" {
		text = strings.ReplaceAll(text, "<@"+botID+">", " ")
		text = strings.ReplaceAll(text, "<@!"+botID+">", " ")
	}
	text = strings.TrimSpace(text)
	if hasPrefix(text, prefixes) {
		fields := strings.Fields(text)
		text = strings.Join(fields[1:], " ")
	}
	text = strings.TrimLeft(text, ",: ")
	return strings.TrimSpace(text)
}

func looksLikeReset(text string) bool {
	t := utils.Normalize(text)
	if t == "" {
		return false
	}
	return utils.ContainsAny(t, resetSignals)
}

func firstURL(text string) string {
	return strings.TrimRight(urlRe.FindString(text), ".,;)")
}

// imageURL finds an image in the message or, failing that, in the message
// it replies to.
func imageURL(m, replied *discordgo.Message) string {
	if u := messageImage(m); u != "" {
		return u
	}
	if replied != nil {
		return messageImage(replied)
	}
	return ""
}

func messageImage(m *discordgo.Message) string {
	if m == nil {
		return ""
	}
	for _, a := range m.Attachments {
		if strings.HasPrefix(a.ContentType, "image/") || imageExtRe.MatchString(a.Filename) {
			return a.URL
		}
	}
	for _, e := range m.Embeds {
		if e.Image != nil && e.Image.URL != "" {
			return e.Image.URL
		}
		if e.Thumbnail != nil && e.Thumbnail.URL != "" {
			return e.Thumbnail.URL
		}
	}
	for _, u := range urlRe.FindAllString(m.Content, -1) {
		if imageExtRe.MatchString(u) {
			return u
		}
	}
	return ""
}
