package handlers

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ceniza-bot/utils"

	"github.com/agnivade/levenshtein"
	"github.com/bwmarrin/discordgo"
)

const (
	maxChannelLines    = 180
	channelMatchScore  = 0.35
	rolesListLimit     = 60
	roleStructureLimit = 20
)

var (
	channelMentionRe = regexp.MustCompile(`<#(\d{16,20})>`)
	rawIDRe          = regexp.MustCompile(`^\d{16,20}$`)
	quotedTextRe     = regexp.MustCompile(`"([^\n\r"]{1,80})"`)
	channelWordRe    = regexp.MustCompile(`\bcanal(?:\s+de)?\s+([a-z0-9 _-]{2,40})`)
	numericRe        = regexp.MustCompile(`^\d+$`)
	questionRe       = regexp.MustCompile(`(?i)\?|\b(que|como|donde|cuando|por que|para que)\b`)
)

var rulesChannelNames = []string{"reglas", "rules", "normas", "bienvenido", "welcome", "info"}

func everyoneRole(g *discordgo.Guild) *discordgo.Role {
	for _, r := range g.Roles {
		if r.ID == g.ID {
			return r
		}
	}
	return nil
}

// isPublicChannel reports whether @everyone can view ch.
func isPublicChannel(g *discordgo.Guild, ch *discordgo.Channel) bool {
	if g == nil || ch == nil || ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM {
		return false
	}
	var perms int64
	if r := everyoneRole(g); r != nil {
		perms = r.Permissions
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, o := range ch.PermissionOverwrites {
		if o.Type == discordgo.PermissionOverwriteTypeRole && o.ID == g.ID {
			perms &^= o.Deny
			perms |= o.Allow
		}
	}
	return perms&discordgo.PermissionViewChannel != 0
}

func channelPosition(g *discordgo.Guild, ch *discordgo.Channel) int {
	parent := 0
	if ch.ParentID != "" {
		for _, c := range g.Channels {
			if c.ID == ch.ParentID {
				parent = c.Position
				break
			}
		}
	}
	return parent*10_000 + ch.Position
}

// publicChannels lists the channels @everyone can see, in display order.
func publicChannels(g *discordgo.Guild, includeCategories bool) []*discordgo.Channel {
	var out []*discordgo.Channel
	for _, ch := range g.Channels {
		if !isPublicChannel(g, ch) {
			continue
		}
		if !includeCategories && ch.Type == discordgo.ChannelTypeGuildCategory {
			continue
		}
		out = append(out, ch)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return channelPosition(g, out[i]) < channelPosition(g, out[j])
	})
	return out
}

// formatChannelList renders the public channels grouped by category.
func formatChannelList(g *discordgo.Guild) string {
	type group struct {
		cat      *discordgo.Channel
		children []*discordgo.Channel
	}
	channels := publicChannels(g, true)
	groups := map[string]*group{}
	var order []*group
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			gr := &group{cat: ch}
			groups[ch.ID] = gr
			order = append(order, gr)
		}
	}
	var loose *group
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			continue
		}
		gr, ok := groups[ch.ParentID]
		if !ok {
			if loose == nil {
				loose = &group{}
			}
			gr = loose
		}
		gr.children = append(gr.children, ch)
	}
	if loose != nil {
		order = append(order, loose)
	}

	var lines []string
	for _, gr := range order {
		if len(lines) >= maxChannelLines {
			break
		}
		if gr.cat != nil {
			lines = append(lines, "**"+gr.cat.Name+"**")
		} else {
			lines = append(lines, "**(Sin categoría)**")
		}
		for _, ch := range gr.children {
			if len(lines) >= maxChannelLines {
				break
			}
			lines = append(lines, "- "+ch.Mention())
		}
		lines = append(lines, "")
	}
	out := strings.TrimSpace(strings.Join(lines, "\n"))
	if out == "" {
		return "No encuentro canales públicos (VIEW_CHANNEL para @everyone)."
	}
	return out
}

func isTextChannel(ch *discordgo.Channel) bool {
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return true
	}
	return false
}

// findRulesChannel guesses where the rules live, first by name and then by
// topic.
func findRulesChannel(g *discordgo.Guild) *discordgo.Channel {
	var text []*discordgo.Channel
	for _, ch := range publicChannels(g, false) {
		if isTextChannel(ch) {
			text = append(text, ch)
		}
	}
	for _, key := range rulesChannelNames {
		for _, ch := range text {
			if strings.Contains(utils.Normalize(ch.Name), key) {
				return ch
			}
		}
	}
	for _, ch := range text {
		topic := utils.Normalize(ch.Topic)
		if topic != "" && utils.ContainsAny(topic, []string{"regla", "rules", "norma"}) {
			return ch
		}
	}
	return nil
}

func nameScore(query, candidate string) float64 {
	q, c := utils.Normalize(query), utils.Normalize(candidate)
	if q == "" || c == "" {
		return 1
	}
	return float64(levenshtein.ComputeDistance(q, c)) / float64(max(len([]rune(q)), len([]rune(c)), 1))
}

// findChannel resolves a mention, an ID or a fuzzy name to a channel.
func findChannel(g *discordgo.Guild, query string, publicOnly bool) *discordgo.Channel {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	id := ""
	if m := channelMentionRe.FindStringSubmatch(q); m != nil {
		id = m[1]
	} else if rawIDRe.MatchString(q) {
		id = q
	}
	if id != "" {
		for _, ch := range g.Channels {
			if ch.ID == id {
				return ch
			}
		}
		return nil
	}

	var best *discordgo.Channel
	bestScore := 1.0
	for _, ch := range g.Channels {
		if publicOnly && !isPublicChannel(g, ch) {
			continue
		}
		if score := nameScore(q, ch.Name); score < bestScore {
			best, bestScore = ch, score
		}
	}
	if best != nil && bestScore <= channelMatchScore {
		return best
	}
	return nil
}

// channelQueryFrom pulls a channel reference out of a question.
func channelQueryFrom(text string) string {
	if m := channelMentionRe.FindString(text); m != "" {
		return m
	}
	if m := quotedTextRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := channelWordRe.FindStringSubmatch(utils.Normalize(text)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// sortedRoles returns the guild roles by position, highest first, without
// @everyone.
func sortedRoles(g *discordgo.Guild) []*discordgo.Role {
	out := make([]*discordgo.Role, 0, len(g.Roles))
	for _, r := range g.Roles {
		if r.ID != g.ID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position > out[j].Position })
	return out
}

func rolesList(g *discordgo.Guild, limit int, title string) string {
	roles := sortedRoles(g)
	if len(roles) > limit {
		roles = roles[:limit]
	}
	lines := make([]string, 0, len(roles)+1)
	lines = append(lines, fmt.Sprintf(title, len(roles)))
	for _, r := range roles {
		lines = append(lines, fmt.Sprintf("- <@&%s> (%s)", r.ID, r.Name))
	}
	return strings.Join(lines, "\n")
}

// findContextLine returns the first configured context line containing
// every one of words.
func findContextLine(lines []string, words ...string) string {
	for _, line := range lines {
		n := utils.Normalize(line)
		ok := true
		for _, w := range words {
			if !strings.Contains(n, utils.Normalize(w)) {
				ok = false
				break
			}
		}
		if ok {
			return line
		}
	}
	return ""
}

var stopWords = map[string]bool{
	"hola": true, "buenas": true, "que": true, "como": true, "donde": true, "cuando": true, "por": true,
	"para": true, "porque": true, "del": true, "los": true, "las": true, "una": true, "unos": true,
	"unas": true, "con": true, "sin": true, "yo": true, "vos": true, "usted": true, "ustedes": true,
	"ellos": true, "ellas": true, "esto": true, "esta": true, "ese": true, "esa": true, "hay": true,
	"jaja": true, "jajaja": true, "lol": true,
}

// channelAnalysis summarizes recent human messages of a channel.
type channelAnalysis struct {
	Samples     int
	Links       int
	Commands    int
	Questions   int
	Attachments int
	Counting    bool
	TopWords    []string
}

func analyzeMessages(msgs []*discordgo.Message) channelAnalysis {
	var a channelAnalysis
	var numbers []int
	freq := map[string]int{}
	// The API returns newest first.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Author != nil && m.Author.Bot {
			continue
		}
		if len(m.Attachments) > 0 {
			a.Attachments++
		}
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		a.Samples++
		if numericRe.MatchString(text) {
			if n, err := strconv.Atoi(text); err == nil {
				numbers = append(numbers, n)
			}
		}
		if urlRe.MatchString(text) {
			a.Links++
		}
		if strings.HasPrefix(text, "!") || strings.HasPrefix(text, "/") {
			a.Commands++
		}
		if questionRe.MatchString(utils.StripDiacritics(text)) {
			a.Questions++
		}
		for _, w := range strings.Fields(utils.Normalize(text)) {
			if len(w) < 3 || stopWords[w] || strings.HasPrefix(w, "http") {
				continue
			}
			freq[w]++
		}
	}

	if len(numbers) >= 3 && float64(len(numbers))/float64(a.Samples) >= 0.65 {
		consecutive := 0
		for i := 1; i < len(numbers); i++ {
			if numbers[i] == numbers[i-1]+1 {
				consecutive++
			}
		}
		a.Counting = float64(consecutive)/float64(len(numbers)-1) >= 0.55
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > 8 {
		words = words[:8]
	}
	a.TopWords = words
	return a
}

// purpose guesses what a channel is for.
func (a channelAnalysis) purpose(ch *discordgo.Channel) string {
	topic := utils.Normalize(ch.Topic)
	ratio := func(n int) float64 {
		if a.Samples == 0 {
			return 0
		}
		return float64(n) / float64(a.Samples)
	}
	switch {
	case a.Counting:
		return "Juego de conteo (los usuarios envían números consecutivos)."
	case strings.Contains(topic, "regla") || strings.Contains(topic, "rules") || strings.Contains(utils.Normalize(ch.Name), "regla"):
		return "Canal de reglas / información importante."
	case strings.Contains(topic, "general") || strings.Contains(topic, "chat"):
		return "Chat general del servidor."
	case ratio(a.Commands) >= 0.35:
		return "Canal orientado a comandos de bots / utilidades."
	case ratio(a.Questions) >= 0.35:
		return "Canal de preguntas / ayuda (mucha gente pregunta cosas)."
	case ratio(a.Links) >= 0.35:
		return "Canal de links/recursos (se comparten enlaces con frecuencia)."
	case len(a.TopWords) > 0:
		return fmt.Sprintf("Conversación principalmente alrededor de: **%s**.", strings.Join(a.TopWords[:min(3, len(a.TopWords))], ", "))
	}
	return "Canal de conversación general (sin señales fuertes en las muestras recientes)."
}

// memberInfoLines describes a member for USER_INFO answers.
func memberInfoLines(g *discordgo.Guild, m *discordgo.Member) []string {
	roleByID := make(map[string]*discordgo.Role, len(g.Roles))
	for _, r := range g.Roles {
		roleByID[r.ID] = r
	}
	var held []*discordgo.Role
	for _, id := range m.Roles {
		if r, ok := roleByID[id]; ok && r.ID != g.ID {
			held = append(held, r)
		}
	}
	sort.SliceStable(held, func(i, j int) bool { return held[i].Position > held[j].Position })

	top := "@everyone"
	if len(held) > 0 {
		top = held[0].Name
	}
	mentions := make([]string, 0, 12)
	for i, r := range held {
		if i == 12 {
			break
		}
		mentions = append(mentions, "<@&"+r.ID+">")
	}
	roleText := "(solo @everyone)"
	if len(mentions) > 0 {
		roleText = strings.Join(mentions, " ")
	}

	display := m.Nick
	if display == "" {
		display = m.User.GlobalName
	}
	if display == "" {
		display = m.User.Username
	}

	lines := []string{
		"👤 **Usuario:** <@" + m.User.ID + ">",
		"- Apodo (server): **" + display + "**",
		"- Usuario: **" + m.User.Username + "**",
		"- Rol más alto: **" + top + "**",
		fmt.Sprintf("- Roles (%d): %s", len(held), roleText),
	}
	if !m.JoinedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("- Entró al server: <t:%d:R>", m.JoinedAt.Unix()))
	}
	if created, err := discordgo.SnowflakeTimestamp(m.User.ID); err == nil {
		lines = append(lines, fmt.Sprintf("- Cuenta creada: <t:%d:R>", created.Unix()))
	}
	return lines
}

func topRoleName(g *discordgo.Guild, roleIDs []string) string {
	best, pos := "sin-rol", -1
	for _, r := range g.Roles {
		if r.ID == g.ID {
			continue
		}
		for _, id := range roleIDs {
			if id == r.ID && r.Position > pos {
				best, pos = r.Name, r.Position
			}
		}
	}
	return best
}
