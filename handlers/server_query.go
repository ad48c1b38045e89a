package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ceniza-bot/bot"
	"ceniza-bot/router"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const channelSampleSize = 50

var (
	userMentionRe = regexp.MustCompile(`<@!?(\d{16,20})>`)
	atNameRe      = regexp.MustCompile(`@([\p{L}\p{N}_.]{2,32})`)
	avatarWords   = []string{"avatar", "pfp", "perfil", "foto"}
)

// serverAnswer is the reply to a SERVER route. Embed is optional.
type serverAnswer struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

// serverQuery carries what the SERVER intents read.
type serverQuery struct {
	s       *discordgo.Session
	b       *bot.Bot
	g       *discordgo.Guild
	m       *discordgo.Message
	replied *discordgo.Message
	d       router.Decision
	text    string
}

// answerServerQuery answers a question about the guild from the gateway
// state. It reports false when the intent cannot be answered so the caller
// can fall back to chat.
func answerServerQuery(ctx context.Context, s *discordgo.Session, b *bot.Bot, m, replied *discordgo.Message, d router.Decision, text string) (serverAnswer, bool) {
	if m.GuildID == "" {
		return serverAnswer{}, false
	}
	g, err := s.State.Guild(m.GuildID)
	if err != nil {
		b.Log.Warn("guild not in state", zap.String("guild_id", m.GuildID), zap.Error(err))
		return serverAnswer{}, false
	}
	q := &serverQuery{s: s, b: b, g: g, m: m, replied: replied, d: d, text: text}

	switch d.ServerIntent {
	case router.IntentChannelList:
		return serverAnswer{Content: "📌 **Canales públicos**\n" + formatChannelList(g)}, true
	case router.IntentRulesWhere:
		return q.rulesWhere(), true
	case router.IntentServerSummary:
		return q.summary(), true
	case router.IntentChannelPurpose:
		return q.channelPurpose()
	case router.IntentUserInfo:
		return q.userInfo(ctx)
	case router.IntentRolesList:
		return serverAnswer{Content: rolesList(g, rolesListLimit, "🎭 **Roles (%d)**")}, true
	case router.IntentRoleStructure:
		if line := findContextLine(b.Server.ContextLines(), "rol"); line != "" {
			return serverAnswer{Content: "🎭 " + line}, true
		}
		return serverAnswer{Content: rolesList(g, roleStructureLimit, "🎭 **Estructura de roles** (top %d por jerarquía)")}, true
	case router.IntentOwner:
		if line := findContextLine(b.Server.ContextLines(), "dueñ"); line != "" {
			return serverAnswer{Content: "👑 " + line}, true
		}
		if line := findContextLine(b.Server.ContextLines(), "owner"); line != "" {
			return serverAnswer{Content: "👑 " + line}, true
		}
		return serverAnswer{Content: fmt.Sprintf("👑 El dueño del servidor es <@%s>.", g.OwnerID)}, true
	}
	return serverAnswer{}, false
}

func (q *serverQuery) rulesWhere() serverAnswer {
	if ch := findRulesChannel(q.g); ch != nil {
		return serverAnswer{Content: "📜 Las reglas están en " + ch.Mention() + "."}
	}
	if rules := strings.TrimSpace(q.b.Server.Get().Rules); rules != "" {
		return serverAnswer{Content: "📜 No encontré un canal de reglas, pero esto es lo que tengo configurado:\n" + rules}
	}
	return serverAnswer{Content: "📜 No encontré un canal de reglas público."}
}

func (q *serverQuery) summary() serverAnswer {
	text, voice, categories := 0, 0, 0
	for _, ch := range q.g.Channels {
		switch ch.Type {
		case discordgo.ChannelTypeGuildCategory:
			categories++
		case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
			voice++
		default:
			text++
		}
	}
	members := q.g.MemberCount
	if members == 0 {
		members = len(q.g.Members)
	}
	lines := []string{
		"🏠 **" + q.g.Name + "**",
		fmt.Sprintf("- Miembros: **%d**", members),
		fmt.Sprintf("- Canales: **%d** de texto, **%d** de voz, **%d** categorías", text, voice, categories),
		fmt.Sprintf("- Canales públicos: **%d**", len(publicChannels(q.g, false))),
		fmt.Sprintf("- Roles: **%d**", len(sortedRoles(q.g))),
		fmt.Sprintf("- Dueño: <@%s>", q.g.OwnerID),
	}
	if created, err := discordgo.SnowflakeTimestamp(q.g.ID); err == nil {
		lines = append(lines, fmt.Sprintf("- Creado: <t:%d:D>", created.Unix()))
	}
	if ch := findRulesChannel(q.g); ch != nil {
		lines = append(lines, "- Reglas: "+ch.Mention())
	}
	return serverAnswer{Content: strings.Join(lines, "\n")}
}

func (q *serverQuery) channelPurpose() (serverAnswer, bool) {
	ref := q.d.StringArg("channel")
	if ref == "" {
		ref = channelQueryFrom(q.text)
	}
	var ch *discordgo.Channel
	if ref != "" {
		ch = findChannel(q.g, ref, true)
		if ch == nil {
			return serverAnswer{Content: "No encontré ese canal. Probá mencionándolo con #."}, true
		}
	} else {
		c, err := q.s.State.Channel(q.m.ChannelID)
		if err != nil {
			return serverAnswer{}, false
		}
		ch = c
	}
	if !isPublicChannel(q.g, ch) {
		return serverAnswer{Content: "Ese canal no es público, no puedo contarte qué pasa ahí."}, true
	}

	lines := []string{"🔎 **" + ch.Mention() + "**"}
	if topic := strings.TrimSpace(ch.Topic); topic != "" {
		lines = append(lines, "- Tema: "+utils.Truncate(topic, 300))
	}
	if !isTextChannel(ch) {
		return serverAnswer{Content: strings.Join(append(lines, "- Es un canal que no es de texto."), "\n")}, true
	}

	msgs, err := q.s.ChannelMessages(ch.ID, channelSampleSize, "", "", "")
	if err != nil {
		q.b.Log.Warn("failed to sample channel", zap.String("channel_id", ch.ID), zap.Error(err))
		lines = append(lines, "- No pude leer mensajes recientes de ese canal.")
		return serverAnswer{Content: strings.Join(lines, "\n")}, true
	}
	a := analyzeMessages(msgs)
	lines = append(lines, "- Para qué parece usarse: "+a.purpose(ch))
	lines = append(lines, fmt.Sprintf("- Muestras: %d mensajes (links %d · comandos %d · preguntas %d · adjuntos %d)",
		a.Samples, a.Links, a.Commands, a.Questions, a.Attachments))
	if len(a.TopWords) > 0 {
		lines = append(lines, "- Palabras frecuentes: "+strings.Join(a.TopWords, ", "))
	}
	return serverAnswer{Content: strings.Join(lines, "\n")}, true
}

// userInfoTarget picks who the question is about.
func (q *serverQuery) userInfoTarget(ctx context.Context) *discordgo.Member {
	var refs []string
	for _, key := range []string{"target", "user"} {
		if v := q.d.StringArg(key); v != "" {
			refs = append(refs, v)
		}
	}
	if m := userMentionRe.FindStringSubmatch(q.text); m != nil {
		refs = append(refs, m[1])
	}
	if q.replied != nil && q.replied.Author != nil && q.replied.Author.ID != q.s.State.User.ID {
		refs = append(refs, q.replied.Author.ID)
	}
	for _, f := range strings.Fields(q.text) {
		if rawIDRe.MatchString(f) {
			refs = append(refs, f)
		}
	}
	if m := atNameRe.FindStringSubmatch(q.text); m != nil {
		refs = append(refs, m[1])
	}
	// Questions like "quién soy" are about the author.
	refs = append(refs, q.m.Author.ID)

	for _, ref := range refs {
		mem, err := q.b.Resolver.ResolveMember(ctx, q.g.ID, ref)
		if err != nil {
			q.b.Log.Debug("member lookup failed", zap.String("ref", ref), zap.Error(err))
			continue
		}
		if raw := rawMember(mem); raw != nil {
			return raw
		}
	}
	return nil
}

func (q *serverQuery) userInfo(ctx context.Context) (serverAnswer, bool) {
	mem := q.userInfoTarget(ctx)
	if mem == nil || mem.User == nil {
		return serverAnswer{}, false
	}
	ans := serverAnswer{Content: strings.Join(memberInfoLines(q.g, mem), "\n")}
	if utils.ContainsAny(utils.Normalize(q.text), avatarWords) {
		url := mem.AvatarURL("1024")
		ans.Embed = &discordgo.MessageEmbed{
			Title: "Avatar de " + displayName(mem),
			Image: &discordgo.MessageEmbedImage{URL: url},
			URL:   url,
		}
	}
	return ans, true
}

func displayName(m *discordgo.Member) string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User.GlobalName != "":
		return m.User.GlobalName
	}
	return m.User.Username
}

// sendServerAnswer posts a SERVER reply.
func sendServerAnswer(b *bot.Bot, s *discordgo.Session, m *discordgo.Message, a serverAnswer) {
	if a.Embed == nil {
		reply(b, s, m, a.Content)
		return
	}
	_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:         utils.Truncate(a.Content, maxMessageLen),
		Embeds:          []*discordgo.MessageEmbed{a.Embed},
		Reference:       m.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		b.Log.Warn("failed to send server answer", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}
