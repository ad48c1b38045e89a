package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ceniza-bot/bot"
	"ceniza-bot/router"
	"ceniza-bot/stores/memory"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	messageTimeout = 3 * time.Minute

	msgReset          = "✅ ok, reinicié el historial reciente de este chat (la config del server se mantiene)."
	msgRouterFailed   = "⚠️ No pude procesar tu mensaje ahora mismo. Probá de nuevo en un rato."
	msgChatFailed     = "⚠️ No pude responder ahora mismo. Probá de nuevo en un rato."
	msgVideoDisabled  = "🎬 El análisis de video no está disponible en este bot."
	msgVisionNeedsAt  = "para analizar una imagen, mencioná a <@%s> y decime qué querés que haga con la imagen."
	msgVisionNoImage  = "no veo una imagen. respondé a una imagen o pegá el link directo, y decime qué querés que haga."
	msgVisionDisabled = "👁️ El análisis de imágenes no está disponible ahora."
	msgVisionFailed   = "⚠️ no pude analizar esa imagen ahora mismo."
	msgReplyNoSource  = "no sé de qué mensaje hablás. respondé al mensaje que querés que mire."
)

// turn is one message addressed to the bot, with everything the routes
// need.
type turn struct {
	s       *discordgo.Session
	b       *bot.Bot
	m       *discordgo.Message
	replied *discordgo.Message
	inv     invocation
	text    string
	sp      *speaker
	botID   string
}

func handleMessageCreate(s *discordgo.Session, mc *discordgo.MessageCreate, b *bot.Bot) {
	m := mc.Message
	if m.Author == nil || m.Author.Bot || s.State.User == nil {
		return
	}
	if handleLegacyCommand(s, m, b) {
		return
	}

	botID := s.State.User.ID
	prefixes := b.GetConfig().Prefixes
	inv := detectInvocation(m, botID, prefixes)
	if !inv.any() {
		return
	}

	replied := repliedMessage(s, m)
	replyToBot := replied != nil && replied.Author != nil && replied.Author.ID == botID
	if inv.IsReply && !replyToBot && !inv.DM && !inv.Explicit && !inv.Tag {
		return
	}
	// A plain reply to one of the bot's images is a reaction, not a request.
	if replyToBot && !inv.Explicit && !inv.Tag && messageImage(replied) != "" {
		return
	}

	text := stripBotCallPrefix(m.Content, botID, prefixes)
	if text == "" && messageImage(m) == "" {
		return
	}

	t := &turn{s: s, b: b, m: m, replied: replied, inv: inv, text: text, botID: botID}
	t.sp = speakerFor(s, m)

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		b.Log.Debug("typing failed", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
	if inv.Tag && videoTagRe.MatchString(m.Content) {
		reply(b, s, m, msgVideoDisabled)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()
	t.rememberReply()

	d, err := b.Router.Route(ctx, text, t.signals(replyToBot))
	if err != nil {
		b.Log.Warn("router failed", zap.String("channel_id", m.ChannelID), zap.Error(err))
		// Moderation keywords still get their confirmation flow.
		if messageModeration(ctx, s, b, m, replied, text, false) {
			return
		}
		reply(b, s, m, msgRouterFailed)
		return
	}
	b.Log.Debug("routed message",
		zap.String("route", string(d.Route)),
		zap.String("intent", string(d.ServerIntent)),
		zap.String("reason", d.Reason),
	)
	t.dispatch(ctx, d)
}

// repliedMessage returns the message m replies to, fetching it when the
// gateway did not include it.
func repliedMessage(s *discordgo.Session, m *discordgo.Message) *discordgo.Message {
	if m.ReferencedMessage != nil {
		return m.ReferencedMessage
	}
	ref := m.MessageReference
	if ref == nil || ref.MessageID == "" {
		return nil
	}
	channelID := ref.ChannelID
	if channelID == "" {
		channelID = m.ChannelID
	}
	msg, err := s.ChannelMessage(channelID, ref.MessageID)
	if err != nil {
		return nil
	}
	return msg
}

// speakerFor describes the author from the gateway state. DMs get a bare
// speaker.
func speakerFor(s *discordgo.Session, m *discordgo.Message) *speaker {
	sp := &speaker{ID: m.Author.ID, DisplayName: m.Author.GlobalName, TopRole: "sin-rol"}
	if sp.DisplayName == "" {
		sp.DisplayName = m.Author.Username
	}
	if m.GuildID == "" {
		return sp
	}
	if m.Member != nil && m.Member.Nick != "" {
		sp.DisplayName = m.Member.Nick
	}
	if g, err := s.State.Guild(m.GuildID); err == nil && m.Member != nil {
		sp.TopRole = topRoleName(g, m.Member.Roles)
	}
	sp.IsAdmin = memberPermissions(s, m)&discordgo.PermissionAdministrator != 0
	return sp
}

func (t *turn) signals(replyToBot bool) router.Signals {
	sig := router.Signals{
		InvokedExplicit: t.inv.Explicit,
		InvokedByTag:    t.inv.Tag,
		ReplyToBot:      replyToBot,
		IsReply:         t.inv.IsReply,
		HasImage:        imageURL(t.m, t.replied) != "",
		URL:             firstURL(t.text),
		HasTagDraw:      drawTagRe.MatchString(t.text),
		HasTagEdit:      editTagRe.MatchString(t.text),
	}
	st := t.b.Memory.User(t.m.GuildID, t.m.Author.ID)
	sig.ItemHint = st.ActiveItem
	if rc := usableReplyContext(st.LastReply, time.Now()); rc != nil {
		sig.LastReplyHint = rc.Author + ": " + utils.Truncate(rc.Content, 220)
	}
	return sig
}

// rememberReply keeps the replied-to message for follow ups like "resume
// eso".
func (t *turn) rememberReply() {
	r := t.replied
	if r == nil || r.Author == nil || r.Author.ID == t.botID {
		return
	}
	rc := replyContextFrom(r.Author.Username, r.Content, len(r.Attachments), len(r.Embeds), time.Now())
	t.b.Memory.UpdateUser(t.m.GuildID, t.m.Author.ID, func(st *memory.UserState) { st.LastReply = rc })
}

func (t *turn) dispatch(ctx context.Context, d router.Decision) {
	if d.Route == router.RouteReset || looksLikeReset(t.text) {
		t.b.Memory.ResetUser(t.m.GuildID, t.m.Author.ID)
		t.b.Memory.ResetChannel(t.m.GuildID, t.m.ChannelID)
		reply(t.b, t.s, t.m, msgReset)
		return
	}

	switch d.Route {
	case router.RouteDraw:
		t.draw(ctx, d)
		return
	case router.RouteEdit:
		t.edit(ctx, d)
		return
	case router.RouteVision:
		t.vision(ctx)
		return
	case router.RouteWiki:
		if t.wiki(ctx, d) {
			return
		}
	case router.RouteReplyAssist:
		if t.replyAssist(ctx) {
			return
		}
	case router.RouteServer:
		if a, ok := answerServerQuery(ctx, t.s, t.b, t.m, t.replied, d, t.text); ok {
			sendServerAnswer(t.b, t.s, t.m, a)
			return
		}
	case router.RouteModAction:
		if messageModeration(ctx, t.s, t.b, t.m, t.replied, t.text, true) {
			return
		}
	case router.RouteItem:
		if q := d.StringArg("item_query"); q != "" {
			t.b.Memory.UpdateUser(t.m.GuildID, t.m.Author.ID, func(st *memory.UserState) { st.ActiveItem = q })
		}
	case router.RouteChat:
		// Catch moderation requests the router filed as chat.
		if messageModeration(ctx, t.s, t.b, t.m, t.replied, t.text, false) {
			return
		}
	}
	t.chat(ctx)
}

func (t *turn) draw(ctx context.Context, d router.Decision) {
	prompt := d.StringArg("prompt")
	if prompt == "" {
		prompt = drawTagRe.ReplaceAllString(t.text, "")
	}
	job := imageJob{UserID: t.m.Author.ID, Text: prompt, Model: d.StringArg("model")}
	job.Width, _ = d.IntArg("width")
	job.Height, _ = d.IntArg("height")
	job.Seed, _ = d.IntArg("seed")
	sendImageReply(t.s, t.m, t.b, newStudio(t.b).Draw(ctx, job))
}

func (t *turn) edit(ctx context.Context, d router.Decision) {
	prompt := d.StringArg("prompt")
	if prompt == "" {
		prompt = editTagRe.ReplaceAllString(t.text, "")
	}
	src := d.StringArg("image_url")
	if src == "" {
		src = imageURL(t.m, t.replied)
	}
	if src == "" {
		src = t.b.Memory.User(t.m.GuildID, t.m.Author.ID).LastImageURL
	}
	job := imageJob{UserID: t.m.Author.ID, Text: prompt, SourceURL: src}
	job.Seed, _ = d.IntArg("seed")
	sendImageReply(t.s, t.m, t.b, newStudio(t.b).Edit(ctx, job))
}

func (t *turn) vision(ctx context.Context) {
	if !t.inv.Explicit && !t.inv.DM {
		reply(t.b, t.s, t.m, fmt.Sprintf(msgVisionNeedsAt, t.botID))
		return
	}
	if t.b.Vision == nil {
		reply(t.b, t.s, t.m, msgVisionDisabled)
		return
	}
	src := imageURL(t.m, t.replied)
	if src == "" {
		reply(t.b, t.s, t.m, msgVisionNoImage)
		return
	}
	out, err := t.b.Vision.Describe(ctx, src, t.text)
	if err != nil {
		t.b.Log.Warn("vision failed", zap.Error(err))
		reply(t.b, t.s, t.m, msgVisionFailed)
		return
	}
	reply(t.b, t.s, t.m, out)
}

func (t *turn) wiki(ctx context.Context, d router.Decision) bool {
	if t.b.Wiki == nil {
		return false
	}
	u := d.StringArg("url")
	if u == "" {
		u = firstURL(t.text)
	}
	if u == "" {
		return false
	}
	question := d.StringArg("question")
	if question == "" {
		question = strings.TrimSpace(strings.Replace(t.text, u, "", 1))
	}
	out, err := t.b.Wiki.Ask(ctx, u, question)
	if err != nil {
		t.b.Log.Warn("wiki lookup failed", zap.String("url", u), zap.Error(err))
		return false
	}
	reply(t.b, t.s, t.m, out)
	return true
}

func (t *turn) replyAssist(ctx context.Context) bool {
	var rc *memory.ReplyContext
	if r := t.replied; r != nil && r.Author != nil {
		rc = replyContextFrom(r.Author.Username, r.Content, len(r.Attachments), len(r.Embeds), time.Now())
	} else {
		rc = usableReplyContext(t.b.Memory.User(t.m.GuildID, t.m.Author.ID).LastReply, time.Now())
	}
	if rc == nil {
		reply(t.b, t.s, t.m, msgReplyNoSource)
		return true
	}
	task := detectReplyTask(t.text)
	if task == "" {
		task = taskExplain
	}
	out, err := replyAssist(ctx, t.b.Chat, task, t.text, rc)
	if err != nil {
		t.b.Log.Warn("reply assist failed", zap.Error(err))
		return false
	}
	reply(t.b, t.s, t.m, out)
	return true
}

func (t *turn) chat(ctx context.Context) {
	guildName := ""
	if t.m.GuildID != "" {
		if g, err := t.s.State.Guild(t.m.GuildID); err == nil {
			guildName = g.Name
		}
	}
	text := t.text
	if item := t.b.Memory.User(t.m.GuildID, t.m.Author.ID).ActiveItem; item != "" && strings.Contains(utils.Normalize(text), utils.Normalize(item)) {
		text += "\n(item: " + item + ")"
	}

	history := t.b.Memory.History(t.m.GuildID, t.m.ChannelID)
	out, err := chatReply(ctx, t.b.Chat, t.b.Server.Get(), history, t.sp, guildName, t.m.GuildID, text)
	if err != nil {
		t.b.Log.Warn("chat completion failed", zap.String("channel_id", t.m.ChannelID), zap.Error(err))
		reply(t.b, t.s, t.m, msgChatFailed)
		return
	}
	t.b.Memory.Append(t.m.GuildID, t.m.ChannelID, "user", formatUserTurn(t.sp, text))
	t.b.Memory.Append(t.m.GuildID, t.m.ChannelID, "assistant", out)
	reply(t.b, t.s, t.m, out)
}
