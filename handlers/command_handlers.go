package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ceniza-bot/bot"
	"ceniza-bot/model"
	"ceniza-bot/stores/memory"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	contextListPrefix  = "ctxlist"
	contextListPerPage = 15
	imageTimeout       = 3 * time.Minute

	msgBadDuration = "Duración inválida. Usá algo como 10m, 2h o 1d (o `remove` para quitar el timeout)."
)

type commandHandler = func(s *discordgo.Session, i *discordgo.InteractionCreate)

func commandHandlers(b *bot.Bot) map[string]commandHandler {
	return map[string]commandHandler{
		"kick": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			opts := optionMap(i.ApplicationCommandData().Options)
			promptSlashAction(s, i, b, model.Action{
				Type:         model.ActionKick,
				TargetUserID: userOpt(opts, "user"),
				Reason:       stringOpt(opts, "reason"),
			})
		},
		"ban": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			opts := optionMap(i.ApplicationCommandData().Options)
			days := min(max(intOpt(opts, "delete_days"), 0), 7)
			promptSlashAction(s, i, b, model.Action{
				Type:                 model.ActionBan,
				TargetUserID:         userOpt(opts, "user"),
				Reason:               stringOpt(opts, "reason"),
				DeleteMessageSeconds: days * int(utils.Day/time.Second),
			})
		},
		"timeout": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			opts := optionMap(i.ApplicationCommandData().Options)
			d, ok := timeoutDuration(stringOpt(opts, "duration"))
			if !ok {
				b.Respond.Error(i.Interaction, msgBadDuration)
				return
			}
			promptSlashAction(s, i, b, model.Action{
				Type:         model.ActionTimeout,
				TargetUserID: userOpt(opts, "user"),
				Reason:       stringOpt(opts, "reason"),
				Duration:     d,
			})
		},
		"nickname": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			opts := optionMap(i.ApplicationCommandData().Options)
			promptSlashAction(s, i, b, model.Action{
				Type:         model.ActionNicknameSet,
				TargetUserID: userOpt(opts, "user"),
				NewNickname:  stringOpt(opts, "nickname"),
				Reason:       stringOpt(opts, "reason"),
			})
		},
		"modlog": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleModLogCommand(s, i, b)
		},
		"role": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			data := i.ApplicationCommandData()
			if len(data.Options) == 0 {
				return
			}
			sub := data.Options[0]
			opts := optionMap(sub.Options)
			t := model.ActionRoleAdd
			if sub.Name == "remove" {
				t = model.ActionRoleRemove
			}
			promptSlashAction(s, i, b, model.Action{
				Type:         t,
				TargetUserID: userOpt(opts, "user"),
				RoleRef:      roleOpt(opts, "role"),
				Reason:       stringOpt(opts, "reason"),
			})
		},
		"draw": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleDrawCommand(s, i, b)
		},
		"edit": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleEditCommand(s, i, b)
		},
		"reset": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			b.Memory.ResetChannel(i.GuildID, i.ChannelID)
			b.Memory.ResetUser(i.GuildID, clickerID(i))
			b.Respond.Ephemeral(i.Interaction, msgReset)
		},
		"usage": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			rem := b.Usage.Snapshot(context.Background(), clickerID(i))
			b.Respond.Ephemeral(i.Interaction, usageMessage(rem.Generate, rem.Edit, rem.Global, b.Usage.Limits()))
		},
		"serverstatus": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			ServerStatusHandler(s, i, b)
		},
		"wiki": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleWikiCommand(s, i, b)
		},
		"config": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleConfigCommand(s, i, b)
		},
	}
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

// The accessors check the option type first; discordgo panics on a
// mismatch.

func stringOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return strings.TrimSpace(o.StringValue())
}

func intOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	o, ok := opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionInteger {
		return 0
	}
	return int(o.IntValue())
}

func userOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionUser {
		return ""
	}
	return o.UserValue(nil).ID
}

func roleOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionRole {
		return ""
	}
	return o.RoleValue(nil, "").ID
}

// timeoutDuration parses the /timeout duration option. Zero removes the
// timeout.
func timeoutDuration(raw string) (time.Duration, bool) {
	switch utils.Normalize(raw) {
	case "0", "remove", "remover", "quitar", "off":
		return 0, true
	}
	d, err := utils.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}

func usageMessage(gen, edit, global int, limits model.UsageLimits) string {
	return fmt.Sprintf("🎨 **Cuota pro de hoy**\n- Dibujos: %d/%d\n- Ediciones: %d/%d\n- Global: %d/%d\nSe reinicia a las 00:00 UTC.",
		gen, limits.GeneratePerDay, edit, limits.EditPerDay, global, limits.GlobalPerDay)
}

// sendImageFollowUp posts an image reply to a deferred interaction and
// remembers it as the user's edit source.
func sendImageFollowUp(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, r imageReply) {
	msg, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: r.Content,
		Files:   r.files(),
	})
	if err != nil {
		b.Log.Warn("failed to send image follow-up", zap.String("interaction", i.ID), zap.Error(err))
		return
	}
	if r.Image != nil && len(msg.Attachments) > 0 {
		url := msg.Attachments[0].URL
		b.Memory.UpdateUser(i.GuildID, clickerID(i), func(st *memory.UserState) { st.LastImageURL = url })
	}
}

func handleDrawCommand(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := optionMap(i.ApplicationCommandData().Options)
	if err := b.Respond.Defer(i.Interaction, false); err != nil {
		b.Log.Warn("failed to defer draw", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), imageTimeout)
	defer cancel()

	job := imageJob{
		UserID:  clickerID(i),
		Text:    stringOpt(opts, "prompt"),
		Premium: stringOpt(opts, "model") == "pro",
		Width:   intOpt(opts, "width"),
		Height:  intOpt(opts, "height"),
		Seed:    intOpt(opts, "seed"),
	}
	sendImageFollowUp(s, i, b, newStudio(b).Draw(ctx, job))
}

func handleEditCommand(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	data := i.ApplicationCommandData()
	opts := optionMap(data.Options)
	src := stringOpt(opts, "url")
	if o, ok := opts["image"]; ok && o.Type == discordgo.ApplicationCommandOptionAttachment && data.Resolved != nil {
		if id, ok := o.Value.(string); ok {
			if a, ok := data.Resolved.Attachments[id]; ok {
				src = a.URL
			}
		}
	}
	if src == "" {
		src = b.Memory.User(i.GuildID, clickerID(i)).LastImageURL
	}
	if err := b.Respond.Defer(i.Interaction, false); err != nil {
		b.Log.Warn("failed to defer edit", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), imageTimeout)
	defer cancel()

	job := imageJob{UserID: clickerID(i), Text: stringOpt(opts, "prompt"), SourceURL: src}
	sendImageFollowUp(s, i, b, newStudio(b).Edit(ctx, job))
}

func handleWikiCommand(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := optionMap(i.ApplicationCommandData().Options)
	if err := b.Respond.Defer(i.Interaction, false); err != nil {
		b.Log.Warn("failed to defer wiki", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := b.Wiki.Ask(ctx, stringOpt(opts, "url"), stringOpt(opts, "question"))
	if err != nil {
		b.Log.Warn("wiki command failed", zap.Error(err))
		b.Respond.FollowUp(i.Interaction, msgWikiFailed)
		return
	}
	parts := utils.ChunkString(out, maxMessageLen)
	if len(parts) == 0 {
		b.Respond.FollowUp(i.Interaction, msgEmptyReply)
		return
	}
	b.Respond.FollowUp(i.Interaction, parts[0])
	for _, p := range parts[1:] {
		b.Respond.Send(i.Interaction, p, false)
	}
}

func handleConfigCommand(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	var perms int64
	if i.Member != nil {
		perms = i.Member.Permissions
	}
	if ok, why := utils.CheckAdmin(clickerID(i), i.GuildID, perms, b.GetConfig().AdminUserIDs); !ok {
		b.Respond.Error(i.Interaction, why)
		return
	}
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	opts := optionMap(sub.Options)

	var err error
	var msg string
	switch sub.Name {
	case "context-add":
		msg = "🧠 Contexto agregado."
		err = b.Server.AppendContext(stringOpt(opts, "text"))
	case "context-clear":
		msg = "🧠 Contexto borrado."
		err = b.Server.ClearContext()
	case "context-list":
		content, components := contextListPage(b.Server.ContextLines(), 1)
		b.Respond.EphemeralEmbed(i.Interaction, &discordgo.MessageEmbed{Title: "🧠 Contexto", Description: content}, components)
		return
	case "set-ip":
		v := stringOpt(opts, "ip")
		msg = "✅ IP actualizada a: **" + v + "**"
		err = b.Server.SetPath([]string{"ip"}, v)
	case "set-port":
		v := stringOpt(opts, "port")
		msg = "✅ Puerto actualizado a: **" + v + "**"
		err = b.Server.SetPath([]string{"port"}, v)
	case "reload":
		msg = "🔄 Configuración recargada desde disco."
		err = b.ReloadConfig()
	default:
		return
	}
	if err != nil {
		b.Log.Error("config command failed", zap.String("sub", sub.Name), zap.Error(err))
		b.Respond.Error(i.Interaction, strings.TrimPrefix(msgLegacySaveFailed, "⚠️ "))
		return
	}
	b.Respond.Ephemeral(i.Interaction, msg)
}

// contextListPage renders one page of context lines with its buttons.
func contextListPage(lines []string, page int) (string, []discordgo.MessageComponent) {
	if len(lines) == 0 {
		return "(sin contexto)", nil
	}
	numbered := make([]string, len(lines))
	for n, l := range lines {
		numbered[n] = fmt.Sprintf("%d. %s", n+1, utils.Truncate(l, 200))
	}
	shown, page, total := utils.Paginate(numbered, page, contextListPerPage)
	return strings.Join(shown, "\n"), utils.CreatePaginationComponents(page, total, contextListPrefix)
}

func handleContextListPage(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, customID string) {
	page, err := strconv.Atoi(strings.TrimPrefix(customID, contextListPrefix+":"))
	if err != nil {
		return
	}
	content, components := contextListPage(b.Server.ContextLines(), page)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{{Title: "🧠 Contexto", Description: content}},
			Components: components,
		},
	})
	if err != nil {
		b.Log.Warn("failed to update context list", zap.Error(err))
	}
}
