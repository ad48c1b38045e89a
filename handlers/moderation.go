package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ceniza-bot/bot"
	"ceniza-bot/model"
	"ceniza-bot/moderation"
	"ceniza-bot/platform"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	confirmPrefix = "confirm:"
	cancelPrefix  = "cancel:"

	msgConfirmExpired   = "⌛ Esta confirmación expiró o ya fue usada."
	msgActionCancelled  = "🚫 Acción cancelada"
	msgActionRunning    = "✅ Confirmado. Ejecutando..."
	msgModGuildOnly     = "Las acciones de moderación solo funcionan dentro de un servidor."
	msgModFailed        = "⚠️ No pude preparar esa acción ahora mismo."
	confirmColor        = 0xE67E22
	moderationLogModule = "Moderación"
)

func rawMember(m model.Member) *discordgo.Member {
	if pm, ok := m.(*platform.Member); ok && pm != nil {
		return pm.Raw()
	}
	return nil
}

// parseCustomID splits "confirm:<token>" or "cancel:<token>".
func parseCustomID(customID string) (token string, confirmed bool, ok bool) {
	switch {
	case strings.HasPrefix(customID, confirmPrefix):
		token, confirmed = strings.TrimPrefix(customID, confirmPrefix), true
	case strings.HasPrefix(customID, cancelPrefix):
		token = strings.TrimPrefix(customID, cancelPrefix)
	default:
		return "", false, false
	}
	if token == "" {
		return "", false, false
	}
	return token, confirmed, true
}

// confirmEmbed describes a pending action to its requester.
func confirmEmbed(p *model.PendingAction, ttl time.Duration) *discordgo.MessageEmbed {
	a := p.Action
	fields := []*discordgo.MessageEmbedField{
		{Name: "Acción", Value: a.Type.Label(), Inline: true},
		{Name: "Objetivo", Value: "<@" + a.TargetUserID + ">", Inline: true},
	}
	switch a.Type {
	case model.ActionTimeout:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duración", Value: utils.FormatDurationShort(a.Duration), Inline: true})
	case model.ActionRoleAdd, model.ActionRoleRemove:
		role := "<@&" + a.RoleID + ">"
		if a.RoleName != "" {
			role += " (" + a.RoleName + ")"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Rol", Value: role, Inline: true})
	case model.ActionNicknameSet:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Nuevo apodo", Value: a.NewNickname, Inline: true})
	}
	if a.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Razón", Value: utils.Truncate(a.Reason, 1024)})
	}
	expires := p.ExpiresAt(ttl)
	return &discordgo.MessageEmbed{
		Title:       "Confirmación requerida",
		Description: fmt.Sprintf("<@%s>, confirmá la acción antes de <t:%d:R>.", p.RequesterID, expires.Unix()),
		Color:       confirmColor,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Expira " + expires.UTC().Format("15:04:05 UTC")},
	}
}

func confirmComponents(token string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Confirmar", Style: discordgo.DangerButton, CustomID: confirmPrefix + token},
				discordgo.Button{Label: "Cancelar", Style: discordgo.SecondaryButton, CustomID: cancelPrefix + token},
			},
		},
	}
}

// resultMessage is the channel message shown after an action ran.
func resultMessage(a model.Action, res model.Result, err error) string {
	if err != nil {
		return "⚠️ Error ejecutando acción: " + err.Error()
	}
	if !res.OK {
		return "❌ " + res.Reason
	}
	target := "<@" + a.TargetUserID + ">"
	switch a.Type {
	case model.ActionKick:
		return "👢 Expulsado: " + target
	case model.ActionBan:
		return "🔨 Baneado: " + target
	case model.ActionTimeout:
		if a.Duration <= 0 {
			return "🔊 Timeout removido a " + target
		}
		return fmt.Sprintf("🔇 Timeout aplicado a %s por %s", target, utils.FormatDurationShort(a.Duration))
	case model.ActionNicknameSet:
		return fmt.Sprintf("🏷️ Apodo actualizado: %s → **%s**", target, a.NewNickname)
	case model.ActionRoleAdd:
		return fmt.Sprintf("✅ Asignado <@&%s> a %s", a.RoleID, target)
	case model.ActionRoleRemove:
		return fmt.Sprintf("✅ Quitado <@&%s> a %s", a.RoleID, target)
	}
	return "✅ Listo."
}

// messageModeration runs the free text moderation flow for a message. It
// reports false when the text is not a moderation request.
func messageModeration(ctx context.Context, s *discordgo.Session, b *bot.Bot, m *discordgo.Message, replied *discordgo.Message, text string, forced bool) bool {
	if m.GuildID == "" {
		if forced {
			reply(b, s, m, msgModGuildOnly)
			return true
		}
		return false
	}
	if !forced && !moderation.LooksLikeActionRequest(text) {
		return false
	}

	requester, err := b.Resolver.ResolveMember(ctx, m.GuildID, m.Author.ID)
	if err != nil || requester == nil {
		b.Log.Warn("cannot resolve requester", zap.String("user_id", m.Author.ID), zap.Error(err))
		reply(b, s, m, moderation.MsgRequesterMissing)
		return true
	}

	req := moderation.Request{
		Origin: model.Origin{
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			Surface:   model.SurfaceMessage,
		},
		Requester: requester,
		Text:      text,
		Forced:    forced,
	}
	if g, err := s.State.Guild(m.GuildID); err == nil {
		req.GuildName = g.Name
	}
	if replied != nil && replied.Author != nil && replied.Author.ID != s.State.User.ID {
		req.DefaultTargetUserID = replied.Author.ID
		req.RepliedSummary = utils.Truncate(replied.Author.Username+": "+replied.Content, 300)
	}

	prep, err := b.Orchestrator.Prepare(ctx, req)
	if err != nil {
		b.Log.Error("failed to prepare action", zap.String("guild_id", m.GuildID), zap.Error(err))
		reply(b, s, m, msgModFailed)
		return true
	}
	switch prep.Outcome {
	case moderation.OutcomeNotAction:
		return false
	case moderation.OutcomeReply:
		reply(b, s, m, prep.Message)
	case moderation.OutcomePrompt:
		_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
			Embeds:          []*discordgo.MessageEmbed{confirmEmbed(prep.Pending, b.Orchestrator.TTL())},
			Components:      confirmComponents(prep.Pending.ID),
			Reference:       m.Reference(),
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		})
		if err != nil {
			b.Log.Warn("failed to send confirmation", zap.String("channel_id", m.ChannelID), zap.Error(err))
		}
	}
	return true
}

// promptSlashAction validates a structured action from a slash command and
// answers with the ephemeral confirmation.
func promptSlashAction(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, action model.Action) {
	if i.GuildID == "" || i.Member == nil {
		b.Respond.Error(i.Interaction, msgModGuildOnly)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	requester, err := b.Resolver.ResolveMember(ctx, i.GuildID, i.Member.User.ID)
	if err != nil || requester == nil {
		b.Respond.Error(i.Interaction, moderation.MsgRequesterMissing)
		return
	}
	if !moderation.HasAnyModPermission(requester) {
		b.Respond.Error(i.Interaction, strings.TrimPrefix(moderation.MsgNoModPermission, "❌ "))
		return
	}

	prep, err := b.Orchestrator.PrepareAction(ctx, requester, action, model.Origin{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Surface:   model.SurfaceSlash,
	})
	if err != nil {
		b.Log.Error("failed to prepare slash action", zap.String("type", string(action.Type)), zap.Error(err))
		b.Respond.Ephemeral(i.Interaction, msgModFailed)
		return
	}
	switch prep.Outcome {
	case moderation.OutcomePrompt:
		b.Respond.EphemeralEmbed(i.Interaction, confirmEmbed(prep.Pending, b.Orchestrator.TTL()), confirmComponents(prep.Pending.ID))
	default:
		b.Respond.Ephemeral(i.Interaction, prep.Message)
	}
}

func clickerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// handleConfirmation resolves a confirm or cancel click.
func handleConfirmation(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, customID string) {
	token, confirmed, ok := parseCustomID(customID)
	if !ok {
		b.Respond.Ephemeral(i.Interaction, msgConfirmExpired)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, res, err := b.Orchestrator.Resolve(ctx, token, clickerID(i), confirmed)
	if err != nil {
		b.Log.Error("failed to resolve confirmation", zap.Error(err))
		b.Respond.Ephemeral(i.Interaction, msgConfirmExpired)
		return
	}
	switch res {
	case moderation.ResolutionInvalid:
		b.Respond.Ephemeral(i.Interaction, msgConfirmExpired)
		return
	case moderation.ResolutionCancelled:
		b.Respond.Update(i.Interaction, msgActionCancelled, []*discordgo.MessageEmbed{})
		return
	}

	b.Respond.Update(i.Interaction, msgActionRunning, []*discordgo.MessageEmbed{})
	result, execErr := b.Orchestrator.Execute(ctx, p)
	msg := resultMessage(p.Action, result, execErr)
	b.Respond.Send(i.Interaction, msg, false)

	detail := fmt.Sprintf("%s · solicitado por <@%s> · %s", p.Action.Type.Label(), p.RequesterID, msg)
	logChannel := b.GetConfig().LogChannelID
	var logErr error
	switch {
	case execErr != nil:
		logErr = utils.LogError(s, logChannel, moderationLogModule, string(p.Action.Type), detail)
	case !result.OK:
		logErr = utils.LogWarn(s, logChannel, moderationLogModule, string(p.Action.Type), detail)
	default:
		logErr = utils.LogInfo(s, logChannel, moderationLogModule, string(p.Action.Type), detail)
	}
	if logErr != nil {
		b.Log.Warn("failed to send moderation log", zap.Error(logErr))
	}
}
