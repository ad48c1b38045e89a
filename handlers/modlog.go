package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ceniza-bot/bot"
	"ceniza-bot/model"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	modLogRecent    = 10
	modLogMaxLines  = 15
	msgModLogFailed = "No pude leer el registro de moderación."
	msgModLogEmpty  = "No hay acciones registradas."
)

func modLogLine(r model.ModerationRecord) string {
	status := "✅"
	if !r.Success {
		status = "❌"
	}
	line := fmt.Sprintf("%s <t:%d:R> **%s** <@%s> · por <@%s>",
		status, r.Timestamp, model.ActionType(r.ActionType).Label(), r.TargetID, r.RequesterID)
	if r.Reason != "" {
		line += " · " + utils.Truncate(r.Reason, 80)
	}
	if !r.Success && r.FailReason != "" {
		line += " (" + utils.Truncate(r.FailReason, 60) + ")"
	}
	return line
}

// modLogText renders records newest first, capped at modLogMaxLines.
func modLogText(records []model.ModerationRecord) string {
	if len(records) == 0 {
		return msgModLogEmpty
	}
	lines := make([]string, 0, min(len(records), modLogMaxLines)+1)
	for n, r := range records {
		if n == modLogMaxLines {
			lines = append(lines, fmt.Sprintf("… y %d más", len(records)-modLogMaxLines))
			break
		}
		lines = append(lines, modLogLine(r))
	}
	return strings.Join(lines, "\n")
}

func handleModLogCommand(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if i.GuildID == "" {
		b.Respond.Error(i.Interaction, msgModGuildOnly)
		return
	}
	opts := optionMap(i.ApplicationCommandData().Options)
	target := userOpt(opts, "user")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		records []model.ModerationRecord
		err     error
		title   = "🛡️ Últimas acciones de moderación"
	)
	if target != "" {
		var since *time.Time
		if days := intOpt(opts, "days"); days > 0 {
			t := time.Now().Add(-time.Duration(days) * utils.Day)
			since = &t
		}
		records, err = b.DB.RecordsForTarget(ctx, i.GuildID, target, since)
		title = "🛡️ Historial de moderación"
	} else {
		records, err = b.DB.RecentRecords(ctx, i.GuildID, modLogRecent)
	}
	if err != nil {
		b.Log.Error("failed to read moderation log", zap.String("guild_id", i.GuildID), zap.Error(err))
		b.Respond.Error(i.Interaction, msgModLogFailed)
		return
	}

	desc := modLogText(records)
	if target != "" {
		desc = "<@" + target + ">\n" + desc
	}
	b.Respond.EphemeralEmbed(i.Interaction, &discordgo.MessageEmbed{
		Title:       title,
		Description: utils.Truncate(desc, 4000),
		Color:       confirmColor,
	}, nil)
}
