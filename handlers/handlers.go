package handlers

import (
	"fmt"
	"strings"

	"ceniza-bot/bot"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Register installs every discordgo handler on the bot's session.
func Register(b *bot.Bot) {
	b.CommandHandlers = commandHandlers(b)
	addHandlers(b)
}

func addHandlers(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.Log.Info("logged in",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)),
		)
	})
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		defer guardInteraction(b, s, i)
		handleInteractionCreate(s, i, b)
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		defer guardMessage(b, s, m)
		handleMessageCreate(s, m, b)
	})
}

// guardInteraction keeps one failing interaction from taking the process
// down and tells the user something went wrong.
func guardInteraction(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	r := recover()
	if r == nil {
		return
	}
	msg := panicMessage(r)
	b.Log.Error("interaction handler panicked",
		zap.String("interaction", i.ID),
		zap.String("guild_id", i.GuildID),
		zap.String("panic", msg),
		zap.Stack("stack"),
	)
	if err := utils.LogError(s, b.GetConfig().LogChannelID, "Handlers", "Interaction", msg); err != nil {
		b.Log.Warn("failed to report panic to log channel", zap.Error(err))
	}
	content := "⚠️ " + msg
	// The interaction may already be acknowledged; try a follow up first.
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		b.Respond.Ephemeral(i.Interaction, content)
	}
}

func guardMessage(b *bot.Bot, s *discordgo.Session, m *discordgo.MessageCreate) {
	r := recover()
	if r == nil {
		return
	}
	msg := panicMessage(r)
	b.Log.Error("message handler panicked",
		zap.String("message", m.ID),
		zap.String("channel_id", m.ChannelID),
		zap.String("panic", msg),
		zap.Stack("stack"),
	)
	if _, err := s.ChannelMessageSendReply(m.ChannelID, "⚠️ "+msg, m.Reference()); err != nil {
		b.Log.Warn("failed to report panic", zap.Error(err))
	}
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if h, ok := b.CommandHandlers[i.ApplicationCommandData().Name]; ok {
			h(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case strings.HasPrefix(customID, confirmPrefix), strings.HasPrefix(customID, cancelPrefix):
			handleConfirmation(s, i, b, customID)
		case strings.HasPrefix(customID, contextListPrefix+":"):
			handleContextListPage(s, i, b, customID)
		}
	}
}

// reply answers a message, logging rather than returning failures.
func reply(b *bot.Bot, s *discordgo.Session, m *discordgo.Message, content string) {
	for _, part := range utils.ChunkString(content, maxMessageLen) {
		if _, err := s.ChannelMessageSendReply(m.ChannelID, part, m.Reference()); err != nil {
			b.Log.Warn("failed to reply", zap.String("channel_id", m.ChannelID), zap.Error(err))
			return
		}
	}
}

// maxMessageLen leaves headroom below Discord's 2000 character limit.
const maxMessageLen = 1900
