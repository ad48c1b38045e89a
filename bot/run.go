package bot

import (
	"context"
	"fmt"

	"ceniza-bot/commands"
	"ceniza-bot/utils"

	"go.uber.org/zap"
)

// Run opens the gateway connection, starts the scheduler and blocks until
// ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	if err := b.RegisterCommands(b.GetConfig().DevGuildID, commands.All()); err != nil {
		b.Log.Warn("failed to register commands", zap.Error(err))
	}

	scheduler := NewScheduler(b, b.Log)
	scheduler.Start()
	defer scheduler.Stop()

	if err := b.UpdatePresence(); err != nil {
		b.Log.Warn("failed to set presence", zap.Error(err))
	}

	b.Log.Info("bot is now running")
	if err := utils.LogInfo(b.Session, b.GetConfig().LogChannelID, "System", "Startup", "Bot iniciado correctamente."); err != nil {
		b.Log.Warn("failed to send startup log", zap.Error(err))
	}

	<-ctx.Done()
	return nil
}
