package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ceniza-bot/bot"
	"ceniza-bot/commands"
	"ceniza-bot/config"
	"ceniza-bot/handlers"
	"ceniza-bot/metrics"
	"ceniza-bot/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	debug  bool
	guild  string
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ceniza-bot",
	Short: "Ceniza, the Terraria community bot",
	Long: `Ceniza chats, answers questions about the server and runs
moderation actions behind a confirmation step.

Run without arguments to start the bot.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1" {
			debug = true
		}
		var err error
		logger, err = utils.NewLogger(debug)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and serve until interrupted",
	RunE:  runBot,
}

var registerCmd = &cobra.Command{
	Use:   "register-commands",
	Short: "Overwrite the slash commands and exit",
	Long: `Overwrite the application commands with the current definitions.
Without --guild the commands are registered globally.`,
	RunE: registerCommands,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	registerCmd.Flags().StringVar(&guild, "guild", "", "Guild to register the commands in")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(registerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}
	if cfg.Debug && !debug {
		if l, err := utils.NewLogger(true); err == nil {
			logger = l
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("error creating bot: %w", err)
	}
	defer b.Close()

	handlers.Register(b)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsAddr, logger) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
		return err
	}
	logger.Info("bot stopped")
	return nil
}

func registerCommands(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}
	b, err := bot.New(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("error creating bot: %w", err)
	}
	defer b.Close()

	// The application id comes from the ready event when APP_ID is unset.
	if cfg.AppID == "" {
		if err := b.Session.Open(); err != nil {
			return fmt.Errorf("error opening connection: %w", err)
		}
	}
	return b.RegisterCommands(guild, commands.All())
}
