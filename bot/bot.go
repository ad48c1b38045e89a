package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ceniza-bot/config"
	"ceniza-bot/images"
	"ceniza-bot/llm"
	"ceniza-bot/model"
	"ceniza-bot/moderation"
	"ceniza-bot/platform"
	"ceniza-bot/router"
	"ceniza-bot/stores/confirm"
	"ceniza-bot/stores/memory"
	"ceniza-bot/stores/usage"
	"ceniza-bot/utils"
	"ceniza-bot/utils/database"
	"ceniza-bot/wiki"

	"github.com/bwmarrin/discordgo"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Presence is the activity shown next to the bot.
const Presence = "Terraria + Discord"

type Bot struct {
	Session *discordgo.Session
	Log     *zap.Logger
	config  atomic.Value // *model.Config

	Server       *config.ServerStore
	DB           *database.Store
	Confirm      confirm.Store
	Usage        *usage.Limiter
	Memory       *memory.Store
	API          platform.API
	Resolver     *platform.Resolver
	Orchestrator *moderation.Orchestrator
	Router       *router.Router
	Chat         llm.CompletionService
	Vision       *llm.Vision
	Wiki         *wiki.Summarizer
	Images       *images.Client
	Respond      *utils.Responder

	CommandHandlers map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)

	redis *goredis.Client
}

func (b *Bot) GetConfig() *model.Config {
	return b.config.Load().(*model.Config)
}

// SetConfig swaps the live configuration.
func (b *Bot) SetConfig(cfg *model.Config) {
	b.config.Store(cfg)
}

func (b *Bot) GetSession() *discordgo.Session {
	return b.Session
}

// New builds the session and every collaborator. Nothing connects to
// Discord until Run.
func New(ctx context.Context, cfg *model.Config, log *zap.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	dg.StateEnabled = true
	dg.State.TrackMembers = true
	dg.State.TrackRoles = true

	b := &Bot{Session: dg, Log: log}
	b.SetConfig(cfg)

	b.Server, err = config.NewServerStore(cfg.ConfigFile, log)
	if err != nil {
		return nil, err
	}
	b.DB, err = database.Init(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		b.redis, err = confirm.NewRedisClient(cfg.RedisURL)
		if err != nil {
			b.DB.Close()
			return nil, err
		}
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.DB.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b.Confirm = confirm.NewRedisStore(b.redis, cfg.ConfirmTTL)
		log.Info("using redis confirmation store")
	} else {
		b.Confirm = confirm.NewMemoryStore(cfg.ConfirmTTL)
	}

	b.Usage, err = usage.New(ctx, cfg.Usage, b.DB, usage.WithLogger(log))
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Memory = memory.New(cfg.ChatHistoryLimit)

	chat := llm.New(llm.Config{APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL, Model: cfg.ChatModel}, log)
	routerLLM := llm.New(llm.Config{APIKey: cfg.GroqRouterAPIKey, BaseURL: cfg.GroqBaseURL, Model: cfg.RouterModel}, log)
	visionLLM := llm.New(llm.Config{APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL, Model: cfg.VisionModel}, log)
	b.Chat = chat
	b.Vision = llm.NewVision(visionLLM)
	b.Wiki = wiki.New(chat, nil, log)
	b.Router = router.New(routerLLM, log, router.WithContextLines(b.Server.ContextLines))
	b.Images = images.New(images.Config{
		BaseURL:      cfg.PollinationsBaseURL,
		FreeModel:    cfg.ImageFreeModel,
		PremiumModel: cfg.ImagePremiumModel,
		APIToken:     cfg.PollinationsAPIToken,
	}, log)

	b.API = platform.NewSessionAPI(dg)
	b.Resolver = platform.NewResolver(b.API)
	b.Orchestrator = moderation.NewOrchestrator(moderation.Deps{
		Resolver: b.Resolver,
		Executor: platform.NewExecutor(b.API, b.Resolver),
		Store:    b.Confirm,
		Parser:   moderation.NewModelParser(routerLLM, log),
		Audit:    b.DB,
		Logger:   log,
	})
	b.Respond = utils.NewResponder(dg, log)
	return b, nil
}

// ReloadConfig rereads the environment and the server document and swaps
// the live config.
func (b *Bot) ReloadConfig() error {
	b.Log.Info("reloading configuration")
	newCfg, err := config.Load(b.Log)
	if err != nil {
		b.Log.Error("failed to reload config", zap.Error(err))
		return err
	}
	if _, err := b.Server.Reload(); err != nil {
		b.Log.Error("failed to reload server config", zap.Error(err))
		return err
	}
	b.SetConfig(newCfg)
	b.Log.Info("configuration reloaded")
	if err := utils.LogInfo(b.Session, newCfg.LogChannelID, "Config", "Reload", "Configuración recargada."); err != nil {
		b.Log.Warn("failed to send reload log", zap.Error(err))
	}
	return nil
}

// RegisterCommands overwrites the application commands, globally or for
// one guild.
func (b *Bot) RegisterCommands(guildID string, cmds []*discordgo.ApplicationCommand) error {
	appID := b.GetConfig().AppID
	if appID == "" && b.Session.State != nil && b.Session.State.User != nil {
		appID = b.Session.State.User.ID
	}
	if appID == "" {
		return fmt.Errorf("no application id to register commands with")
	}
	registered, err := b.Session.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
	if err != nil {
		return fmt.Errorf("cannot register commands for guild %q: %w", guildID, err)
	}
	b.Log.Info("commands registered", zap.String("guild", guildID), zap.Int("count", len(registered)))
	return nil
}

// SweepConfirmations drops expired in-memory records. Redis expires keys
// itself, so there it only refreshes the pending gauge.
func (b *Bot) SweepConfirmations() int {
	switch st := b.Confirm.(type) {
	case *confirm.MemoryStore:
		return st.Sweep()
	case *confirm.RedisStore:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := st.Pending(ctx); err != nil {
			b.Log.Warn("failed to count pending confirmations", zap.Error(err))
		}
	}
	return 0
}

func (b *Bot) RolloverUsage(ctx context.Context) bool {
	return b.Usage.Rollover(ctx)
}

func (b *Bot) UpdatePresence() error {
	return b.Session.UpdateGameStatus(0, Presence)
}

func (b *Bot) Close() {
	b.Log.Info("gracefully shutting down")
	if err := b.Session.Close(); err != nil {
		b.Log.Warn("failed to close session", zap.Error(err))
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.DB != nil {
		if err := b.DB.Close(); err != nil {
			b.Log.Warn("failed to close database", zap.Error(err))
		}
	}
}
