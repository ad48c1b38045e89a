package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ceniza-bot/llm"
	"ceniza-bot/model"
	"ceniza-bot/stores/confirm"
	"ceniza-bot/stores/memory"
	"ceniza-bot/stores/usage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	DefaultConfigFile          = "data/serverConfig.json"
	DefaultDBPath              = "data/ceniza.db"
	DefaultPollinationsBaseURL = "https://image.pollinations.ai"
	DefaultImageFreeModel      = "flux"
	DefaultImagePremiumModel   = "nanobanana"
)

// ErrMissingToken is returned when DISCORD_TOKEN is not set.
var ErrMissingToken = errors.New("DISCORD_TOKEN environment variable not set")

// Load reads the process configuration from the environment, after loading
// a .env file when one exists.
func Load(log *zap.Logger) (*model.Config, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := godotenv.Load(); err != nil {
		log.Info(".env file not found, relying on environment variables")
	}

	cfg := &model.Config{
		BotToken:     os.Getenv("DISCORD_TOKEN"),
		AppID:        os.Getenv("APP_ID"),
		DevGuildID:   os.Getenv("DEV_GUILD_ID"),
		LogChannelID: os.Getenv("LOG_CHANNEL_ID"),
		AdminUserIDs: splitList(os.Getenv("ADMIN_USER_IDS")),

		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		GroqRouterAPIKey: os.Getenv("GROQ_ROUTER_API_KEY"),
		GroqBaseURL:      envOr("GROQ_BASE_URL", llm.DefaultBaseURL),
		ChatModel:        envOr("GROQ_MODEL", llm.DefaultModel),
		RouterModel:      envOr("GROQ_ROUTER_MODEL", llm.DefaultModel),
		VisionModel:      envOr("GROQ_VISION_MODEL", llm.DefaultVisionModel),

		ConfigFile: envOr("CONFIG_FILE", DefaultConfigFile),
		DBPath:     envOr("DB_PATH", DefaultDBPath),

		RedisURL:    os.Getenv("REDIS_URL"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		Prefixes:    splitList(envOr("BOT_PREFIXES", "ceniza,cenizagpt")),
		Debug:       parseBool(os.Getenv("DEBUG")),

		PollinationsBaseURL:  envOr("POLLINATIONS_BASE_URL", DefaultPollinationsBaseURL),
		ImageFreeModel:       envOr("POLLINATIONS_MODEL_FREE", DefaultImageFreeModel),
		ImagePremiumModel:    envOr("POLLINATIONS_MODEL_PREMIUM", DefaultImagePremiumModel),
		PollinationsAPIToken: os.Getenv("POLLINATIONS_API_TOKEN"),
	}

	if cfg.BotToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.AppID == "" {
		log.Warn("APP_ID not set, slash command registration will be skipped")
	}
	if cfg.LogChannelID == "" {
		log.Warn("LOG_CHANNEL_ID not set, log channel notifications are disabled")
	}
	if cfg.GroqAPIKey == "" {
		log.Warn("GROQ_API_KEY not set, chat and model parsing will fail")
	}
	if cfg.GroqRouterAPIKey == "" {
		cfg.GroqRouterAPIKey = cfg.GroqAPIKey
	}

	cfg.ChatHistoryLimit = intEnv(log, "CHAT_HISTORY_LIMIT", memory.DefaultHistoryLimit)
	if cfg.ChatHistoryLimit < memory.MinHistoryLimit {
		cfg.ChatHistoryLimit = memory.MinHistoryLimit
	}

	def := usage.DefaultLimits()
	cfg.Usage = model.UsageLimits{
		GlobalPerDay:   intEnv(log, "USAGE_GLOBAL_PER_DAY", def.GlobalPerDay),
		EditPerDay:     intEnv(log, "USAGE_EDIT_PER_DAY", def.EditPerDay),
		GeneratePerDay: intEnv(log, "USAGE_GEN_PER_DAY", def.GeneratePerDay),
	}

	cfg.ConfirmTTL = confirm.DefaultTTL
	if v := os.Getenv("CONFIRM_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid CONFIRM_TTL %q", v)
		}
		cfg.ConfirmTTL = d
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(log *zap.Logger, key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("invalid integer in environment, using default", zap.String("key", key), zap.Int("default", def), zap.Error(err))
		return def
	}
	return n
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
