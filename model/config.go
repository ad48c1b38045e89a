package model

import "time"

// UsageLimits are the daily quotas for the premium image model.
type UsageLimits struct {
	GlobalPerDay   int
	EditPerDay     int
	GeneratePerDay int
}

// Config stores process configuration read from the environment.
type Config struct {
	BotToken     string
	AppID        string
	DevGuildID   string
	LogChannelID string
	AdminUserIDs []string

	GroqAPIKey       string
	GroqRouterAPIKey string
	GroqBaseURL      string
	ChatModel        string
	RouterModel      string
	VisionModel      string

	ConfigFile string
	DBPath     string

	ChatHistoryLimit int
	Usage            UsageLimits
	ConfirmTTL       time.Duration

	RedisURL    string
	MetricsAddr string
	Prefixes    []string
	Debug       bool

	PollinationsBaseURL  string
	ImageFreeModel       string
	ImagePremiumModel    string
	PollinationsAPIToken string
}

// LLMSettings tunes chat completions.
type LLMSettings struct {
	Temperature float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
}

// ServerConfig is the editable per-deployment document kept on disk.
type ServerConfig struct {
	IP      string      `mapstructure:"ip" json:"ip"`
	Port    string      `mapstructure:"port" json:"port"`
	Bosses  []string    `mapstructure:"bosses" json:"bosses"`
	Events  []string    `mapstructure:"events" json:"events"`
	Context []string    `mapstructure:"context" json:"context"`
	Rules   string      `mapstructure:"rules" json:"rules"`
	LLM     LLMSettings `mapstructure:"llm" json:"llm"`
}
