package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GROQ_API_KEY", "gsk")
	t.Setenv("CHAT_HISTORY_LIMIT", "2")
	t.Setenv("USAGE_GEN_PER_DAY", "not-a-number")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.BotToken)
	assert.Equal(t, "gsk", cfg.GroqRouterAPIKey, "router key falls back to the chat key")
	assert.Equal(t, DefaultConfigFile, cfg.ConfigFile)
	assert.Equal(t, 4, cfg.ChatHistoryLimit)
	assert.Equal(t, 15, cfg.Usage.GlobalPerDay)
	assert.Equal(t, 1, cfg.Usage.GeneratePerDay)
	assert.Equal(t, 120*time.Second, cfg.ConfirmTTL)
	assert.Equal(t, []string{"ceniza", "cenizagpt"}, cfg.Prefixes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CONFIRM_TTL", "45s")
	t.Setenv("BOT_PREFIXES", " ceniza , ash ,")
	t.Setenv("ADMIN_USER_IDS", "1,2")
	t.Setenv("DEBUG", "true")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.ConfirmTTL)
	assert.Equal(t, []string{"ceniza", "ash"}, cfg.Prefixes)
	assert.Equal(t, []string{"1", "2"}, cfg.AdminUserIDs)
	assert.True(t, cfg.Debug)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	_, err := Load(zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingToken)

	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CONFIRM_TTL", "-1s")
	_, err = Load(zap.NewNop())
	assert.Error(t, err)
}

func TestServerStoreCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "serverConfig.json")
	s, err := NewServerStore(path, zap.NewNop())
	require.NoError(t, err)

	cfg := s.Get()
	assert.Equal(t, "ceniza.sytes.net", cfg.IP)
	assert.Equal(t, "8162", cfg.Port)
	assert.Equal(t, "Ser respetuosos.", cfg.Rules)
	assert.Equal(t, 0.5, cfg.LLM.Temperature)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Empty(t, cfg.Context)

	_, err = os.Stat(path)
	assert.NoError(t, err, "a missing file is written out")
}

func TestServerStoreEditsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serverConfig.json")
	s, err := NewServerStore(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.SetPath([]string{"ip"}, "play.example.net"))
	require.NoError(t, s.SetPath([]string{"LLM", "temperature"}, "0.8"))
	require.NoError(t, s.AppendContext("Nunca compartas la IP privada"))
	require.NoError(t, s.AppendContext("El canal #reglas tiene las normas"))
	require.NoError(t, s.AppendList("bosses", "Moon Lord"))
	require.NoError(t, s.AppendList("events", "Torneo sábado"))

	reopened, err := NewServerStore(path, zap.NewNop())
	require.NoError(t, err)
	cfg := reopened.Get()
	assert.Equal(t, "play.example.net", cfg.IP)
	assert.Equal(t, 0.8, cfg.LLM.Temperature)
	assert.Equal(t, []string{"Nunca compartas la IP privada", "El canal #reglas tiene las normas"}, cfg.Context)
	assert.Equal(t, []string{"Moon Lord"}, cfg.Bosses)
	assert.Equal(t, []string{"Torneo sábado"}, cfg.Events)

	require.NoError(t, reopened.ClearContext())
	require.NoError(t, reopened.ClearList("bosses"))
	cfg, err = reopened.Reload()
	require.NoError(t, err)
	assert.Empty(t, cfg.Context)
	assert.Empty(t, cfg.Bosses)
	assert.Equal(t, []string{"Torneo sábado"}, cfg.Events)
}

func TestServerStoreRejectsUnknownPath(t *testing.T) {
	s, err := NewServerStore(filepath.Join(t.TempDir(), "c.json"), zap.NewNop())
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetPath([]string{"discord", "token"}, "x"), ErrInvalidPath)
	assert.ErrorIs(t, s.ClearList("rules"), ErrInvalidPath)
	assert.Error(t, s.AppendContext("  "))
}

func TestServerStoreReloadSeesExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	s, err := NewServerStore(path, zap.NewNop())
	require.NoError(t, err)

	doc, err := json.Marshal(map[string]any{"ip": "otra.ip", "port": "7777", "context": []string{"linea"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, doc, 0o644))

	cfg, err := s.Reload()
	require.NoError(t, err)
	assert.Equal(t, "otra.ip", cfg.IP)
	assert.Equal(t, "7777", cfg.Port)
	assert.Equal(t, []string{"linea"}, cfg.Context)
	assert.Equal(t, "Ser respetuosos.", cfg.Rules, "missing keys keep their defaults")
}

func TestServerStoreBrokenFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewServerStore(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "ceniza.sytes.net", s.Get().IP)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw), "a broken file is not overwritten on load")
}
