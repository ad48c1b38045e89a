package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ceniza-bot/model"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrInvalidPath is returned by SetPath for keys outside the document.
var ErrInvalidPath = errors.New("invalid config path")

// settablePaths are the keys SetPath accepts.
var settablePaths = map[string]bool{
	"ip":              true,
	"port":            true,
	"bosses":          true,
	"events":          true,
	"context":         true,
	"rules":           true,
	"llm.temperature": true,
	"llm.max_tokens":  true,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ip", "ceniza.sytes.net")
	v.SetDefault("port", "8162")
	v.SetDefault("bosses", []string{})
	v.SetDefault("events", []string{})
	v.SetDefault("context", []string{})
	v.SetDefault("rules", "Ser respetuosos.")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 500)
}

// ServerStore is the editable server document (address, bosses, events,
// rules, context lines and chat tuning) persisted as JSON. It is safe for
// concurrent use.
type ServerStore struct {
	path string
	log  *zap.Logger

	mu  sync.RWMutex
	v   *viper.Viper
	cur model.ServerConfig
}

// NewServerStore loads the document at path. A missing file is created
// with the defaults; an unreadable one is logged and the defaults are used.
func NewServerStore(path string, log *zap.Logger) (*ServerStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ServerStore{path: path, log: log.Named("server_config")}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ServerStore) load() (*viper.Viper, bool, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	setDefaults(v)

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return v, true, nil
	}
	if err := v.ReadInConfig(); err != nil {
		s.log.Warn("failed to read server config, using defaults", zap.String("path", s.path), zap.Error(err))
		fresh := viper.New()
		fresh.SetConfigFile(s.path)
		fresh.SetConfigType("json")
		setDefaults(fresh)
		return fresh, false, nil
	}
	return v, false, nil
}

func decode(v *viper.Viper) (model.ServerConfig, error) {
	var cfg model.ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return model.ServerConfig{}, fmt.Errorf("failed to decode server config: %w", err)
	}
	return cfg, nil
}

// Reload rereads the file and returns the new document.
func (s *ServerStore) Reload() (model.ServerConfig, error) {
	v, missing, err := s.load()
	if err != nil {
		return model.ServerConfig{}, err
	}
	cfg, err := decode(v)
	if err != nil {
		return model.ServerConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
	s.cur = cfg
	if missing {
		if err := s.saveLocked(); err != nil {
			return model.ServerConfig{}, err
		}
		s.log.Info("created server config with defaults", zap.String("path", s.path))
	}
	return cloneServerConfig(cfg), nil
}

// Get returns a copy of the current document.
func (s *ServerStore) Get() model.ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneServerConfig(s.cur)
}

// ContextLines returns the configured context lines.
func (s *ServerStore) ContextLines() []string {
	return s.Get().Context
}

// SetPath sets the value at segments (e.g. ["llm", "temperature"]) and
// saves the document.
func (s *ServerStore) SetPath(segments []string, value any) error {
	for i := range segments {
		segments[i] = strings.ToLower(strings.TrimSpace(segments[i]))
	}
	key := strings.Join(segments, ".")
	if !settablePaths[key] {
		return fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.v.Get(key)
	s.v.Set(key, value)
	cfg, err := decode(s.v)
	if err != nil {
		s.v.Set(key, prev)
		return err
	}
	s.cur = cfg
	return s.saveLocked()
}

// AppendContext adds one context line and saves.
func (s *ServerStore) AppendContext(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return errors.New("empty context line")
	}
	return s.setList("context", func(cfg *model.ServerConfig) {
		cfg.Context = append(cfg.Context, line)
	})
}

// ClearContext removes every context line and saves.
func (s *ServerStore) ClearContext() error {
	return s.setList("context", func(cfg *model.ServerConfig) { cfg.Context = []string{} })
}

// AppendList adds value to the bosses or events list.
func (s *ServerStore) AppendList(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty value")
	}
	return s.setList(key, func(cfg *model.ServerConfig) {
		switch key {
		case "bosses":
			cfg.Bosses = append(append([]string(nil), cfg.Bosses...), value)
		case "events":
			cfg.Events = append(append([]string(nil), cfg.Events...), value)
		}
	})
}

// ClearList empties the bosses or events list.
func (s *ServerStore) ClearList(key string) error {
	return s.setList(key, func(cfg *model.ServerConfig) {
		switch key {
		case "bosses":
			cfg.Bosses = []string{}
		case "events":
			cfg.Events = []string{}
		}
	})
}

func (s *ServerStore) setList(key string, fn func(*model.ServerConfig)) error {
	if key != "bosses" && key != "events" && key != "context" {
		return fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := cloneServerConfig(s.cur)
	fn(&cfg)
	switch key {
	case "bosses":
		s.v.Set(key, cfg.Bosses)
	case "events":
		s.v.Set(key, cfg.Events)
	case "context":
		s.v.Set(key, cfg.Context)
	}
	s.cur = cfg
	return s.saveLocked()
}

// Save writes the current document to disk.
func (s *ServerStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *ServerStore) saveLocked() error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write server config: %w", err)
	}
	return nil
}

func cloneServerConfig(c model.ServerConfig) model.ServerConfig {
	c.Bosses = append([]string(nil), c.Bosses...)
	c.Events = append([]string(nil), c.Events...)
	c.Context = append([]string(nil), c.Context...)
	return c
}
