package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the bot's sqlite database: the moderation audit log and the
// premium usage counters.
type Store struct {
	db *sqlx.DB
}

// Init opens (creating if needed) the database at dbPath and ensures all
// tables exist.
func Init(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	moderationSchema := `CREATE TABLE IF NOT EXISTS moderation_log (
	          log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	          action_id TEXT NOT NULL,
	          guild_id TEXT NOT NULL,
	          channel_id TEXT NOT NULL DEFAULT '',
	          requester_id TEXT NOT NULL,
	          target_id TEXT NOT NULL,
	          action_type TEXT NOT NULL,
	          reason TEXT NOT NULL DEFAULT '',
	          detail TEXT NOT NULL DEFAULT '{}',
	          success INTEGER NOT NULL,
	          timestamp INTEGER NOT NULL
	      );`
	if _, err := db.Exec(moderationSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create moderation_log table: %w", err)
	}

	// Columns added after the first release.
	alterStatements := []string{
		`ALTER TABLE moderation_log ADD COLUMN surface TEXT DEFAULT ''`,
		`ALTER TABLE moderation_log ADD COLUMN fail_reason TEXT DEFAULT ''`,
	}
	for _, stmt := range alterStatements {
		_, err = db.Exec(stmt)
		if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			db.Close()
			return nil, fmt.Errorf("failed to execute ALTER statement %s: %w", stmt, err)
		}
	}

	usageSchema := []string{
		`CREATE TABLE IF NOT EXISTS usage_days (
	          day TEXT PRIMARY KEY,
	          global_used INTEGER NOT NULL DEFAULT 0
	      );`,
		`CREATE TABLE IF NOT EXISTS usage_users (
	          day TEXT NOT NULL,
	          user_id TEXT NOT NULL,
	          edit_used INTEGER NOT NULL DEFAULT 0,
	          gen_used INTEGER NOT NULL DEFAULT 0,
	          PRIMARY KEY (day, user_id)
	      );`,
		`CREATE INDEX IF NOT EXISTS idx_moderation_log_target ON moderation_log (guild_id, target_id);`,
	}
	for _, stmt := range usageSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create usage tables: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }
