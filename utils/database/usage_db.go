package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ceniza-bot/model"
)

type usageUserRow struct {
	UserID string `db:"user_id"`
	model.UserUsage
}

// LoadUsage returns the most recent day bucket, or a zero counter when the
// tables are empty.
func (s *Store) LoadUsage(ctx context.Context) (model.UsageCounter, error) {
	var day struct {
		Day        string `db:"day"`
		GlobalUsed int    `db:"global_used"`
	}
	err := s.db.GetContext(ctx, &day, "SELECT day, global_used FROM usage_days ORDER BY day DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return model.UsageCounter{}, nil
	}
	if err != nil {
		return model.UsageCounter{}, fmt.Errorf("failed to load usage day: %w", err)
	}

	var rows []usageUserRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT user_id, edit_used, gen_used FROM usage_users WHERE day = ?", day.Day); err != nil {
		return model.UsageCounter{}, fmt.Errorf("failed to load usage for %s: %w", day.Day, err)
	}

	c := model.NewUsageCounter(day.Day)
	c.GlobalUsed = day.GlobalUsed
	for _, r := range rows {
		c.PerUser[r.UserID] = r.UserUsage
	}
	return c, nil
}

// SaveUsage replaces the stored bucket for c.Day and drops older days.
func (s *Store) SaveUsage(ctx context.Context, c model.UsageCounter) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM usage_days WHERE day <> ?", c.Day); err != nil {
		return fmt.Errorf("failed to prune usage days: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM usage_users WHERE day <> ?", c.Day); err != nil {
		return fmt.Errorf("failed to prune usage users: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO usage_days (day, global_used) VALUES (?, ?)
		 ON CONFLICT(day) DO UPDATE SET global_used = excluded.global_used`,
		c.Day, c.GlobalUsed); err != nil {
		return fmt.Errorf("failed to save usage day: %w", err)
	}
	for userID, u := range c.PerUser {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO usage_users (day, user_id, edit_used, gen_used) VALUES (?, ?, ?, ?)
			 ON CONFLICT(day, user_id) DO UPDATE SET edit_used = excluded.edit_used, gen_used = excluded.gen_used`,
			c.Day, userID, u.Edit, u.Generate); err != nil {
			return fmt.Errorf("failed to save usage for user %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage: %w", err)
	}
	return nil
}
