package database

import (
	"context"
	"fmt"
	"time"

	"ceniza-bot/model"
)

// RecordAction appends rec to the moderation log.
func (s *Store) RecordAction(ctx context.Context, rec model.ModerationRecord) error {
	query := `INSERT INTO moderation_log (action_id, guild_id, channel_id, requester_id, target_id, action_type, reason, detail, surface, success, fail_reason, timestamp)
			  VALUES (:action_id, :guild_id, :channel_id, :requester_id, :target_id, :action_type, :reason, :detail, :surface, :success, :fail_reason, :timestamp)`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert moderation record: %w", err)
	}
	return nil
}

// RecordsForTarget returns the actions taken against userID in guildID,
// newest first, optionally limited to those since a given time.
func (s *Store) RecordsForTarget(ctx context.Context, guildID, userID string, since *time.Time) ([]model.ModerationRecord, error) {
	var records []model.ModerationRecord
	query := "SELECT * FROM moderation_log WHERE guild_id = ? AND target_id = ?"
	args := []interface{}{guildID, userID}

	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, since.Unix())
	}
	query += " ORDER BY timestamp DESC, log_id DESC"

	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get moderation records for user %s: %w", userID, err)
	}
	return records, nil
}

// RecentRecords returns the last limit actions in guildID.
func (s *Store) RecentRecords(ctx context.Context, guildID string, limit int) ([]model.ModerationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []model.ModerationRecord
	query := "SELECT * FROM moderation_log WHERE guild_id = ? ORDER BY timestamp DESC, log_id DESC LIMIT ?"
	if err := s.db.SelectContext(ctx, &records, query, guildID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent moderation records: %w", err)
	}
	return records, nil
}
