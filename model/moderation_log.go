package model

// ModerationRecord is one executed (or failed) moderation action.
// The database table is named 'moderation_log'.
type ModerationRecord struct {
	LogID       int64  `db:"log_id"` // Primary Key, Auto-increment
	ActionID    string `db:"action_id"`
	GuildID     string `db:"guild_id"`
	ChannelID   string `db:"channel_id"`
	RequesterID string `db:"requester_id"`
	TargetID    string `db:"target_id"`
	ActionType  string `db:"action_type"`
	Reason      string `db:"reason"`
	Detail      string `db:"detail"` // JSON with type specific fields
	Surface     string `db:"surface"`
	Success     bool   `db:"success"`
	FailReason  string `db:"fail_reason"`
	Timestamp   int64  `db:"timestamp"`
}
