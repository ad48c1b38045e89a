package model

import (
	"context"
	"time"
)

// Member is a guild member as seen by the moderation core.
type Member interface {
	ID() string
	DisplayName() string
	// Permissions is the guild-level permission bitset.
	Permissions() int64
	// HighestPosition is the position of the member's top role; owners
	// report the maximum int.
	HighestPosition() int
	Kickable() bool
	Bannable() bool
	Manageable() bool
	Moderatable() bool
}

// Role is a guild role.
type Role interface {
	ID() string
	Name() string
	Position() int
	Managed() bool
}

// IdentityResolver looks up members and roles. A reference that matches
// nothing returns a nil value and a nil error.
type IdentityResolver interface {
	ResolveMember(ctx context.Context, guildID, ref string) (Member, error)
	ResolveRole(ctx context.Context, guildID, ref string) (Role, error)
	Self(ctx context.Context, guildID string) (Member, error)
}

// Result is the outcome of an executed action. Expected refusals are
// reported with OK false and a reason; error returns are for transport
// failures.
type Result struct {
	OK     bool
	Reason string
}

func Ok() Result { return Result{OK: true} }

func Fail(reason string) Result { return Result{Reason: reason} }

// ActionExecutor performs moderation actions on the platform.
type ActionExecutor interface {
	Kick(ctx context.Context, guildID string, requester, target Member, reason string) (Result, error)
	Ban(ctx context.Context, guildID string, requester, target Member, deleteMessageSeconds int, reason string) (Result, error)
	Timeout(ctx context.Context, guildID string, requester, target Member, d time.Duration, reason string) (Result, error)
	SetNickname(ctx context.Context, guildID string, requester, target Member, nickname, reason string) (Result, error)
	AddRole(ctx context.Context, guildID string, requester, target Member, role Role, reason string) (Result, error)
	RemoveRole(ctx context.Context, guildID string, requester, target Member, role Role, reason string) (Result, error)
}

// ConfigProvider gives access to the live bot configuration.
type ConfigProvider interface {
	GetConfig() *Config
}
