package model

import "time"

// ActionType identifies a moderation action.
type ActionType string

const (
	ActionKick        ActionType = "kick"
	ActionBan         ActionType = "ban"
	ActionTimeout     ActionType = "timeout"
	ActionNicknameSet ActionType = "nickname_set"
	ActionRoleAdd     ActionType = "role_add"
	ActionRoleRemove  ActionType = "role_remove"
)

// ActionTypes lists every supported action in a stable order.
var ActionTypes = []ActionType{
	ActionKick,
	ActionBan,
	ActionTimeout,
	ActionNicknameSet,
	ActionRoleAdd,
	ActionRoleRemove,
}

func (t ActionType) Valid() bool {
	for _, a := range ActionTypes {
		if a == t {
			return true
		}
	}
	return false
}

// IsRole reports whether the action mutates a member's roles.
func (t ActionType) IsRole() bool {
	return t == ActionRoleAdd || t == ActionRoleRemove
}

// Label is the user facing name shown in confirmation prompts.
func (t ActionType) Label() string {
	switch t {
	case ActionKick:
		return "Expulsar"
	case ActionBan:
		return "Banear"
	case ActionTimeout:
		return "Timeout"
	case ActionNicknameSet:
		return "Cambiar apodo"
	case ActionRoleAdd:
		return "Dar rol"
	case ActionRoleRemove:
		return "Quitar rol"
	default:
		return string(t)
	}
}

// Action is the structured form of a moderation request. Which optional
// fields are meaningful depends on Type.
type Action struct {
	Type                 ActionType    `json:"type"`
	TargetUserID         string        `json:"target_user_id"`
	Reason               string        `json:"reason,omitempty"`
	DeleteMessageSeconds int           `json:"delete_message_seconds,omitempty"`
	Duration             time.Duration `json:"duration,omitempty"`
	NewNickname          string        `json:"new_nickname,omitempty"`

	// RoleRef is the raw role reference as written by the requester.
	// RoleID and RoleName are filled once the reference is resolved.
	RoleRef  string `json:"role_ref,omitempty"`
	RoleID   string `json:"role_id,omitempty"`
	RoleName string `json:"role_name,omitempty"`
}

// Origin records where a request came from. It is informational only.
type Origin struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id,omitempty"`
	Surface   string `json:"surface"`
}

const (
	SurfaceMessage = "message"
	SurfaceSlash   = "slash"
)

// PendingAction is an authorized action waiting for its requester to
// confirm or cancel it. Records are immutable once created.
type PendingAction struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	RequesterID string    `json:"requester_id"`
	Action      Action    `json:"action"`
	Origin      Origin    `json:"origin"`
}

// Expired reports whether the record has reached ttl at now.
func (p *PendingAction) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) >= ttl
}

// ExpiresAt returns the instant the record stops being confirmable.
func (p *PendingAction) ExpiresAt(ttl time.Duration) time.Time {
	return p.CreatedAt.Add(ttl)
}
