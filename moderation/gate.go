package moderation

import (
	"ceniza-bot/model"

	"github.com/bwmarrin/discordgo"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	OK     bool
	Reason string
}

func allow() Decision             { return Decision{OK: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Denial reasons, one per gate check.
const (
	ReasonRequesterPermission = "No tienes permisos suficientes para esa acción."
	ReasonBotPermission       = "No tengo permisos suficientes para esa acción."
	ReasonSelfTarget          = "No puedes aplicarte esta acción a ti mismo."
	ReasonBotHierarchy        = "No puedo gestionar a ese usuario: su rol está igual o por encima del mío."
	ReasonRequesterHierarchy  = "No puedes gestionar a alguien con un rol igual o superior al tuyo."
	ReasonRoleHierarchy       = "No puedo gestionar ese rol: está igual o por encima de mi rol más alto."
	ReasonRoleManaged         = "Ese rol lo gestiona una integración y no se puede asignar a mano."
)

// modPermissions are the permissions that make a member a moderator.
const modPermissions = discordgo.PermissionKickMembers |
	discordgo.PermissionBanMembers |
	discordgo.PermissionModerateMembers |
	discordgo.PermissionManageNicknames |
	discordgo.PermissionManageRoles

// HasPermission reports whether m holds perm or the administrator override.
func HasPermission(m model.Member, perm int64) bool {
	p := m.Permissions()
	return p&discordgo.PermissionAdministrator != 0 || p&perm == perm
}

// IsAdmin reports whether m holds the administrator override.
func IsAdmin(m model.Member) bool {
	return m.Permissions()&discordgo.PermissionAdministrator != 0
}

// HasAnyModPermission reports whether m could request any moderation action.
func HasAnyModPermission(m model.Member) bool {
	return IsAdmin(m) || m.Permissions()&modPermissions != 0
}

// RequiredPermission maps an action to the permission it needs.
func RequiredPermission(t model.ActionType) int64 {
	switch t {
	case model.ActionKick:
		return discordgo.PermissionKickMembers
	case model.ActionBan:
		return discordgo.PermissionBanMembers
	case model.ActionTimeout:
		return discordgo.PermissionModerateMembers
	case model.ActionNicknameSet:
		return discordgo.PermissionManageNicknames
	case model.ActionRoleAdd, model.ActionRoleRemove:
		return discordgo.PermissionManageRoles
	default:
		return discordgo.PermissionAdministrator
	}
}

// CanManage decides whether requester may have self (the bot) apply an
// action needing perm to target. Checks run in a fixed order and the first
// failure wins.
func CanManage(requester, self, target model.Member, perm int64) Decision {
	if !HasPermission(requester, perm) {
		return deny(ReasonRequesterPermission)
	}
	if !HasPermission(self, perm) {
		return deny(ReasonBotPermission)
	}
	if requester.ID() == target.ID() {
		return deny(ReasonSelfTarget)
	}
	if self.HighestPosition() <= target.HighestPosition() {
		return deny(ReasonBotHierarchy)
	}
	if !IsAdmin(requester) && requester.HighestPosition() <= target.HighestPosition() {
		return deny(ReasonRequesterHierarchy)
	}
	return allow()
}

// CanManageRole checks that self sits strictly above role.
func CanManageRole(self model.Member, role model.Role) Decision {
	if role.Managed() {
		return deny(ReasonRoleManaged)
	}
	if role.Position() >= self.HighestPosition() {
		return deny(ReasonRoleHierarchy)
	}
	return allow()
}
