package utils

import "github.com/bwmarrin/discordgo"

const (
	msgAdminOnly = "Solo los administradores pueden usar este comando."
	msgDMOnly    = "Este comando solo funciona dentro de un servidor."
)

func contains(slice []string, item string) bool {
	for _, a := range slice {
		if a == item {
			return true
		}
	}
	return false
}

// CheckAdmin decides whether a user may run admin commands. Users listed in
// adminUserIDs always pass; otherwise the guild administrator permission is
// required. The string is the refusal shown to the user.
func CheckAdmin(userID, guildID string, perms int64, adminUserIDs []string) (bool, string) {
	if contains(adminUserIDs, userID) {
		return true, ""
	}
	if guildID == "" {
		return false, msgDMOnly
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true, ""
	}
	return false, msgAdminOnly
}
