package commands

import (
	"ceniza-bot/commands/defs"

	"github.com/bwmarrin/discordgo"
)

// All returns every application command the bot registers.
func All() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		defs.Kick,
		defs.Ban,
		defs.Timeout,
		defs.Nickname,
		defs.Role,
		defs.ModLog,
		defs.Draw,
		defs.Edit,
		defs.Reset,
		defs.Usage,
		defs.ServerStatus,
		defs.Wiki,
		defs.Config,
	}
}
