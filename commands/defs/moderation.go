package defs

import "github.com/bwmarrin/discordgo"

var (
	kickPerm     int64 = discordgo.PermissionKickMembers
	banPerm      int64 = discordgo.PermissionBanMembers
	moderatePerm int64 = discordgo.PermissionModerateMembers
	nickPerm     int64 = discordgo.PermissionManageNicknames
	rolesPerm    int64 = discordgo.PermissionManageRoles
	noDM               = false
	minLogDays         = 1.0
)

func userOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    true,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Razón (queda en el registro)",
		Required:    false,
		MaxLength:   400,
	}
}

var Kick = &discordgo.ApplicationCommand{
	Name:                     "kick",
	Description:              "Kick a member (asks for confirmation)",
	DefaultMemberPermissions: &kickPerm,
	DMPermission:             &noDM,
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Expulsa a un miembro (pide confirmación)",
	},
	Options: []*discordgo.ApplicationCommandOption{
		userOption("Miembro a expulsar"),
		reasonOption(),
	},
}

var Ban = &discordgo.ApplicationCommand{
	Name:                     "ban",
	Description:              "Ban a member (asks for confirmation)",
	DefaultMemberPermissions: &banPerm,
	DMPermission:             &noDM,
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Banea a un miembro (pide confirmación)",
	},
	Options: []*discordgo.ApplicationCommandOption{
		userOption("Miembro a banear"),
		reasonOption(),
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "delete_days",
			Description: "Días de mensajes a borrar (0-7)",
			Required:    false,
			MinValue:    new(float64),
			MaxValue:    7,
		},
	},
}

var Timeout = &discordgo.ApplicationCommand{
	Name:                     "timeout",
	Description:              "Time out a member, or remove a timeout",
	DefaultMemberPermissions: &moderatePerm,
	DMPermission:             &noDM,
	NameLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "silenciar",
	},
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Silencia a un miembro o quita el silencio",
	},
	Options: []*discordgo.ApplicationCommandOption{
		userOption("Miembro a silenciar"),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "duration",
			Description: "Duración: 10m, 2h, 1d... (0 o remove para quitarlo)",
			Required:    true,
		},
		reasonOption(),
	},
}

var Nickname = &discordgo.ApplicationCommand{
	Name:                     "nickname",
	Description:              "Change a member's nickname",
	DefaultMemberPermissions: &nickPerm,
	DMPermission:             &noDM,
	NameLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "apodo",
	},
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Cambia el apodo de un miembro",
	},
	Options: []*discordgo.ApplicationCommandOption{
		userOption("Miembro"),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "nickname",
			Description: "Nuevo apodo",
			Required:    true,
			MaxLength:   32,
		},
		reasonOption(),
	},
}

func roleSubcommand(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			userOption("Miembro"),
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "Rol",
				Required:    true,
			},
			reasonOption(),
		},
	}
}

var Role = &discordgo.ApplicationCommand{
	Name:                     "role",
	Description:              "Add or remove a role from a member",
	DefaultMemberPermissions: &rolesPerm,
	DMPermission:             &noDM,
	NameLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "rol",
	},
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Da o quita un rol a un miembro",
	},
	Options: []*discordgo.ApplicationCommandOption{
		roleSubcommand("add", "Dar un rol"),
		roleSubcommand("remove", "Quitar un rol"),
	},
}

var ModLog = &discordgo.ApplicationCommand{
	Name:                     "modlog",
	Description:              "Show recent moderation actions",
	DefaultMemberPermissions: &moderatePerm,
	DMPermission:             &noDM,
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Muestra las últimas acciones de moderación",
	},
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Solo las acciones contra este miembro",
			Required:    false,
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "days",
			Description: "Solo los últimos N días (con user)",
			Required:    false,
			MinValue:    &minLogDays,
			MaxValue:    365,
		},
	},
}
