package defs

import "github.com/bwmarrin/discordgo"

var adminPerm int64 = discordgo.PermissionAdministrator

func textSubcommand(name, description, optName, optDescription string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optName,
				Description: optDescription,
				Required:    true,
			},
		},
	}
}

var Config = &discordgo.ApplicationCommand{
	Name:                     "config",
	Description:              "Edit the server document (admins only)",
	DefaultMemberPermissions: &adminPerm,
	DMPermission:             &noDM,
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Edita la configuración del servidor (solo admins)",
	},
	Options: []*discordgo.ApplicationCommandOption{
		textSubcommand("context-add", "Agrega una línea de contexto", "text", "Texto"),
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "context-clear",
			Description: "Borra todo el contexto",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "context-list",
			Description: "Lista las líneas de contexto",
		},
		textSubcommand("set-ip", "Cambia la IP del servidor", "ip", "IP o dominio"),
		textSubcommand("set-port", "Cambia el puerto del servidor", "port", "Puerto"),
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "reload",
			Description: "Recarga la configuración desde disco",
		},
	},
}
