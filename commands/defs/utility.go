package defs

import "github.com/bwmarrin/discordgo"

var Reset = &discordgo.ApplicationCommand{
	Name:        "reset",
	Description: "Forget the recent chat history of this channel",
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Olvida el historial reciente de este canal",
	},
}

var Usage = &discordgo.ApplicationCommand{
	Name:        "usage",
	Description: "Show your remaining premium image quota",
	NameLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "cuota",
	},
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Muestra tus intentos restantes del modelo pro",
	},
}

var ServerStatus = &discordgo.ApplicationCommand{
	Name:        "serverstatus",
	Description: "Check the game server and the bot host",
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Revisa el servidor de Terraria y el host del bot",
	},
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "timeout_ms",
			Description: "Tiempo máximo de conexión en ms (500-10000)",
			Required:    false,
			MinValue:    &pingMin,
			MaxValue:    10000,
		},
	},
}

var pingMin float64 = 500

var Wiki = &discordgo.ApplicationCommand{
	Name:        "wiki",
	Description: "Summarize a wiki page or ask about it",
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Resume una página de la wiki o preguntá sobre ella",
	},
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "url",
			Description: "Link de la página",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "question",
			Description: "Pregunta (vacío para un resumen)",
			Required:    false,
		},
	},
}
