package defs

import "github.com/bwmarrin/discordgo"

var sizeMin float64 = 256

func sizeOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    false,
		MinValue:    &sizeMin,
		MaxValue:    1536,
	}
}

var Draw = &discordgo.ApplicationCommand{
	Name:        "draw",
	Description: "Generate an image",
	NameLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "dibujar",
	},
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Genera una imagen",
	},
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "prompt",
			Description: "Qué querés que dibuje",
			Required:    true,
			MaxLength:   1000,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "model",
			Description: "Modelo (pro usa tu cuota diaria)",
			Required:    false,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Gratis", Value: "free"},
				{Name: "Pro", Value: "pro"},
			},
		},
		sizeOption("width", "Ancho (256-1536)"),
		sizeOption("height", "Alto (256-1536)"),
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "seed",
			Description: "Semilla para repetir un resultado",
			Required:    false,
			MinValue:    new(float64),
		},
	},
}

var Edit = &discordgo.ApplicationCommand{
	Name:        "edit",
	Description: "Edit an image",
	NameLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "editar",
	},
	DescriptionLocalizations: &map[discordgo.Locale]string{
		discordgo.SpanishES: "Edita una imagen",
	},
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "prompt",
			Description: "Qué cambio querés hacer",
			Required:    true,
			MaxLength:   1000,
		},
		{
			Type:        discordgo.ApplicationCommandOptionAttachment,
			Name:        "image",
			Description: "Imagen a editar",
			Required:    false,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "url",
			Description: "URL directa de la imagen (si no adjuntás una)",
			Required:    false,
		},
	},
}
