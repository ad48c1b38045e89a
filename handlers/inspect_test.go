package handlers

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuildID = "900000000000000000"

func hidden() []*discordgo.PermissionOverwrite {
	return []*discordgo.PermissionOverwrite{{
		ID:   testGuildID,
		Type: discordgo.PermissionOverwriteTypeRole,
		Deny: discordgo.PermissionViewChannel,
	}}
}

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID:      testGuildID,
		Name:    "Ceniza Lunar",
		OwnerID: "1",
		Roles: []*discordgo.Role{
			{ID: testGuildID, Name: "@everyone", Permissions: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages},
			{ID: "500000000000000001", Name: "Admin", Position: 5},
			{ID: "500000000000000002", Name: "Miembro", Position: 1},
			{ID: "500000000000000003", Name: "VIP", Position: 3},
		},
		Channels: []*discordgo.Channel{
			{ID: "100000000000000001", Name: "Información", Type: discordgo.ChannelTypeGuildCategory, Position: 0},
			{ID: "100000000000000002", Name: "reglas", Type: discordgo.ChannelTypeGuildText, ParentID: "100000000000000001", Position: 1},
			{ID: "100000000000000003", Name: "anuncios", Type: discordgo.ChannelTypeGuildNews, ParentID: "100000000000000001", Position: 0},
			{ID: "100000000000000004", Name: "Comunidad", Type: discordgo.ChannelTypeGuildCategory, Position: 1},
			{ID: "100000000000000005", Name: "general", Type: discordgo.ChannelTypeGuildText, ParentID: "100000000000000004", Position: 0},
			{ID: "100000000000000006", Name: "memes", Type: discordgo.ChannelTypeGuildText, ParentID: "100000000000000004", Position: 1},
			{ID: "100000000000000007", Name: "staff", Type: discordgo.ChannelTypeGuildText, ParentID: "100000000000000004", Position: 2, PermissionOverwrites: hidden()},
			{ID: "100000000000000008", Name: "voz", Type: discordgo.ChannelTypeGuildVoice, Position: 9},
		},
	}
}

func channelByName(g *discordgo.Guild, name string) *discordgo.Channel {
	for _, ch := range g.Channels {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

func TestIsPublicChannel(t *testing.T) {
	g := testGuild()
	assert.True(t, isPublicChannel(g, channelByName(g, "general")))
	assert.False(t, isPublicChannel(g, channelByName(g, "staff")))
	assert.False(t, isPublicChannel(g, nil))
	assert.False(t, isPublicChannel(g, &discordgo.Channel{Type: discordgo.ChannelTypeDM}))

	// An allow overwrite reopens a channel @everyone cannot see by default.
	g.Roles[0].Permissions = 0
	secret := &discordgo.Channel{PermissionOverwrites: []*discordgo.PermissionOverwrite{{
		ID:    testGuildID,
		Type:  discordgo.PermissionOverwriteTypeRole,
		Allow: discordgo.PermissionViewChannel,
	}}}
	assert.True(t, isPublicChannel(g, secret))
	assert.False(t, isPublicChannel(g, channelByName(g, "general")))

	g.Roles[0].Permissions = discordgo.PermissionAdministrator
	assert.True(t, isPublicChannel(g, channelByName(g, "staff")))
}

func TestPublicChannelsOrder(t *testing.T) {
	g := testGuild()
	var names []string
	for _, ch := range publicChannels(g, false) {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"anuncios", "reglas", "voz", "general", "memes"}, names)
}

func TestFormatChannelList(t *testing.T) {
	g := testGuild()
	out := formatChannelList(g)
	assert.True(t, strings.HasPrefix(out, "**Información**\n- <#100000000000000003>"))
	assert.Contains(t, out, "**Comunidad**")
	assert.Contains(t, out, "**(Sin categoría)**\n- <#100000000000000008>")
	assert.NotContains(t, out, "100000000000000007")

	g.Roles[0].Permissions = 0
	assert.Contains(t, formatChannelList(g), "No encuentro canales públicos")
}

func TestFindRulesChannel(t *testing.T) {
	g := testGuild()
	ch := findRulesChannel(g)
	require.NotNil(t, ch)
	assert.Equal(t, "reglas", ch.Name)

	channelByName(g, "reglas").Name = "leer-primero"
	channelByName(g, "memes").Topic = "Las normas del servidor"
	ch = findRulesChannel(g)
	require.NotNil(t, ch)
	assert.Equal(t, "memes", ch.Name)
}

func TestFindChannel(t *testing.T) {
	g := testGuild()

	assert.Equal(t, "memes", findChannel(g, "<#100000000000000006>", true).Name)
	assert.Equal(t, "general", findChannel(g, "100000000000000005", true).Name)
	assert.Equal(t, "memes", findChannel(g, "meme", true).Name)
	assert.Equal(t, "anuncios", findChannel(g, "Anuncio", true).Name)
	assert.Nil(t, findChannel(g, "staff", true))
	assert.Equal(t, "staff", findChannel(g, "staff", false).Name)
	assert.Nil(t, findChannel(g, "completamente otra cosa", false))
	assert.Nil(t, findChannel(g, "  ", false))
}

func TestChannelQueryFrom(t *testing.T) {
	assert.Equal(t, "<#100000000000000006>", channelQueryFrom("para qué sirve <#100000000000000006>?"))
	assert.Equal(t, "memes", channelQueryFrom(`qué se hace en "memes"`))
	assert.Equal(t, "memes", channelQueryFrom("para qué es el canal de memes"))
	assert.Empty(t, channelQueryFrom("para qué es esto"))
}

func TestRolesList(t *testing.T) {
	g := testGuild()
	out := rolesList(g, 2, "Roles (%d)")
	assert.Equal(t, "Roles (2)\n- <@&500000000000000001> (Admin)\n- <@&500000000000000003> (VIP)", out)
	assert.Equal(t, "VIP", topRoleName(g, []string{"500000000000000002", "500000000000000003"}))
	assert.Equal(t, "sin-rol", topRoleName(g, nil))
}

func TestFindContextLine(t *testing.T) {
	lines := []string{"El servidor abre a las 20hs", "La dueña del server es Sofía"}
	assert.Equal(t, "La dueña del server es Sofía", findContextLine(lines, "dueñ"))
	assert.Equal(t, "El servidor abre a las 20hs", findContextLine(lines, "servidor", "abre"))
	assert.Empty(t, findContextLine(lines, "rol"))
}

func userMsg(content string) *discordgo.Message {
	return &discordgo.Message{Content: content, Author: &discordgo.User{ID: "1"}}
}

func TestAnalyzeMessagesCounting(t *testing.T) {
	// Newest first, as returned by the API.
	var msgs []*discordgo.Message
	for n := 20; n >= 10; n-- {
		msgs = append(msgs, userMsg(strconv.Itoa(n)))
	}
	msgs = append(msgs, &discordgo.Message{Content: "¡bien!", Author: &discordgo.User{ID: "2", Bot: true}})

	a := analyzeMessages(msgs)
	assert.Equal(t, 11, a.Samples)
	assert.True(t, a.Counting)
	assert.Equal(t, "Juego de conteo (los usuarios envían números consecutivos).", a.purpose(&discordgo.Channel{}))
}

func TestAnalyzeMessagesSignals(t *testing.T) {
	msgs := []*discordgo.Message{
		userMsg("¿cómo se invoca al muro de carne?"),
		userMsg("dónde consigo la espada"),
		userMsg("qué hora abre el server"),
		userMsg("mirá https://terraria.wiki.gg/es/"),
		userMsg("!rank"),
		userMsg("muro muro muro"),
		userMsg("1"),
		{Author: &discordgo.User{ID: "3"}, Attachments: []*discordgo.MessageAttachment{{URL: "x"}}},
	}
	a := analyzeMessages(msgs)
	assert.Equal(t, 7, a.Samples)
	assert.Equal(t, 1, a.Links)
	assert.Equal(t, 1, a.Commands)
	assert.Equal(t, 3, a.Questions)
	assert.Equal(t, 1, a.Attachments)
	assert.False(t, a.Counting)
	require.NotEmpty(t, a.TopWords)
	assert.Equal(t, "muro", a.TopWords[0])
	assert.Equal(t, "Canal de preguntas / ayuda (mucha gente pregunta cosas).", a.purpose(&discordgo.Channel{}))

	assert.Equal(t, "Chat general del servidor.", a.purpose(&discordgo.Channel{Topic: "chat libre"}))
	assert.Equal(t, "Canal de conversación general (sin señales fuertes en las muestras recientes).",
		channelAnalysis{}.purpose(&discordgo.Channel{}))
}

func TestMemberInfoLines(t *testing.T) {
	g := testGuild()
	m := &discordgo.Member{
		User:     &discordgo.User{ID: "175928847299117063", Username: "ana", GlobalName: "Ana"},
		Roles:    []string{"500000000000000002", "500000000000000001"},
		JoinedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	lines := memberInfoLines(g, m)
	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, "👤 **Usuario:** <@175928847299117063>", lines[0])
	assert.Equal(t, "- Apodo (server): **Ana**", lines[1])
	assert.Equal(t, "- Rol más alto: **Admin**", lines[3])
	assert.Equal(t, "- Roles (2): <@&500000000000000001> <@&500000000000000002>", lines[4])
	assert.Contains(t, lines[5], "<t:1704153600:R>")

	m.Nick = "Anita"
	m.Roles = nil
	lines = memberInfoLines(g, m)
	assert.Equal(t, "- Apodo (server): **Anita**", lines[1])
	assert.Equal(t, "- Roles (0): (solo @everyone)", lines[4])
	assert.Equal(t, "Anita", displayName(m))
}
