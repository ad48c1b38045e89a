package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ceniza-bot/bot"
	"ceniza-bot/config"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const legacyPrefix = "!"

const (
	msgLegacyNoAdmin    = "❌ No tienes permisos de Administrador para configurar el bot."
	msgLegacySaveFailed = "⚠️ No pude guardar la configuración."
	msgWikiUsage        = "📚 Uso: `!wiki <url>` o `!wiki <url> <pregunta>`"
	msgWikiFailed       = "⚠️ No pude consultar la wiki ahora mismo. Probá de nuevo en unos minutos o revisá el link."
)

var legacyConfigCommands = map[string]bool{
	"serverip": true, "serverport": true, "context": true, "boss": true,
	"evento": true, "reload": true, "config": true,
}

// legacyCommand is a "!name args..." message.
type legacyCommand struct {
	Name string
	Args []string
}

func (c legacyCommand) rest(from int) string {
	if from >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[from:], " ")
}

func parseLegacyCommand(content string) (legacyCommand, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, legacyPrefix) {
		return legacyCommand{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, legacyPrefix))
	if len(fields) == 0 {
		return legacyCommand{}, false
	}
	return legacyCommand{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

func memberPermissions(s *discordgo.Session, m *discordgo.Message) int64 {
	if m.GuildID == "" {
		return 0
	}
	if m.Member != nil && m.Member.Permissions != 0 {
		return m.Member.Permissions
	}
	perms, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		return 0
	}
	return perms
}

// handleLegacyCommand runs "!" commands. It reports whether the message was
// consumed.
func handleLegacyCommand(s *discordgo.Session, m *discordgo.Message, b *bot.Bot) bool {
	cmd, ok := parseLegacyCommand(m.Content)
	if !ok {
		return false
	}
	switch {
	case cmd.Name == "wiki":
		legacyWiki(s, m, b, cmd)
		return true
	case legacyConfigCommands[cmd.Name]:
		if ok, _ := utils.CheckAdmin(m.Author.ID, m.GuildID, memberPermissions(s, m), b.GetConfig().AdminUserIDs); !ok {
			reply(b, s, m, msgLegacyNoAdmin)
			return true
		}
		reply(b, s, m, runLegacyConfig(b, cmd))
		b.Log.Info("legacy config command", zap.String("command", cmd.Name), zap.String("user_id", m.Author.ID))
		return true
	}
	return false
}

// runLegacyConfig applies an admin command to the server document and
// returns the reply.
func runLegacyConfig(b *bot.Bot, cmd legacyCommand) string {
	sub := ""
	if len(cmd.Args) > 0 {
		sub = strings.ToLower(cmd.Args[0])
	}
	saved := func(err error, ok string) string {
		if err != nil {
			b.Log.Error("failed to update server config", zap.String("command", cmd.Name), zap.Error(err))
			return msgLegacySaveFailed
		}
		return ok
	}

	switch cmd.Name {
	case "serverip":
		v := cmd.rest(0)
		return saved(b.Server.SetPath([]string{"ip"}, v), "✅ IP actualizada a: **"+v+"**")
	case "serverport":
		v := cmd.rest(0)
		return saved(b.Server.SetPath([]string{"port"}, v), "✅ Puerto actualizado a: **"+v+"**")
	case "context":
		switch sub {
		case "add":
			return saved(b.Server.AppendContext(cmd.rest(1)), "🧠 Contexto agregado.")
		case "clear":
			return saved(b.Server.ClearContext(), "🧠 Contexto borrado.")
		}
		return "Uso: !context add <texto> | !context clear"
	case "boss":
		switch sub {
		case "add":
			name := cmd.rest(1)
			return saved(b.Server.AppendList("bosses", name), "💀 Jefe agregado: **"+name+"**")
		case "clear":
			return saved(b.Server.ClearList("bosses"), "✨ Lista de jefes borrada.")
		}
		return "Uso: !boss add <nombre> | !boss clear"
	case "evento":
		switch sub {
		case "add":
			name := cmd.rest(1)
			return saved(b.Server.AppendList("events", name), "📅 Evento agregado: **"+name+"**")
		case "clear":
			return saved(b.Server.ClearList("events"), "🗑️ Eventos borrados.")
		}
		return "Uso: !evento add <nombre> | !evento clear"
	case "reload":
		return saved(b.ReloadConfig(), "🔄 Configuración recargada desde disco.")
	case "config":
		if len(cmd.Args) >= 2 {
			return setConfigPath(b, cmd.Args[0], cmd.rest(1))
		}
		raw, err := json.MarshalIndent(b.Server.Get(), "", "  ")
		if err != nil {
			return saved(err, "")
		}
		return "```json\n" + utils.Truncate(string(raw), maxMessageLen-12) + "\n```"
	}
	return ""
}

// setConfigPath handles "!config <path> <value>". JSON values are decoded,
// anything else is stored as text.
func setConfigPath(b *bot.Bot, path, raw string) string {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	err := b.Server.SetPath(strings.Split(path, "."), value)
	switch {
	case errors.Is(err, config.ErrInvalidPath):
		return "❌ Ruta inválida: `" + path + "`. Usá ip, port, bosses, events, context, rules, llm.temperature o llm.max_tokens."
	case err != nil:
		b.Log.Error("failed to set config path", zap.String("path", path), zap.Error(err))
		return msgLegacySaveFailed
	}
	return "✅ `" + path + "` actualizado."
}

func legacyWiki(s *discordgo.Session, m *discordgo.Message, b *bot.Bot, cmd legacyCommand) {
	if len(cmd.Args) == 0 || !urlRe.MatchString(cmd.Args[0]) {
		reply(b, s, m, msgWikiUsage)
		return
	}
	if err := s.ChannelTyping(m.ChannelID); err != nil {
		b.Log.Debug("typing failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := b.Wiki.Ask(ctx, cmd.Args[0], cmd.rest(1))
	if err != nil {
		b.Log.Warn("wiki lookup failed", zap.String("url", cmd.Args[0]), zap.Error(err))
		reply(b, s, m, msgWikiFailed)
		return
	}
	reply(b, s, m, out)
}
