package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ceniza-bot/llm"
	"ceniza-bot/model"
	"ceniza-bot/router"
	"ceniza-bot/stores/memory"
	"ceniza-bot/utils"
)

const (
	chatContextChars = 2600
	chatContextLines = 80
	defaultChatTemp  = 0.7
	defaultChatMax   = 450
	replyAssistMax   = 250
	replyContextTTL  = 10 * time.Minute
	msgEmptyReply    = "Listo."
)

// speaker is the author of the message being answered.
type speaker struct {
	ID          string
	DisplayName string
	TopRole     string
	IsAdmin     bool
}

func (sp *speaker) header() string {
	if sp == nil {
		return "[Usuario]"
	}
	admin := "no"
	if sp.IsAdmin {
		admin = "si"
	}
	return fmt.Sprintf("[Usuario id=%s apodo=%q rol_mas_alto=%q admin=%s]", sp.ID, sp.DisplayName, sp.TopRole, admin)
}

// formatUserTurn is how a user message is stored in history and sent to
// the model.
func formatUserTurn(sp *speaker, text string) string {
	return strings.TrimSpace(sp.header() + "\n" + text)
}

func joinOr(list []string, empty string) string {
	if len(list) == 0 {
		return empty
	}
	return strings.Join(list, ", ")
}

// chatSystemPrompt builds the persona prompt from the server document.
func chatSystemPrompt(cfg model.ServerConfig, sp *speaker, guildName, guildID, query string) string {
	contextText := router.CompileContext(cfg.Context, query, chatContextChars, chatContextLines)
	if contextText == "" {
		contextText = "- (sin contexto extra)"
	}
	speakerLine := "Usuario actual: (desconocido)"
	if sp != nil {
		admin := "no"
		if sp.IsAdmin {
			admin = "sí"
		}
		speakerLine = fmt.Sprintf("Usuario actual: id=%s | apodo=%q | rol más alto=%q | admin=%s", sp.ID, sp.DisplayName, sp.TopRole, admin)
	}
	guildLine := "Servidor: (desconocido)"
	if guildID != "" {
		guildLine = fmt.Sprintf("Servidor: %s (id=%s)", guildName, guildID)
	}

	return strings.Join([]string{
		`Eres CenizaGPT, el bot del servidor de Discord/Terraria "Ceniza Lunar".`,
		"",
		"OBJETIVO:",
		"- Ayudar a los miembros con información del servidor, dudas generales, y dudas de Terraria SIN inventar datos.",
		"- Actuar como un bot de Discord: respuestas claras, sin roleplay raro, y sin filtrar información privada.",
		"",
		"REGLAS DURAS (cumplir siempre):",
		`- NUNCA escribas con formato "Nombre: mensaje". Nunca pongas un nombre delante seguido de dos puntos.`,
		`- No inventes crafteos ni datos del juego. Si no lo sabes con certeza, di: "No recuerdo ese dato exacto, mejor revisa la [Wiki oficial](https://terraria.wiki.gg/es/)".`,
		"- No intentes obtener/mostrar datos privados de miembros (IPs, datos personales, etc).",
		"- Si el usuario pide acciones administrativas (kick/ban/roles/apodos): NO las ejecutes tú. El sistema externo se encarga de permisos y confirmación.",
		"",
		"DATOS DEL SERVIDOR:",
		"- IP: " + cfg.IP,
		"- Puerto: " + cfg.Port,
		"- Jefes vencidos: " + joinOr(cfg.Bosses, "Ninguno aún"),
		"- Próximos eventos: " + joinOr(cfg.Events, "Ninguno programado"),
		"- Reglas del server: " + cfg.Rules,
		"",
		"CONTEXTO DEL SERVER:",
		contextText,
		"",
		"CONTEXTO ACTUAL:",
		guildLine,
		speakerLine,
		"",
		"ESTILO:",
		"- responde en español con tono cercano, relajado, tipo chat de discord.",
		"- escribe en minúsculas por defecto (usa mayúsculas solo si hace falta).",
		"- sé breve por defecto (1-2 párrafos). si el usuario pide detalle, lo das.",
		"- si necesitas referirte a alguien, preferí mencionar con <@id> o usar su apodo.",
	}, "\n")
}

func chatMessages(history []memory.ChatMessage, sp *speaker, text string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		if h.Content == "" {
			continue
		}
		role := "user"
		if h.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: formatUserTurn(sp, text)})
}

var labelWhitelist = map[string]bool{
	"IP": true, "PUERTO": true, "REGLAS": true, "OBJETIVO": true, "RESPUESTA": true,
	"IMPORTANTE": true, "NOTA": true, "NOTAS": true, "TIP": true, "TIPS": true, "PD": true,
}

var namePrefixRe = regexp.MustCompile(`^\s*([A-Za-z0-9_]{2,32}):\s+(.*)$`)

// sanitizeReply drops "Name: " prefixes the model sometimes writes in front
// of its lines. Short uppercase labels are kept.
func sanitizeReply(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		m := namePrefixRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		upper := strings.ToUpper(m[1])
		if labelWhitelist[upper] || (len(m[1]) <= 3 && m[1] == upper) {
			continue
		}
		lines[i] = m[2]
	}
	out := strings.TrimSpace(strings.Join(lines, "\n"))
	if out == "" {
		return msgEmptyReply
	}
	return out
}

// chatReply runs the normal conversation completion.
func chatReply(ctx context.Context, svc llm.CompletionService, cfg model.ServerConfig, history []memory.ChatMessage, sp *speaker, guildName, guildID, text string) (string, error) {
	temp := cfg.LLM.Temperature
	if temp <= 0 {
		temp = defaultChatTemp
	}
	maxTokens := cfg.LLM.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultChatMax
	}
	raw, err := svc.Complete(ctx, llm.CompletionRequest{
		System:      chatSystemPrompt(cfg, sp, guildName, guildID, text),
		Messages:    chatMessages(history, sp, text),
		Temperature: temp,
		MaxTokens:   maxTokens,
		Purpose:     "chat",
	})
	if err != nil {
		return "", err
	}
	return sanitizeReply(raw), nil
}

// Reply assist tasks.
const (
	taskSummary = "SUMMARY"
	taskExplain = "EXPLAIN"
	taskAnswer  = "ANSWER"
	taskTopic   = "TOPIC"
	taskQuote   = "QUOTE"
)

var replyTasks = []struct {
	task  string
	words []string
}{
	{taskSummary, []string{"resume", "resumen", "resumeme", "tl;dr", "tldr", "mucho texto", "muy largo"}},
	{taskExplain, []string{"explica", "explicame", "que significa", "que quiso decir"}},
	{taskAnswer, []string{"contesta", "respond", "responde", "responder", "respondele"}},
	{taskTopic, []string{"de que habla", "que esta hablando", "tema"}},
	{taskQuote, []string{"cita", "citame", "citalo", "texto exacto", "literal", "tal cual", "como dice"}},
	{taskSummary, []string{"este mensaje", "ese mensaje", "el mensaje de arriba", "el mensaje anterior"}},
}

// detectReplyTask maps a request about another message to a task, or ""
// when the text is not such a request.
func detectReplyTask(text string) string {
	t := utils.Normalize(text)
	if t == "" {
		return ""
	}
	for _, rt := range replyTasks {
		if utils.ContainsAny(t, rt.words) {
			return rt.task
		}
	}
	return ""
}

var taskLines = map[string]string{
	taskSummary: "haz un resumen corto (3-7 líneas).",
	taskExplain: "explica de forma simple lo que significa.",
	taskAnswer:  "responde a la pregunta/contenido del mensaje como si fueras el bot, breve.",
	taskTopic:   "di de qué trata el mensaje en 1-2 líneas.",
	taskQuote:   "devuelve la frase o parte relevante tal cual (si está presente). si no está, dilo.",
}

const replyAssistSystem = `Eres CenizaGPT (Discord). El usuario te pide ayudar con un mensaje específico (normalmente el que está respondiendo).

Reglas:
- Responde DIRECTO al usuario. No digas cosas como "el usuario te pidió" ni repitas instrucciones internas.
- Usa un estilo cercano, en minúsculas, y breve si es posible.
- NO inventes contenido que no esté en el mensaje original.
- Si te piden una cita literal y no tienes el texto exacto, dilo claramente.
- Si el mensaje original es muy largo o incompleto, avisa y resume lo que sí ves.`

func trimForModel(text string, n int) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) <= n {
		return text
	}
	return utils.Truncate(text, n) + "\n…(recortado)"
}

func replyAssistPrompt(task, request string, rc *memory.ReplyContext) string {
	line, ok := taskLines[task]
	if !ok {
		line = "ayuda con el mensaje."
	}
	author := rc.Author
	if author == "" {
		author = "desconocido"
	}
	return strings.Join([]string{
		"tarea: " + line,
		"",
		"pedido del usuario: " + trimForModel(request, 500),
		"",
		"mensaje original (autor: " + author + "):",
		trimForModel(rc.Content, 1800),
	}, "\n")
}

// replyContextFrom reduces a replied-to message to what reply assist needs.
func replyContextFrom(author, content string, attachments, embeds int, now time.Time) *memory.ReplyContext {
	content = strings.TrimSpace(content)
	switch {
	case content != "":
	case attachments > 0 || embeds > 0:
		content = "(mensaje sin texto o con adjuntos/embeds)"
	default:
		content = "(mensaje vacío)"
	}
	return &memory.ReplyContext{Author: author, Content: content, HasImage: attachments > 0, At: now}
}

// usableReplyContext returns the remembered context while it is fresh.
func usableReplyContext(rc *memory.ReplyContext, now time.Time) *memory.ReplyContext {
	if rc == nil || rc.Content == "" || now.Sub(rc.At) >= replyContextTTL {
		return nil
	}
	return rc
}

func replyAssist(ctx context.Context, svc llm.CompletionService, task, request string, rc *memory.ReplyContext) (string, error) {
	raw, err := svc.Complete(ctx, llm.CompletionRequest{
		System:      replyAssistSystem,
		Messages:    []llm.Message{{Role: "user", Content: replyAssistPrompt(task, request, rc)}},
		Temperature: 0.35,
		MaxTokens:   replyAssistMax,
		Purpose:     "reply_assist",
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}
