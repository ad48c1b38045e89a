// Package router classifies an incoming message into one of a fixed set of
// routes with a single low temperature completion call.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ceniza-bot/llm"
	"ceniza-bot/metrics"
	"ceniza-bot/utils"

	"go.uber.org/zap"
)

// Route is one of the closed set of subsystems a message can go to.
type Route string

const (
	RouteChat        Route = "CHAT"
	RouteReset       Route = "RESET"
	RouteServer      Route = "SERVER"
	RouteModAction   Route = "MOD_ACTION"
	RouteReplyAssist Route = "REPLY_ASSIST"
	RouteVision      Route = "VISION"
	RouteDraw        Route = "DRAW"
	RouteEdit        Route = "EDIT"
	RouteItem        Route = "ITEM"
	RouteWiki        Route = "WIKI"
)

// Routes lists every route in prompt order.
var Routes = []Route{
	RouteChat, RouteReset, RouteServer, RouteModAction, RouteReplyAssist,
	RouteVision, RouteDraw, RouteEdit, RouteItem, RouteWiki,
}

func (r Route) Valid() bool {
	for _, v := range Routes {
		if v == r {
			return true
		}
	}
	return false
}

// ServerIntent narrows the SERVER route.
type ServerIntent string

const (
	IntentChannelList    ServerIntent = "CHANNEL_LIST"
	IntentRulesWhere     ServerIntent = "RULES_WHERE"
	IntentServerSummary  ServerIntent = "SERVER_SUMMARY"
	IntentChannelPurpose ServerIntent = "CHANNEL_PURPOSE"
	IntentUserInfo       ServerIntent = "USER_INFO"
	IntentRolesList      ServerIntent = "ROLES_LIST"
	IntentRoleStructure  ServerIntent = "ROLE_STRUCTURE"
	IntentOwner          ServerIntent = "OWNER"
)

var ServerIntents = []ServerIntent{
	IntentChannelList, IntentRulesWhere, IntentServerSummary, IntentChannelPurpose,
	IntentUserInfo, IntentRolesList, IntentRoleStructure, IntentOwner,
}

func (s ServerIntent) Valid() bool {
	for _, v := range ServerIntents {
		if v == s {
			return true
		}
	}
	return false
}

const (
	routerTemperature = 0.05
	routerMaxTokens   = 260
	maxInputRunes     = 2000
	maxReasonRunes    = 180

	ReasonInvalidJSON  = "router_invalid_json"
	ReasonUnknownRoute = "router_unknown_route"
)

// Signals are situational facts about the message, sent to the model
// alongside the text.
type Signals struct {
	InvokedExplicit bool   `json:"invoked_explicit"`
	InvokedByTag    bool   `json:"invoked_by_tag"`
	ReplyToBot      bool   `json:"reply_to_bot"`
	IsReply         bool   `json:"is_reply"`
	HasImage        bool   `json:"has_image"`
	URL             string `json:"url,omitempty"`
	HasTagDraw      bool   `json:"has_tag_draw"`
	HasTagEdit      bool   `json:"has_tag_edit"`
	ItemHint        string `json:"item_hint,omitempty"`
	LastReplyHint   string `json:"last_reply_hint,omitempty"`
}

// Decision is the router's verdict. Route is always one of Routes.
type Decision struct {
	Route        Route
	Reason       string
	ServerIntent ServerIntent
	Args         map[string]any
}

// StringArg returns Args[key] as a trimmed string.
func (d Decision) StringArg(key string) string {
	switch v := d.Args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// IntArg returns Args[key] as an int when it holds a finite number or a
// numeric string.
func (d Decision) IntArg(key string) (int, bool) {
	switch v := d.Args[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// Option configures a Router.
type Option func(*Router)

// WithContextLines supplies the server context lines listed in the system
// prompt.
func WithContextLines(fn func() []string) Option {
	return func(r *Router) { r.contextLines = fn }
}

type Router struct {
	llm          llm.CompletionService
	log          *zap.Logger
	contextLines func() []string
}

func New(svc llm.CompletionService, log *zap.Logger, opts ...Option) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{llm: svc, log: log.Named("router")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rawDecision struct {
	Route        any `json:"route"`
	Reason       any `json:"reason"`
	ServerIntent any `json:"server_intent"`
	Args         any `json:"args"`
}

// Route classifies text. Malformed model output degrades to RouteChat; only
// a failed completion call returns an error.
func (r *Router) Route(ctx context.Context, text string, sig Signals) (Decision, error) {
	var lines []string
	if r.contextLines != nil {
		lines = r.contextLines()
	}

	raw, err := r.llm.Complete(ctx, llm.CompletionRequest{
		System:      buildSystemPrompt(CompileContext(lines, text, 0, 0)),
		Messages:    []llm.Message{{Role: "user", Content: buildUserPrompt(text, sig)}},
		Temperature: routerTemperature,
		MaxTokens:   routerMaxTokens,
		JSONMode:    true,
		Purpose:     "router",
	})
	if err != nil {
		return Decision{}, fmt.Errorf("route message: %w", err)
	}

	d := parseDecision(raw)
	if d.Reason == ReasonInvalidJSON || d.Reason == ReasonUnknownRoute {
		r.log.Debug("router output rejected", zap.String("reason", d.Reason), zap.String("raw", utils.Truncate(raw, 300)))
	}
	metrics.RoutesTotal.WithLabelValues(string(d.Route)).Inc()
	return d, nil
}

func parseDecision(raw string) Decision {
	var out rawDecision
	if err := llm.DecodeJSON(raw, &out); err != nil {
		return Decision{Route: RouteChat, Reason: ReasonInvalidJSON}
	}

	routeStr, _ := out.Route.(string)
	if routeStr == "" {
		routeStr = string(RouteChat)
	}
	route := Route(strings.ToUpper(strings.TrimSpace(routeStr)))
	if !route.Valid() {
		return Decision{Route: RouteChat, Reason: ReasonUnknownRoute}
	}

	reason, _ := out.Reason.(string)
	args, _ := out.Args.(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	d := Decision{
		Route:  route,
		Reason: utils.Truncate(reason, maxReasonRunes),
		Args:   args,
	}
	if route == RouteServer {
		si, _ := out.ServerIntent.(string)
		d.ServerIntent = ServerIntent(strings.ToUpper(strings.TrimSpace(si)))
		if !d.ServerIntent.Valid() {
			d.ServerIntent = IntentServerSummary
		}
	}
	return d
}

func buildSystemPrompt(compiledContext string) string {
	routes := make([]string, len(Routes))
	for i, r := range Routes {
		routes[i] = string(r)
	}
	intents := make([]string, len(ServerIntents))
	for i, s := range ServerIntents {
		intents[i] = string(s)
	}
	if compiledContext == "" {
		compiledContext = "- (sin contexto configurado)"
	}

	return strings.Join([]string{
		"Eres un ROUTER de un bot de Discord (CenizaGPT). Tu único trabajo es decidir qué subsistema debe actuar.",
		"",
		"DEVUELVE **SOLO JSON** válido, sin texto adicional, sin markdown.",
		"",
		"RUTAS POSIBLES: " + strings.Join(routes, ", "),
		"",
		"DESCRIPCIÓN RÁPIDA DE RUTAS:",
		"- CHAT: conversación normal / dudas generales.",
		"- RESET: olvidar historial reciente del chat (sin tocar la configuración del servidor).",
		"- SERVER: preguntas del servidor (canales, reglas, roles, estructura, dueño, info de un usuario).",
		"- MOD_ACTION: acciones de moderación/administración (kick/ban/mute/roles/apodos) => requiere confirmación.",
		"- REPLY_ASSIST: el usuario pide resumir/explicar/contestar un mensaje al que está respondiendo (o \"ese mensaje\").",
		"- VISION: análisis de imagen (describir / leer texto / responder preguntas sobre imagen).",
		"- DRAW: generar una imagen.",
		"- EDIT: editar una imagen existente (idealmente reply a imagen o URL).",
		"- ITEM: consultas de ítems de Terraria.",
		"- WIKI: resumir o responder preguntas sobre una URL/web (no inventar; si falta acceso, decirlo).",
		"",
		"IMPORTANTE (anti-fallos):",
		"- NO elijas VISION solo porque hay una imagen. Elige VISION SOLO si el usuario pide describir/leer/analizar la imagen.",
		"- Si el texto es MUY corto o vago (ej: \"?\", \"que dices\", \"xd\") y no contiene un pedido claro, elige CHAT.",
		"- Si el usuario pide EDITAR una imagen (\"edita\", \"cambia\", \"pon\", \"quita\" en una imagen), elige EDIT (no VISION).",
		"- Si el usuario pide GENERAR una imagen (\"dibuja\", \"genera\", \"haz una imagen\"), elige DRAW.",
		"- Para Terraria: SOLO usa ITEM si el usuario pregunta por un ítem específico o hay una pista fuerte de ítem. Si no, usa CHAT.",
		"- Para SERVER->USER_INFO: elige USER_INFO solo si hay objetivo (mención/ID/nick claro, o reply a su mensaje).",
		"- Si hay una URL y el usuario pide resumen/pregunta sobre esa página, elige WIKI.",
		"",
		"ESTRUCTURA JSON DE RESPUESTA:",
		"{",
		"  \"route\": \"CHAT\" | ... ,",
		"  \"reason\": \"breve\",",
		"  \"server_intent\": (solo si route==SERVER) uno de: " + strings.Join(intents, ", "),
		"  \"args\": { ... } // opcional según ruta",
		"}",
		"",
		"Para DRAW, args soporta:",
		"{ \"prompt\": \"...\", \"model\": \"premium\"|\"free\"|\"auto\", \"width\": 1024, \"height\": 1024, \"seed\": 0 }",
		"",
		"Para EDIT, args soporta:",
		"{ \"prompt\": \"...\", \"image_source\": \"reply\"|\"url\"|\"attachment\"|\"unknown\", \"image_url\": \"(si aplica)\", \"seed\": 0 }",
		"",
		"Para ITEM, args soporta:",
		"{ \"item_query\": \"...\", \"question\": \"(opcional)\", \"mode\": \"info\"|\"ask\"|\"auto\" }",
		"",
		"Para WIKI, args soporta:",
		"{ \"url\": \"...\", \"question\": \"(opcional)\" }",
		"",
		"CONTEXTO DEL SERVER - úsalo para decidir rutas y para saber reglas/canales:",
		compiledContext,
		"",
		"Recuerda: SOLO JSON. No comentes. No expliques fuera del campo reason.",
	}, "\n")
}

func buildUserPrompt(text string, sig Signals) string {
	meta, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		meta = []byte("{}")
	}
	return strings.Join([]string{
		"MENSAJE_DEL_USUARIO:",
		utils.Truncate(text, maxInputRunes),
		"",
		"META (datos del evento de Discord / contexto mínimo):",
		string(meta),
	}, "\n")
}
