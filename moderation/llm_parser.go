package moderation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"ceniza-bot/llm"
	"ceniza-bot/model"
	"ceniza-bot/utils"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

const (
	modelParserMaxTokens = 260
	maxReasonLen         = 512
)

const actionSchema = `{
  "type": "object",
  "required": ["kind"],
  "properties": {
    "kind": {"enum": ["ACTION", "NONE"]},
    "action": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["kick", "ban", "timeout", "nickname_set", "role_add", "role_remove"]},
        "target": {"type": ["string", "null"]},
        "role": {"type": ["string", "null"]},
        "new_nickname": {"type": ["string", "null"]},
        "duration_ms": {"type": ["number", "null"], "minimum": 0},
        "reason": {"type": ["string", "null"]}
      }
    }
  },
  "if": {"properties": {"kind": {"const": "ACTION"}}},
  "then": {"required": ["action"]}
}`

var compiledActionSchema = jsonschema.MustCompileString("model_action.json", actionSchema)

const modelParserSystemPrompt = `Eres un parser estricto. Devuelves SOLO JSON válido. Sin markdown.
Tu trabajo: detectar si el usuario está pidiendo una acción administrativa de Discord.
Acciones permitidas:
- kick
- ban
- timeout (silenciar/timeout; duration_ms=0 para quitar timeout)
- nickname_set
- role_add
- role_remove
Si falta información crítica o no estás seguro, devuelve kind="NONE".

Esquema:
{"kind":"ACTION"|"NONE", "action": {"type":..., "target":"<@id>|id|texto", "role":"<@&id>|id|texto", "new_nickname":"texto", "duration_ms":123, "reason":"texto"}}

Notas:
- target puede omitirse SOLO si existe default_target_user_id y la frase dice "este usuario" o similar.
- role solo para role_add/role_remove.
- new_nickname solo para nickname_set.
- duration_ms solo para timeout.`

// Speaker describes the requester for the prompt.
type Speaker struct {
	ID          string
	DisplayName string
	IsAdmin     bool
}

// ModelParseRequest is the input of ModelParser.Parse.
type ModelParseRequest struct {
	Text                string
	GuildName           string
	Speaker             Speaker
	DefaultTargetUserID string
	RepliedSummary      string
}

// ModelParser asks a completion model to structure an action request the
// keyword rules could not.
type ModelParser struct {
	llm llm.CompletionService
	log *zap.Logger
}

func NewModelParser(svc llm.CompletionService, log *zap.Logger) *ModelParser {
	return &ModelParser{llm: svc, log: log.Named("model_parser")}
}

type modelOutput struct {
	Kind   string `json:"kind"`
	Action *struct {
		Type        string   `json:"type"`
		Target      *string  `json:"target"`
		Role        *string  `json:"role"`
		NewNickname *string  `json:"new_nickname"`
		DurationMs  *float64 `json:"duration_ms"`
		Reason      *string  `json:"reason"`
	} `json:"action"`
}

// Parse returns the action and true when the model reports an actionable
// request that passes validation. Malformed output yields false and a nil
// error; only a failed completion call returns an error.
func (p *ModelParser) Parse(ctx context.Context, req ModelParseRequest) (model.Action, bool, error) {
	raw, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:      modelParserSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: buildModelParserPrompt(req)}},
		Temperature: 0,
		MaxTokens:   modelParserMaxTokens,
		Purpose:     "action_parser",
	})
	if err != nil {
		return model.Action{}, false, fmt.Errorf("model action parser: %w", err)
	}

	var doc any
	if err := llm.DecodeJSON(raw, &doc); err != nil {
		p.log.Debug("model output is not JSON", zap.Error(err))
		return model.Action{}, false, nil
	}
	if err := compiledActionSchema.Validate(doc); err != nil {
		p.log.Debug("model output failed schema", zap.Error(err))
		return model.Action{}, false, nil
	}

	var out modelOutput
	if err := llm.DecodeJSON(raw, &out); err != nil || out.Kind != "ACTION" || out.Action == nil {
		return model.Action{}, false, nil
	}

	action := model.Action{Type: model.ActionType(out.Action.Type)}
	action.TargetUserID = normalizeUserRef(deref(out.Action.Target))
	if action.TargetUserID == "" {
		action.TargetUserID = req.DefaultTargetUserID
	}
	if action.TargetUserID == "" {
		return model.Action{}, false, nil
	}
	action.Reason = utils.Truncate(strings.TrimSpace(deref(out.Action.Reason)), maxReasonLen)

	switch action.Type {
	case model.ActionTimeout:
		if out.Action.DurationMs == nil {
			return model.Action{}, false, nil
		}
		d, ok := modelTimeout(*out.Action.DurationMs, req.Text)
		if !ok {
			return model.Action{}, false, nil
		}
		action.Duration = d
	case model.ActionNicknameSet:
		nick := strings.TrimSpace(deref(out.Action.NewNickname))
		if nick == "" {
			return model.Action{}, false, nil
		}
		action.NewNickname = utils.Truncate(nick, maxNicknameLen)
	case model.ActionRoleAdd, model.ActionRoleRemove:
		role := normalizeRoleRef(deref(out.Action.Role))
		if role == "" {
			return model.Action{}, false, nil
		}
		action.RoleRef = role
	}
	return action, true, nil
}

// modelTimeout converts the model's duration_ms. Values past MaxTimeout are
// clamped before conversion so they cannot overflow. Zero means removal and
// is only accepted when the text itself asks for it.
func modelTimeout(ms float64, text string) (time.Duration, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return 0, false
	}
	if ms >= float64(MaxTimeout.Milliseconds()) {
		return MaxTimeout, true
	}
	d := time.Duration(math.Round(ms)) * time.Millisecond
	if d == 0 && !utils.ContainsAny(utils.Normalize(text), untimeoutWords) {
		return 0, false
	}
	return d, true
}

func buildModelParserPrompt(req ModelParseRequest) string {
	guild := req.GuildName
	if guild == "" {
		guild = "desconocido"
	}
	admin := "no"
	if req.Speaker.IsAdmin {
		admin = "sí"
	}
	def := "(none)"
	if req.DefaultTargetUserID != "" {
		def = req.DefaultTargetUserID
	}
	replied := "(none)"
	if req.RepliedSummary != "" {
		replied = req.RepliedSummary
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Servidor: %s\n", guild)
	fmt.Fprintf(&b, "Solicitante: id=%s apodo=%q admin=%s\n", req.Speaker.ID, req.Speaker.DisplayName, admin)
	fmt.Fprintf(&b, "default_target_user_id: %s\n", def)
	fmt.Fprintf(&b, "Mensaje respondido: %s\n", replied)
	b.WriteString("Mensaje:\n")
	b.WriteString(req.Text)
	return b.String()
}

func normalizeUserRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := userMentionRe.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

func normalizeRoleRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := roleMentionRe.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
