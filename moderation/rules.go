package moderation

import (
	"regexp"
	"strings"

	"ceniza-bot/model"
	"ceniza-bot/utils"
)

const maxNicknameLen = 32

var (
	kickWords      = []string{"expulsa", "expulsar", "kick", "echa", "echar", "saca", "sacar"}
	banWords       = []string{"banea", "banear", "ban", "permaban"}
	banFalseFriend = "bandera"
	timeoutWords   = []string{"silencia", "silenciar", "mute", "timeout", "time out", "castiga", "calla"}
	untimeoutWords = []string{"desmute", "unmute", "quita el mute", "quita el silencio", "quita el timeout", "remueve el mute", "desilencia"}
	nickWords      = []string{"apodo", "nickname", "nick"}
	nickVerbs      = []string{"pon", "ponle", "cambia", "cambiar", "set"}
	roleWords      = []string{"rol", "roles", "rango", "ranks"}
	roleVerbs      = []string{"pon", "ponle", "asigna", "dale", "da", "quita", "quitar", "quitala", "quitarle", "remove", "remueve", "saca", "sube", "subir", "promueve", "promover", "baja", "cambia", "cambiar"}
	roleRemovals   = []string{"quita", "quitar", "remove", "remueve", "saca", "baja"}
)

var (
	userMentionRe  = regexp.MustCompile(`<@!?(\d{16,20})>`)
	roleMentionRe  = regexp.MustCompile(`<@&(\d{16,20})>`)
	looseIDRe      = regexp.MustCompile(`\b\d{16,20}\b`)
	quotedRe       = regexp.MustCompile(`"([^\n\r"]{1,80})"`)
	trailingRoleRe = regexp.MustCompile(`(?i)\b(?:a|por)\s+([^\n\r]{2,40})$`)
)

// User facing parse errors.
const (
	ErrMsgMissingTarget   = "Falta mencionar al usuario objetivo (o responder a su mensaje)."
	ErrMsgMissingDuration = `Para silenciar necesito una duración. Ej: "mutea 10m" / "silencia 1h".`
	ErrMsgMissingNickname = `Falta el nuevo apodo entre comillas, ej: "Nuevo Apodo".`
	ErrMsgMissingRole     = "Falta el rol. Puedes mencionarlo (<@&rol>) o ponerlo entre comillas."
	ErrMsgUnparsed        = "No pude parsear la acción por reglas."
)

// RuleOptions carries caller context for ParseRules.
type RuleOptions struct {
	// DefaultTargetUserID is used when the text names no user, e.g. the
	// author of the message being replied to.
	DefaultTargetUserID string
}

// RuleResult is the outcome of ParseRules. Err is set when OK is false.
type RuleResult struct {
	OK     bool
	Action model.Action
	Err    string
}

func ruleFail(msg string) RuleResult { return RuleResult{Err: msg} }

// LooksLikeActionRequest is the cheap keyword check run before any parsing.
func LooksLikeActionRequest(text string) bool {
	t := utils.Normalize(text)
	if t == "" {
		return false
	}
	switch {
	case utils.ContainsAny(t, kickWords),
		utils.ContainsAny(t, banWords),
		utils.ContainsAny(t, timeoutWords),
		utils.ContainsAny(t, untimeoutWords):
		return true
	case utils.ContainsAny(t, nickWords) && utils.ContainsAny(t, nickVerbs):
		return true
	case utils.ContainsAny(t, roleWords) && utils.ContainsAny(t, roleVerbs):
		return true
	}
	return false
}

// ParseRules matches text against the keyword tables and extracts the
// action fields. It never consults a model.
func ParseRules(text string, opts RuleOptions) RuleResult {
	t := utils.Normalize(text)
	target := extractTarget(text, opts.DefaultTargetUserID)

	switch {
	case utils.ContainsAny(t, kickWords):
		if target == "" {
			return ruleFail(ErrMsgMissingTarget)
		}
		return RuleResult{OK: true, Action: model.Action{Type: model.ActionKick, TargetUserID: target}}

	case utils.ContainsAny(t, banWords) && !strings.Contains(t, banFalseFriend):
		if target == "" {
			return ruleFail(ErrMsgMissingTarget)
		}
		return RuleResult{OK: true, Action: model.Action{Type: model.ActionBan, TargetUserID: target}}

	case utils.ContainsAny(t, timeoutWords) || utils.ContainsAny(t, untimeoutWords):
		if target == "" {
			return ruleFail(ErrMsgMissingTarget)
		}
		if utils.ContainsAny(t, untimeoutWords) {
			return RuleResult{OK: true, Action: model.Action{Type: model.ActionTimeout, TargetUserID: target}}
		}
		d, err := utils.ParseDuration(stripMentions(text))
		if err != nil {
			return ruleFail(ErrMsgMissingDuration)
		}
		return RuleResult{OK: true, Action: model.Action{Type: model.ActionTimeout, TargetUserID: target, Duration: d}}

	case utils.ContainsAny(t, nickWords) && utils.ContainsAny(t, nickVerbs):
		if target == "" {
			return ruleFail(ErrMsgMissingTarget)
		}
		nick := extractQuoted(text)
		if nick == "" {
			return ruleFail(ErrMsgMissingNickname)
		}
		return RuleResult{OK: true, Action: model.Action{
			Type:         model.ActionNicknameSet,
			TargetUserID: target,
			NewNickname:  utils.Truncate(nick, maxNicknameLen),
		}}

	case utils.ContainsAny(t, roleWords) && utils.ContainsAny(t, roleVerbs):
		if target == "" {
			return ruleFail(ErrMsgMissingTarget)
		}
		role := extractRoleRef(text)
		if role == "" {
			return ruleFail(ErrMsgMissingRole)
		}
		typ := model.ActionRoleAdd
		if utils.ContainsAny(t, roleRemovals) {
			typ = model.ActionRoleRemove
		}
		return RuleResult{OK: true, Action: model.Action{Type: typ, TargetUserID: target, RoleRef: role}}
	}

	return ruleFail(ErrMsgUnparsed)
}

func extractTarget(text, fallback string) string {
	if m := userMentionRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	// a role id must never be taken for a user id
	if id := looseIDRe.FindString(roleMentionRe.ReplaceAllString(text, " ")); id != "" {
		return id
	}
	return fallback
}

func extractRoleRef(text string) string {
	if m := roleMentionRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if q := extractQuoted(text); q != "" {
		return q
	}
	if m := trailingRoleRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractQuoted(text string) string {
	if m := quotedRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func stripMentions(text string) string {
	text = userMentionRe.ReplaceAllString(text, " ")
	return roleMentionRe.ReplaceAllString(text, " ")
}
