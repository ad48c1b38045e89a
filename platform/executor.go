package platform

import (
	"context"
	"fmt"
	"time"

	"ceniza-bot/model"
	"ceniza-bot/moderation"
)

const (
	maxBanDeleteDays = 7
	secondsPerDay    = 86400
)

// Failure reasons reported by the executor.
const (
	FailBotMissing     = "No pude obtener mis propios permisos en este servidor."
	FailForbidden      = "Discord rechazó la acción por falta de permisos."
	FailTimeoutTooBig  = "El timeout no puede superar 28 días."
	FailNotKickable    = "No puedo expulsar a ese usuario."
	FailNotBannable    = "No puedo banear a ese usuario."
	FailNotModeratable = "No puedo aplicar timeout a ese usuario."
	FailNotManageable  = "No puedo gestionar a ese usuario."
)

// Executor implements model.ActionExecutor. Every call re-runs the
// authorization gate against fresh state before touching Discord.
type Executor struct {
	api      API
	resolver model.IdentityResolver
	now      func() time.Time
}

func NewExecutor(api API, resolver model.IdentityResolver) *Executor {
	return &Executor{api: api, resolver: resolver, now: time.Now}
}

var _ model.ActionExecutor = (*Executor)(nil)

func (e *Executor) gate(ctx context.Context, guildID string, requester, target model.Member, t model.ActionType) (model.Member, *model.Result, error) {
	self, err := e.resolver.Self(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}
	if self == nil {
		res := model.Fail(FailBotMissing)
		return nil, &res, nil
	}
	if d := moderation.CanManage(requester, self, target, moderation.RequiredPermission(t)); !d.OK {
		res := model.Fail(d.Reason)
		return nil, &res, nil
	}
	return self, nil, nil
}

// finish maps an API error to a result. 403s are expected refusals.
func finish(action string, err error) (model.Result, error) {
	switch {
	case err == nil:
		return model.Ok(), nil
	case isForbidden(err):
		return model.Fail(FailForbidden), nil
	default:
		return model.Result{}, fmt.Errorf("%s: %w", action, err)
	}
}

func (e *Executor) Kick(ctx context.Context, guildID string, requester, target model.Member, reason string) (model.Result, error) {
	if _, res, err := e.gate(ctx, guildID, requester, target, model.ActionKick); res != nil || err != nil {
		return deref(res), err
	}
	if !target.Kickable() {
		return model.Fail(FailNotKickable), nil
	}
	return finish("kick", e.api.Kick(ctx, guildID, target.ID(), reason))
}

func (e *Executor) Ban(ctx context.Context, guildID string, requester, target model.Member, deleteMessageSeconds int, reason string) (model.Result, error) {
	if _, res, err := e.gate(ctx, guildID, requester, target, model.ActionBan); res != nil || err != nil {
		return deref(res), err
	}
	if !target.Bannable() {
		return model.Fail(FailNotBannable), nil
	}
	return finish("ban", e.api.Ban(ctx, guildID, target.ID(), reason, banDeleteDays(deleteMessageSeconds)))
}

// banDeleteDays converts seconds to the whole days the ban endpoint takes.
func banDeleteDays(secs int) int {
	return min(max(secs/secondsPerDay, 0), maxBanDeleteDays)
}

// Timeout with a zero duration clears an existing timeout.
func (e *Executor) Timeout(ctx context.Context, guildID string, requester, target model.Member, d time.Duration, reason string) (model.Result, error) {
	if d > moderation.MaxTimeout {
		return model.Fail(FailTimeoutTooBig), nil
	}
	if _, res, err := e.gate(ctx, guildID, requester, target, model.ActionTimeout); res != nil || err != nil {
		return deref(res), err
	}
	if !target.Moderatable() {
		return model.Fail(FailNotModeratable), nil
	}
	var until *time.Time
	if d > 0 {
		t := e.now().Add(d)
		until = &t
	}
	return finish("timeout", e.api.Timeout(ctx, guildID, target.ID(), until, reason))
}

func (e *Executor) SetNickname(ctx context.Context, guildID string, requester, target model.Member, nickname, reason string) (model.Result, error) {
	if _, res, err := e.gate(ctx, guildID, requester, target, model.ActionNicknameSet); res != nil || err != nil {
		return deref(res), err
	}
	if !target.Manageable() {
		return model.Fail(FailNotManageable), nil
	}
	return finish("set nickname", e.api.Nickname(ctx, guildID, target.ID(), nickname, reason))
}

func (e *Executor) AddRole(ctx context.Context, guildID string, requester, target model.Member, role model.Role, reason string) (model.Result, error) {
	return e.role(ctx, guildID, requester, target, role, reason, model.ActionRoleAdd)
}

func (e *Executor) RemoveRole(ctx context.Context, guildID string, requester, target model.Member, role model.Role, reason string) (model.Result, error) {
	return e.role(ctx, guildID, requester, target, role, reason, model.ActionRoleRemove)
}

func (e *Executor) role(ctx context.Context, guildID string, requester, target model.Member, role model.Role, reason string, t model.ActionType) (model.Result, error) {
	self, res, err := e.gate(ctx, guildID, requester, target, t)
	if res != nil || err != nil {
		return deref(res), err
	}
	if d := moderation.CanManageRole(self, role); !d.OK {
		return model.Fail(d.Reason), nil
	}
	if t == model.ActionRoleAdd {
		return finish("add role", e.api.RoleAdd(ctx, guildID, target.ID(), role.ID(), reason))
	}
	return finish("remove role", e.api.RoleRemove(ctx, guildID, target.ID(), role.ID(), reason))
}

func deref(r *model.Result) model.Result {
	if r == nil {
		return model.Result{}
	}
	return *r
}
