package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ceniza-bot/metrics"
	"ceniza-bot/model"
	"ceniza-bot/stores/confirm"
	"ceniza-bot/utils"

	"go.uber.org/zap"
)

// MaxTimeout is the longest timeout the platform accepts.
const MaxTimeout = 28 * utils.Day

// User facing replies produced while preparing an action.
const (
	MsgNoModPermission  = "❌ Entiendo la intención, pero no tienes permisos de moderación para pedirme eso."
	MsgModelNoAction    = "No pude entender la acción exacta. Probá mencionar al usuario y (si aplica) el rol."
	MsgTargetMissing    = "No pude determinar el usuario objetivo. Menciónalo con @ o responde a su mensaje."
	MsgTargetNotFound   = "No pude encontrar al usuario objetivo. Menciónalo con @ o pega su ID."
	MsgRoleNotFound     = "No pude encontrar el rol. Menciónalo como <@&rol> o usa /role."
	MsgSelfNotAvailable = "No pude verificar mis propios permisos en este servidor."
	MsgRequesterMissing = "No pude encontrar al solicitante en el servidor."
	MsgUnknownAction    = "No reconozco esa acción."
)

// ActionParser is the model assisted fallback parser.
type ActionParser interface {
	Parse(ctx context.Context, req ModelParseRequest) (model.Action, bool, error)
}

// AuditLog records executed actions.
type AuditLog interface {
	RecordAction(ctx context.Context, rec model.ModerationRecord) error
}

// Orchestrator turns moderation requests into confirmations and runs
// confirmed actions.
type Orchestrator struct {
	resolver model.IdentityResolver
	executor model.ActionExecutor
	store    confirm.Store
	parser   ActionParser
	audit    AuditLog
	log      *zap.Logger
	now      func() time.Time
}

// Deps are the collaborators of an Orchestrator. Parser and Audit may be
// nil.
type Deps struct {
	Resolver model.IdentityResolver
	Executor model.ActionExecutor
	Store    confirm.Store
	Parser   ActionParser
	Audit    AuditLog
	Logger   *zap.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		resolver: d.Resolver,
		executor: d.Executor,
		store:    d.Store,
		parser:   d.Parser,
		audit:    d.Audit,
		log:      log.Named("moderation"),
		now:      time.Now,
	}
}

// TTL is the confirmation lifetime of the underlying store.
func (o *Orchestrator) TTL() time.Duration { return o.store.TTL() }

// Request is a free text moderation request.
type Request struct {
	Origin              model.Origin
	GuildName           string
	Requester           model.Member
	Text                string
	DefaultTargetUserID string
	RepliedSummary      string
	// Forced skips the keyword heuristic, e.g. when the router already
	// classified the message as a moderation request.
	Forced bool
}

// Outcome says what the caller should do with a Prepared value.
type Outcome int

const (
	// OutcomeNotAction means the message is not a moderation request.
	OutcomeNotAction Outcome = iota
	// OutcomeReply means Message must be shown to the requester.
	OutcomeReply
	// OutcomePrompt means Pending awaits confirmation.
	OutcomePrompt
)

// Prepared is the result of Prepare and PrepareAction.
type Prepared struct {
	Outcome Outcome
	Message string
	Pending *model.PendingAction
}

func reply(msg string) Prepared { return Prepared{Outcome: OutcomeReply, Message: msg} }

// Prepare parses a free text request with the keyword rules, falling back to
// the model parser, and then validates and stores it.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (Prepared, error) {
	if !req.Forced && !LooksLikeActionRequest(req.Text) {
		return Prepared{Outcome: OutcomeNotAction}, nil
	}
	if !HasAnyModPermission(req.Requester) {
		return reply(MsgNoModPermission), nil
	}

	rules := ParseRules(req.Text, RuleOptions{DefaultTargetUserID: req.DefaultTargetUserID})
	action := rules.Action
	if !rules.OK {
		if o.parser == nil {
			return reply(rules.Err), nil
		}
		parsed, ok, err := o.parser.Parse(ctx, ModelParseRequest{
			Text:      req.Text,
			GuildName: req.GuildName,
			Speaker: Speaker{
				ID:          req.Requester.ID(),
				DisplayName: req.Requester.DisplayName(),
				IsAdmin:     IsAdmin(req.Requester),
			},
			DefaultTargetUserID: req.DefaultTargetUserID,
			RepliedSummary:      req.RepliedSummary,
		})
		if err != nil {
			return Prepared{}, err
		}
		if !ok {
			o.log.Debug("no action understood", zap.String("rule_error", rules.Err))
			return reply(MsgModelNoAction), nil
		}
		action = parsed
	}

	return o.PrepareAction(ctx, req.Requester, action, req.Origin)
}

// PrepareAction validates an already structured action and stores it for
// confirmation. Slash commands enter here directly.
func (o *Orchestrator) PrepareAction(ctx context.Context, requester model.Member, action model.Action, origin model.Origin) (Prepared, error) {
	if !action.Type.Valid() {
		return reply(MsgUnknownAction), nil
	}
	guildID := origin.GuildID
	if action.TargetUserID == "" {
		return reply(MsgTargetMissing), nil
	}

	target, err := o.resolver.ResolveMember(ctx, guildID, action.TargetUserID)
	if err != nil {
		return Prepared{}, fmt.Errorf("resolve target: %w", err)
	}
	if target == nil {
		return reply(MsgTargetNotFound), nil
	}
	action.TargetUserID = target.ID()

	self, err := o.resolver.Self(ctx, guildID)
	if err != nil {
		return Prepared{}, fmt.Errorf("resolve bot member: %w", err)
	}
	if self == nil {
		return reply(MsgSelfNotAvailable), nil
	}

	if d := CanManage(requester, self, target, RequiredPermission(action.Type)); !d.OK {
		metrics.ModerationActionsTotal.WithLabelValues(string(action.Type), "denied").Inc()
		return reply(d.Reason), nil
	}

	switch action.Type {
	case model.ActionRoleAdd, model.ActionRoleRemove:
		role, err := o.resolver.ResolveRole(ctx, guildID, action.RoleRef)
		if err != nil {
			return Prepared{}, fmt.Errorf("resolve role: %w", err)
		}
		if role == nil {
			return reply(MsgRoleNotFound), nil
		}
		if d := CanManageRole(self, role); !d.OK {
			metrics.ModerationActionsTotal.WithLabelValues(string(action.Type), "denied").Inc()
			return reply(d.Reason), nil
		}
		action.RoleID = role.ID()
		action.RoleName = role.Name()
	case model.ActionNicknameSet:
		if action.NewNickname == "" {
			return reply(ErrMsgMissingNickname), nil
		}
		action.NewNickname = utils.Truncate(action.NewNickname, maxNicknameLen)
	case model.ActionTimeout:
		if action.Duration < 0 {
			return reply(ErrMsgMissingDuration), nil
		}
		if action.Duration > MaxTimeout {
			action.Duration = MaxTimeout
		}
	}

	pending, err := o.store.Create(ctx, requester.ID(), action, origin)
	if err != nil {
		return Prepared{}, fmt.Errorf("create confirmation: %w", err)
	}
	metrics.ModerationActionsTotal.WithLabelValues(string(action.Type), "prompted").Inc()
	o.log.Info("confirmation created",
		zap.String("type", string(action.Type)),
		zap.String("guild_id", guildID),
		zap.String("requester_id", requester.ID()),
		zap.String("target_id", action.TargetUserID),
	)

	return Prepared{Outcome: OutcomePrompt, Pending: pending}, nil
}

// Resolution is the result of a confirm or cancel click.
type Resolution int

const (
	// ResolutionInvalid covers unknown, expired, used and foreign tokens.
	ResolutionInvalid Resolution = iota
	ResolutionCancelled
	ResolutionConfirmed
)

// Resolve consumes the token on behalf of userID. The record is only
// returned for ResolutionConfirmed and must then be passed to Execute.
func (o *Orchestrator) Resolve(ctx context.Context, token, userID string, confirmed bool) (*model.PendingAction, Resolution, error) {
	rec, err := o.store.ConsumeFor(ctx, token, userID)
	if err != nil {
		return nil, ResolutionInvalid, err
	}
	if rec == nil {
		metrics.ConfirmationsTotal.WithLabelValues("invalid").Inc()
		return nil, ResolutionInvalid, nil
	}
	if !confirmed {
		metrics.ConfirmationsTotal.WithLabelValues("cancelled").Inc()
		o.log.Info("confirmation cancelled", zap.String("token", token), zap.String("type", string(rec.Action.Type)))
		return nil, ResolutionCancelled, nil
	}
	metrics.ConfirmationsTotal.WithLabelValues("confirmed").Inc()
	return rec, ResolutionConfirmed, nil
}

// Execute runs a confirmed action through the executor and records it.
func (o *Orchestrator) Execute(ctx context.Context, p *model.PendingAction) (model.Result, error) {
	res, err := o.execute(ctx, p)
	outcome := "executed"
	if err != nil || !res.OK {
		outcome = "failed"
	}
	metrics.ModerationActionsTotal.WithLabelValues(string(p.Action.Type), outcome).Inc()

	fields := []zap.Field{
		zap.String("token", p.ID),
		zap.String("type", string(p.Action.Type)),
		zap.String("guild_id", p.Origin.GuildID),
		zap.String("requester_id", p.RequesterID),
		zap.String("target_id", p.Action.TargetUserID),
	}
	switch {
	case err != nil:
		o.log.Error("action execution error", append(fields, zap.Error(err))...)
	case !res.OK:
		o.log.Warn("action refused", append(fields, zap.String("reason", res.Reason))...)
	default:
		o.log.Info("action executed", fields...)
	}

	o.record(ctx, p, res, err)
	return res, err
}

func (o *Orchestrator) execute(ctx context.Context, p *model.PendingAction) (model.Result, error) {
	guildID := p.Origin.GuildID
	a := p.Action

	requester, err := o.resolver.ResolveMember(ctx, guildID, p.RequesterID)
	if err != nil {
		return model.Result{}, fmt.Errorf("resolve requester: %w", err)
	}
	if requester == nil {
		return model.Fail(MsgRequesterMissing), nil
	}
	target, err := o.resolver.ResolveMember(ctx, guildID, a.TargetUserID)
	if err != nil {
		return model.Result{}, fmt.Errorf("resolve target: %w", err)
	}
	if target == nil {
		return model.Fail(MsgTargetNotFound), nil
	}

	switch a.Type {
	case model.ActionKick:
		return o.executor.Kick(ctx, guildID, requester, target, a.Reason)
	case model.ActionBan:
		return o.executor.Ban(ctx, guildID, requester, target, a.DeleteMessageSeconds, a.Reason)
	case model.ActionTimeout:
		return o.executor.Timeout(ctx, guildID, requester, target, a.Duration, a.Reason)
	case model.ActionNicknameSet:
		return o.executor.SetNickname(ctx, guildID, requester, target, a.NewNickname, a.Reason)
	case model.ActionRoleAdd, model.ActionRoleRemove:
		role, err := o.resolver.ResolveRole(ctx, guildID, a.RoleID)
		if err != nil {
			return model.Result{}, fmt.Errorf("resolve role: %w", err)
		}
		if role == nil {
			return model.Fail(MsgRoleNotFound), nil
		}
		if a.Type == model.ActionRoleAdd {
			return o.executor.AddRole(ctx, guildID, requester, target, role, a.Reason)
		}
		return o.executor.RemoveRole(ctx, guildID, requester, target, role, a.Reason)
	}
	return model.Fail(MsgUnknownAction), nil
}

func (o *Orchestrator) record(ctx context.Context, p *model.PendingAction, res model.Result, execErr error) {
	if o.audit == nil {
		return
	}
	detail, err := json.Marshal(p.Action)
	if err != nil {
		detail = []byte("{}")
	}
	failReason := res.Reason
	if execErr != nil {
		failReason = execErr.Error()
	}
	rec := model.ModerationRecord{
		ActionID:    p.ID,
		GuildID:     p.Origin.GuildID,
		ChannelID:   p.Origin.ChannelID,
		RequesterID: p.RequesterID,
		TargetID:    p.Action.TargetUserID,
		ActionType:  string(p.Action.Type),
		Reason:      p.Action.Reason,
		Detail:      string(detail),
		Surface:     p.Origin.Surface,
		Success:     execErr == nil && res.OK,
		FailReason:  failReason,
		Timestamp:   o.now().Unix(),
	}
	if err := o.audit.RecordAction(ctx, rec); err != nil {
		o.log.Warn("failed to write audit record", zap.String("token", p.ID), zap.Error(err))
	}
}
