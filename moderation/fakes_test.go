package moderation

import (
	"context"
	"math"
	"sync"
	"time"

	"ceniza-bot/llm"
	"ceniza-bot/model"

	"github.com/bwmarrin/discordgo"
)

type fakeMember struct {
	id    string
	name  string
	perms int64
	top   int
}

func (m *fakeMember) ID() string           { return m.id }
func (m *fakeMember) DisplayName() string  { return m.name }
func (m *fakeMember) Permissions() int64   { return m.perms }
func (m *fakeMember) HighestPosition() int { return m.top }
func (m *fakeMember) Kickable() bool       { return true }
func (m *fakeMember) Bannable() bool       { return true }
func (m *fakeMember) Manageable() bool     { return true }
func (m *fakeMember) Moderatable() bool    { return true }

type fakeRole struct {
	id      string
	name    string
	pos     int
	managed bool
}

func (r *fakeRole) ID() string    { return r.id }
func (r *fakeRole) Name() string  { return r.name }
func (r *fakeRole) Position() int { return r.pos }
func (r *fakeRole) Managed() bool { return r.managed }

const (
	guildID     = "900000000000000001"
	modID       = "100000000000000001"
	adminID     = "100000000000000002"
	userID      = "100000000000000003"
	botID       = "100000000000000004"
	ownerID     = "100000000000000005"
	memberRole  = "200000000000000001"
	managedRole = "200000000000000002"
	topRole     = "200000000000000003"
)

func newMod() *fakeMember {
	return &fakeMember{id: modID, name: "Mod", perms: modPermissions, top: 5}
}

func newAdmin() *fakeMember {
	return &fakeMember{id: adminID, name: "Admin", perms: discordgo.PermissionAdministrator, top: 3}
}

func newUser() *fakeMember {
	return &fakeMember{id: userID, name: "Usuario", top: 1}
}

func newBot() *fakeMember {
	return &fakeMember{id: botID, name: "Ceniza", perms: discordgo.PermissionAdministrator, top: 10}
}

func newOwner() *fakeMember {
	return &fakeMember{id: ownerID, name: "Owner", perms: discordgo.PermissionAdministrator, top: math.MaxInt}
}

type fakeResolver struct {
	members map[string]model.Member
	roles   map[string]model.Role
	self    model.Member
}

func newFakeResolver() *fakeResolver {
	r := &fakeResolver{
		members: make(map[string]model.Member),
		roles:   make(map[string]model.Role),
		self:    newBot(),
	}
	for _, m := range []*fakeMember{newMod(), newAdmin(), newUser(), newOwner()} {
		r.members[m.id] = m
	}
	for _, role := range []*fakeRole{
		{id: memberRole, name: "Miembro", pos: 2},
		{id: managedRole, name: "Bot Integración", pos: 1, managed: true},
		{id: topRole, name: "Staff", pos: 12},
	} {
		r.roles[role.id] = role
	}
	return r
}

func (r *fakeResolver) ResolveMember(_ context.Context, _, ref string) (model.Member, error) {
	if m, ok := r.members[ref]; ok {
		return m, nil
	}
	return nil, nil
}

func (r *fakeResolver) ResolveRole(_ context.Context, _, ref string) (model.Role, error) {
	if role, ok := r.roles[ref]; ok {
		return role, nil
	}
	for _, role := range r.roles {
		if role.Name() == ref {
			return role, nil
		}
	}
	return nil, nil
}

func (r *fakeResolver) Self(context.Context, string) (model.Member, error) {
	return r.self, nil
}

type executedCall struct {
	Type     model.ActionType
	Target   string
	Role     string
	Duration time.Duration
	Nickname string
}

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []executedCall
	result model.Result
	err    error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{result: model.Ok()}
}

func (e *fakeExecutor) record(c executedCall) (model.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
	return e.result, e.err
}

func (e *fakeExecutor) Calls() []executedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]executedCall(nil), e.calls...)
}

func (e *fakeExecutor) Kick(_ context.Context, _ string, _, target model.Member, _ string) (model.Result, error) {
	return e.record(executedCall{Type: model.ActionKick, Target: target.ID()})
}

func (e *fakeExecutor) Ban(_ context.Context, _ string, _, target model.Member, _ int, _ string) (model.Result, error) {
	return e.record(executedCall{Type: model.ActionBan, Target: target.ID()})
}

func (e *fakeExecutor) Timeout(_ context.Context, _ string, _, target model.Member, d time.Duration, _ string) (model.Result, error) {
	return e.record(executedCall{Type: model.ActionTimeout, Target: target.ID(), Duration: d})
}

func (e *fakeExecutor) SetNickname(_ context.Context, _ string, _, target model.Member, nickname, _ string) (model.Result, error) {
	return e.record(executedCall{Type: model.ActionNicknameSet, Target: target.ID(), Nickname: nickname})
}

func (e *fakeExecutor) AddRole(_ context.Context, _ string, _, target model.Member, role model.Role, _ string) (model.Result, error) {
	return e.record(executedCall{Type: model.ActionRoleAdd, Target: target.ID(), Role: role.ID()})
}

func (e *fakeExecutor) RemoveRole(_ context.Context, _ string, _, target model.Member, role model.Role, _ string) (model.Result, error) {
	return e.record(executedCall{Type: model.ActionRoleRemove, Target: target.ID(), Role: role.ID()})
}

// fakeLLM returns a canned reply and counts calls.
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  llm.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.reply, f.err
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAudit struct {
	mu      sync.Mutex
	records []model.ModerationRecord
}

func (a *fakeAudit) RecordAction(_ context.Context, rec model.ModerationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *fakeAudit) Records() []model.ModerationRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.ModerationRecord(nil), a.records...)
}
