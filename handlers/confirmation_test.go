package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"ceniza-bot/bot"
	"ceniza-bot/model"
	"ceniza-bot/moderation"
	"ceniza-bot/stores/confirm"
	"ceniza-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testLogChannel = "700000000000000001"
	testModID      = "200000000000000001"
	testTargetID   = "200000000000000002"
)

type discordCall struct {
	Method string
	Path   string
	Body   []byte
}

// fakeDiscord records REST calls made by a session and answers them all
// with 200 and a minimal message.
type fakeDiscord struct {
	mu    sync.Mutex
	calls []discordCall
}

func (f *fakeDiscord) RoundTrip(r *http.Request) (*http.Response, error) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, discordCall{Method: r.Method, Path: r.URL.Path, Body: body})
	f.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"id":"999"}`)),
		Request:    r,
	}, nil
}

func (f *fakeDiscord) matching(part string) []discordCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []discordCall
	for _, c := range f.calls {
		if strings.Contains(c.Path, part) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeDiscord) callbacks(t *testing.T) []discordgo.InteractionResponse {
	t.Helper()
	var out []discordgo.InteractionResponse
	for _, c := range f.matching("/callback") {
		var r discordgo.InteractionResponse
		require.NoError(t, json.Unmarshal(c.Body, &r))
		out = append(out, r)
	}
	return out
}

func (f *fakeDiscord) followUps(t *testing.T) []discordgo.WebhookParams {
	t.Helper()
	var out []discordgo.WebhookParams
	for _, c := range f.matching("/webhooks/") {
		var p discordgo.WebhookParams
		require.NoError(t, json.Unmarshal(c.Body, &p))
		out = append(out, p)
	}
	return out
}

func (f *fakeDiscord) logTitles(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, c := range f.matching("/channels/" + testLogChannel + "/messages") {
		var m discordgo.MessageSend
		require.NoError(t, json.Unmarshal(c.Body, &m))
		for _, e := range m.Embeds {
			out = append(out, e.Title)
		}
	}
	return out
}

type stubMember struct{ id string }

func (m stubMember) ID() string           { return m.id }
func (m stubMember) DisplayName() string  { return m.id }
func (m stubMember) Permissions() int64   { return discordgo.PermissionAdministrator }
func (m stubMember) HighestPosition() int { return 10 }
func (m stubMember) Kickable() bool       { return true }
func (m stubMember) Bannable() bool       { return true }
func (m stubMember) Manageable() bool     { return true }
func (m stubMember) Moderatable() bool    { return true }

type stubResolver struct{}

func (stubResolver) ResolveMember(_ context.Context, _, ref string) (model.Member, error) {
	if ref == testModID || ref == testTargetID {
		return stubMember{id: ref}, nil
	}
	return nil, nil
}

func (stubResolver) ResolveRole(context.Context, string, string) (model.Role, error) {
	return nil, nil
}

func (stubResolver) Self(context.Context, string) (model.Member, error) {
	return stubMember{id: "bot"}, nil
}

type stubExecutor struct {
	mu     sync.Mutex
	kicked []string
	result model.Result
	err    error
}

func (e *stubExecutor) Kicked() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.kicked...)
}

func (e *stubExecutor) Kick(_ context.Context, _ string, _, target model.Member, _ string) (model.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kicked = append(e.kicked, target.ID())
	return e.result, e.err
}

func (e *stubExecutor) Ban(context.Context, string, model.Member, model.Member, int, string) (model.Result, error) {
	return model.Fail("unexpected"), nil
}

func (e *stubExecutor) Timeout(context.Context, string, model.Member, model.Member, time.Duration, string) (model.Result, error) {
	return model.Fail("unexpected"), nil
}

func (e *stubExecutor) SetNickname(context.Context, string, model.Member, model.Member, string, string) (model.Result, error) {
	return model.Fail("unexpected"), nil
}

func (e *stubExecutor) AddRole(context.Context, string, model.Member, model.Member, model.Role, string) (model.Result, error) {
	return model.Fail("unexpected"), nil
}

func (e *stubExecutor) RemoveRole(context.Context, string, model.Member, model.Member, model.Role, string) (model.Result, error) {
	return model.Fail("unexpected"), nil
}

type confirmationFixture struct {
	b       *bot.Bot
	discord *fakeDiscord
	store   *confirm.MemoryStore
	exec    *stubExecutor
}

func newConfirmationFixture(t *testing.T) *confirmationFixture {
	t.Helper()
	discord := &fakeDiscord{}
	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	s.Client = &http.Client{Transport: discord}

	f := &confirmationFixture{
		discord: discord,
		store:   confirm.NewMemoryStore(confirm.DefaultTTL),
		exec:    &stubExecutor{result: model.Ok()},
	}
	f.b = &bot.Bot{
		Session: s,
		Log:     zap.NewNop(),
		Confirm: f.store,
		Respond: utils.NewResponder(s, zap.NewNop()),
	}
	f.b.SetConfig(&model.Config{LogChannelID: testLogChannel})
	f.b.Orchestrator = moderation.NewOrchestrator(moderation.Deps{
		Resolver: stubResolver{},
		Executor: f.exec,
		Store:    f.store,
		Logger:   zap.NewNop(),
	})
	return f
}

var kickAction = model.Action{Type: model.ActionKick, TargetUserID: testTargetID, Reason: "spam"}

func (f *confirmationFixture) pending(t *testing.T) string {
	t.Helper()
	rec, err := f.store.Create(context.Background(), testModID, kickAction, model.Origin{GuildID: testGuildID, Surface: model.SurfaceSlash})
	require.NoError(t, err)
	return rec.ID
}

func (f *confirmationFixture) click(id, userID, customID string) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:      id,
		AppID:   "300000000000000001",
		Token:   "token-" + id,
		Type:    discordgo.InteractionMessageComponent,
		GuildID: testGuildID,
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
	}}
	handleConfirmation(f.b.Session, i, f.b, customID)
}

func TestConfirmClickExecutesOnce(t *testing.T) {
	f := newConfirmationFixture(t)
	token := f.pending(t)

	f.click("1", testModID, confirmPrefix+token)

	callbacks := f.discord.callbacks(t)
	require.Len(t, callbacks, 1)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, callbacks[0].Type)
	assert.Equal(t, msgActionRunning, callbacks[0].Data.Content)
	assert.Empty(t, callbacks[0].Data.Components, "buttons are removed")

	followUps := f.discord.followUps(t)
	require.Len(t, followUps, 1)
	assert.Equal(t, resultMessage(kickAction, model.Ok(), nil), followUps[0].Content)
	assert.Equal(t, []string{testTargetID}, f.exec.Kicked())
	assert.Equal(t, []string{"INFO Log"}, f.discord.logTitles(t))

	f.click("2", testModID, confirmPrefix+token)

	callbacks = f.discord.callbacks(t)
	require.Len(t, callbacks, 2)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, callbacks[1].Type)
	assert.Equal(t, msgConfirmExpired, callbacks[1].Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, callbacks[1].Data.Flags)
	assert.Len(t, f.discord.followUps(t), 1)
	assert.Len(t, f.exec.Kicked(), 1, "a second click never executes again")
}

func TestConfirmClickByOtherUserKeepsToken(t *testing.T) {
	f := newConfirmationFixture(t)
	token := f.pending(t)

	f.click("1", "200000000000000009", confirmPrefix+token)
	callbacks := f.discord.callbacks(t)
	require.Len(t, callbacks, 1)
	assert.Equal(t, msgConfirmExpired, callbacks[0].Data.Content, "foreign clicks get the generic message")
	assert.Equal(t, 1, f.store.Len())

	f.click("2", testModID, cancelPrefix+token)
	callbacks = f.discord.callbacks(t)
	require.Len(t, callbacks, 2)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, callbacks[1].Type)
	assert.Equal(t, msgActionCancelled, callbacks[1].Data.Content)

	assert.Empty(t, f.exec.Kicked())
	assert.Empty(t, f.discord.followUps(t))
	assert.Empty(t, f.discord.logTitles(t))
	assert.Equal(t, 0, f.store.Len())
}

func TestConfirmClickUnknownToken(t *testing.T) {
	f := newConfirmationFixture(t)

	f.click("1", testModID, confirmPrefix)
	f.click("2", testModID, confirmPrefix+"never-issued")

	for _, cb := range f.discord.callbacks(t) {
		assert.Equal(t, msgConfirmExpired, cb.Data.Content)
	}
	assert.Len(t, f.discord.callbacks(t), 2)
	assert.Empty(t, f.exec.Kicked())
}

func TestConfirmClickLogLevels(t *testing.T) {
	f := newConfirmationFixture(t)
	f.exec.result = model.Fail("No puedo expulsar a ese usuario.")
	f.click("1", testModID, confirmPrefix+f.pending(t))

	f.exec.result = model.Result{}
	f.exec.err = errors.New("discord unavailable")
	f.click("2", testModID, confirmPrefix+f.pending(t))

	assert.Equal(t, []string{"WARN Log", "ERROR Log"}, f.discord.logTitles(t))
	assert.Len(t, f.discord.followUps(t), 2)
}
