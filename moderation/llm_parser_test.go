package moderation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ceniza-bot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func parseWith(t *testing.T, reply string, req ModelParseRequest) (model.Action, bool, *fakeLLM) {
	t.Helper()
	fake := &fakeLLM{reply: reply}
	p := NewModelParser(fake, zap.NewNop())
	a, ok, err := p.Parse(context.Background(), req)
	require.NoError(t, err)
	return a, ok, fake
}

func TestModelParserAcceptsAction(t *testing.T) {
	a, ok, fake := parseWith(t,
		`{"kind":"ACTION","action":{"type":"timeout","target":"<@123456789012345678>","duration_ms":600000,"reason":"spam"}}`,
		ModelParseRequest{Text: "callalo un rato", GuildName: "Ceniza"})
	require.True(t, ok)
	assert.Equal(t, model.Action{
		Type:         model.ActionTimeout,
		TargetUserID: target,
		Duration:     10 * time.Minute,
		Reason:       "spam",
	}, a)

	assert.Equal(t, 0.0, fake.last.Temperature)
	assert.Equal(t, modelParserMaxTokens, fake.last.MaxTokens)
	assert.Contains(t, fake.last.Messages[0].Content, "callalo un rato")
}

func TestModelParserSalvagesWrappedJSON(t *testing.T) {
	a, ok, _ := parseWith(t,
		"Claro, aquí va:\n```json\n{\"kind\":\"ACTION\",\"action\":{\"type\":\"role_add\",\"target\":\"123456789012345678\",\"role\":\"<@&223456789012345678>\"}}\n```",
		ModelParseRequest{Text: "dale vip"})
	require.True(t, ok)
	assert.Equal(t, model.ActionRoleAdd, a.Type)
	assert.Equal(t, "223456789012345678", a.RoleRef)
}

func TestModelParserFallsBackToDefaultTarget(t *testing.T) {
	a, ok, _ := parseWith(t,
		`{"kind":"ACTION","action":{"type":"kick","target":null}}`,
		ModelParseRequest{Text: "saca a este", DefaultTargetUserID: target})
	require.True(t, ok)
	assert.Equal(t, target, a.TargetUserID)
}

func TestModelParserRejects(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"none", `{"kind":"NONE"}`},
		{"not json", "no sé qué quieres"},
		{"unknown kind", `{"kind":"MAYBE"}`},
		{"unknown action type", `{"kind":"ACTION","action":{"type":"delete_channel","target":"123456789012345678"}}`},
		{"action missing", `{"kind":"ACTION"}`},
		{"no target", `{"kind":"ACTION","action":{"type":"ban"}}`},
		{"timeout without duration", `{"kind":"ACTION","action":{"type":"timeout","target":"123456789012345678"}}`},
		{"negative duration", `{"kind":"ACTION","action":{"type":"timeout","target":"123456789012345678","duration_ms":-5}}`},
		{"empty nickname", `{"kind":"ACTION","action":{"type":"nickname_set","target":"123456789012345678","new_nickname":"  "}}`},
		{"role missing", `{"kind":"ACTION","action":{"type":"role_remove","target":"123456789012345678"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, _ := parseWith(t, tt.reply, ModelParseRequest{Text: "x"})
			assert.False(t, ok)
		})
	}
}

func TestModelParserTimeoutBounds(t *testing.T) {
	timeout := func(ms string) string {
		return `{"kind":"ACTION","action":{"type":"timeout","target":"123456789012345678","duration_ms":` + ms + `}}`
	}

	a, ok, _ := parseWith(t, timeout("18446744073710"), ModelParseRequest{Text: "silencialo para siempre"})
	require.True(t, ok)
	assert.Equal(t, MaxTimeout, a.Duration, "huge values clamp instead of wrapping")

	a, ok, _ = parseWith(t, timeout("1e300"), ModelParseRequest{Text: "silencialo"})
	require.True(t, ok)
	assert.Equal(t, MaxTimeout, a.Duration)

	a, ok, _ = parseWith(t, timeout("90000.4"), ModelParseRequest{Text: "silencialo"})
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, a.Duration)

	_, ok, _ = parseWith(t, timeout("0"), ModelParseRequest{Text: "silencia a ese un rato"})
	assert.False(t, ok, "zero is not a removal unless asked for")
	_, ok, _ = parseWith(t, timeout("0.2"), ModelParseRequest{Text: "silencia a ese un rato"})
	assert.False(t, ok)

	a, ok, _ = parseWith(t, timeout("0"), ModelParseRequest{Text: "quita el mute a ese"})
	require.True(t, ok)
	assert.Zero(t, a.Duration)
}

func TestModelTimeoutRejectsNonFinite(t *testing.T) {
	_, ok := modelTimeout(math.NaN(), "desmute")
	assert.False(t, ok)
	_, ok = modelTimeout(math.Inf(1), "desmute")
	assert.False(t, ok)
}

func TestModelParserTransportError(t *testing.T) {
	p := NewModelParser(&fakeLLM{err: errors.New("boom")}, zap.NewNop())
	_, ok, err := p.Parse(context.Background(), ModelParseRequest{Text: "x"})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestBuildModelParserPrompt(t *testing.T) {
	got := buildModelParserPrompt(ModelParseRequest{
		Text:    "banea a ese",
		Speaker: Speaker{ID: modID, DisplayName: "Mod", IsAdmin: true},
	})
	assert.Contains(t, got, "Servidor: desconocido")
	assert.Contains(t, got, "admin=sí")
	assert.Contains(t, got, "default_target_user_id: (none)")
	assert.Contains(t, got, "Mensaje:\nbanea a ese")
}
