package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ceniza-bot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Init(filepath.Join(t.TempDir(), "data", "ceniza.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ceniza.db")
	s, err := Init(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Init(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestModerationLog(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now()

	recs := []model.ModerationRecord{
		{ActionID: "a1", GuildID: "g", RequesterID: "mod", TargetID: "u1", ActionType: "ban", Detail: "{}", Surface: model.SurfaceMessage, Success: true, Timestamp: now.Add(-2 * time.Hour).Unix()},
		{ActionID: "a2", GuildID: "g", RequesterID: "mod", TargetID: "u1", ActionType: "timeout", Detail: "{}", Surface: model.SurfaceSlash, FailReason: "sin permisos", Timestamp: now.Unix()},
		{ActionID: "a3", GuildID: "g", RequesterID: "mod", TargetID: "u2", ActionType: "kick", Detail: "{}", Success: true, Timestamp: now.Unix()},
		{ActionID: "a4", GuildID: "other", RequesterID: "mod", TargetID: "u1", ActionType: "kick", Detail: "{}", Success: true, Timestamp: now.Unix()},
	}
	for _, r := range recs {
		require.NoError(t, s.RecordAction(ctx, r))
	}

	got, err := s.RecordsForTarget(ctx, "g", "u1", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ActionID)
	assert.False(t, got[0].Success)
	assert.Equal(t, "sin permisos", got[0].FailReason)
	assert.Equal(t, model.SurfaceSlash, got[0].Surface)
	assert.NotZero(t, got[0].LogID)

	since := now.Add(-time.Hour)
	got, err = s.RecordsForTarget(ctx, "g", "u1", &since)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	recent, err := s.RecentRecords(ctx, "g", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestUsageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	empty, err := s.LoadUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", empty.Day)

	c := model.NewUsageCounter("2024-03-10")
	c.GlobalUsed = 3
	c.PerUser["u1"] = model.UserUsage{Edit: 2, Generate: 1}
	require.NoError(t, s.SaveUsage(ctx, c))

	c.GlobalUsed = 4
	c.PerUser["u2"] = model.UserUsage{Edit: 1}
	require.NoError(t, s.SaveUsage(ctx, c))

	got, err := s.LoadUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	next := model.NewUsageCounter("2024-03-11")
	next.GlobalUsed = 1
	next.PerUser["u3"] = model.UserUsage{Generate: 1}
	require.NoError(t, s.SaveUsage(ctx, next))

	got, err = s.LoadUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, got)
}
