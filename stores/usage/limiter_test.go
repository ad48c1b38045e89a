package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ceniza-bot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu    sync.Mutex
	saved model.UsageCounter
	saves int
	err   error
}

func (p *memPersister) LoadUsage(context.Context) (model.UsageCounter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved.Clone(), nil
}

func (p *memPersister) SaveUsage(_ context.Context, c model.UsageCounter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saved = c.Clone()
	p.saves++
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newLimiter(t *testing.T, limits model.UsageLimits, p Persister, c *clock) *Limiter {
	t.Helper()
	l, err := New(context.Background(), limits, p, WithClock(c.Now))
	require.NoError(t, err)
	return l
}

func TestTryConsumePerUserLimits(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	p := &memPersister{}
	l := newLimiter(t, model.UsageLimits{}, p, c)

	g, err := l.TryConsume(ctx, "u1", KindGenerate)
	require.NoError(t, err)
	assert.True(t, g.Granted)
	assert.Equal(t, Remaining{Global: 14, Edit: 2, Generate: 0}, g.Remaining)

	g, _ = l.TryConsume(ctx, "u1", KindGenerate)
	assert.False(t, g.Granted)
	assert.Equal(t, ReasonUser, g.Reason)

	for i := 0; i < 2; i++ {
		g, _ = l.TryConsume(ctx, "u1", KindEdit)
		assert.True(t, g.Granted)
	}
	g, _ = l.TryConsume(ctx, "u1", KindEdit)
	assert.Equal(t, ReasonUser, g.Reason)

	assert.Equal(t, 3, p.saved.GlobalUsed)
	assert.Equal(t, model.UserUsage{Edit: 2, Generate: 1}, p.saved.PerUser["u1"])
	assert.Equal(t, "2024-03-10", p.saved.Day)
	assert.Equal(t, 3, p.saves, "only granted uses are persisted")
}

func TestTryConsumeGlobalLimit(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(t, model.UsageLimits{GlobalPerDay: 3, EditPerDay: 5, GeneratePerDay: 5}, nil, c)

	for i := 0; i < 3; i++ {
		g, _ := l.TryConsume(ctx, fmt.Sprintf("u%d", i), KindEdit)
		require.True(t, g.Granted)
	}
	g, _ := l.TryConsume(ctx, "fresh", KindEdit)
	assert.False(t, g.Granted)
	assert.Equal(t, ReasonGlobal, g.Reason)
	assert.Equal(t, 0, g.Remaining.Global)
}

func TestTryConsumeRollsOverAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)}
	p := &memPersister{}
	l := newLimiter(t, model.UsageLimits{}, p, c)

	g, _ := l.TryConsume(ctx, "u1", KindGenerate)
	require.True(t, g.Granted)
	g, _ = l.TryConsume(ctx, "u1", KindGenerate)
	require.False(t, g.Granted)

	c.Set(time.Date(2024, 3, 11, 0, 0, 1, 0, time.UTC))
	g, _ = l.TryConsume(ctx, "u1", KindGenerate)
	assert.True(t, g.Granted)
	assert.Equal(t, "2024-03-11", p.saved.Day)
	assert.Equal(t, 1, p.saved.GlobalUsed)
}

func TestRolloverAndSnapshot(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}
	p := &memPersister{}
	l := newLimiter(t, model.UsageLimits{}, p, c)

	_, _ = l.TryConsume(ctx, "u1", KindEdit)
	assert.Equal(t, Remaining{Global: 14, Edit: 1, Generate: 1}, l.Snapshot(ctx, "u1"))
	assert.False(t, l.Rollover(ctx))

	c.Set(c.Now().Add(24 * time.Hour))
	assert.True(t, l.Rollover(ctx))
	assert.Equal(t, Remaining{Global: 15, Edit: 2, Generate: 1}, l.Snapshot(ctx, "u1"))
	assert.Equal(t, "2024-03-11", p.saved.Day)
}

func TestNewRestoresTodayOnly(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}

	today := &memPersister{saved: model.UsageCounter{
		Day:        "2024-03-10",
		GlobalUsed: 4,
		PerUser:    map[string]model.UserUsage{"u1": {Generate: 1}},
	}}
	l := newLimiter(t, model.UsageLimits{}, today, c)
	assert.Equal(t, Remaining{Global: 11, Edit: 2, Generate: 0}, l.Snapshot(ctx, "u1"))

	stale := &memPersister{saved: model.UsageCounter{Day: "2024-03-09", GlobalUsed: 15}}
	l = newLimiter(t, model.UsageLimits{}, stale, c)
	assert.Equal(t, 15, l.Snapshot(ctx, "u1").Global)
}

func TestTryConsumeConcurrentNeverOvercharges(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}
	p := &memPersister{}
	l := newLimiter(t, model.UsageLimits{GlobalPerDay: 10, EditPerDay: 100, GeneratePerDay: 100}, p, c)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := l.TryConsume(ctx, fmt.Sprintf("u%d", i%5), KindEdit)
			assert.NoError(t, err)
			if g.Granted {
				granted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 10, granted.Load())
	assert.Equal(t, 10, p.saved.GlobalUsed, "the newest state is the one persisted")
}

func TestTryConsumeUnknownKind(t *testing.T) {
	c := &clock{now: time.Now()}
	l := newLimiter(t, model.UsageLimits{}, nil, c)
	_, err := l.TryConsume(context.Background(), "u1", Kind("video"))
	assert.Error(t, err)
}

func TestPersistFailureKeepsGrant(t *testing.T) {
	c := &clock{now: time.Now()}
	p := &memPersister{err: errors.New("disk full")}
	l := newLimiter(t, model.UsageLimits{}, p, c)

	g, err := l.TryConsume(context.Background(), "u1", KindGenerate)
	require.NoError(t, err)
	assert.True(t, g.Granted)
	g, _ = l.TryConsume(context.Background(), "u1", KindGenerate)
	assert.False(t, g.Granted)
}
