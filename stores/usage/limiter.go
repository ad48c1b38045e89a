// Package usage keeps the daily quota for the premium image model.
package usage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ceniza-bot/metrics"
	"ceniza-bot/model"

	"go.uber.org/zap"
)

// Kind is the kind of premium use being charged.
type Kind string

const (
	KindEdit     Kind = "edit"
	KindGenerate Kind = "generate"
)

// DenyReason explains a refused TryConsume.
type DenyReason string

const (
	ReasonGlobal DenyReason = "global"
	ReasonUser   DenyReason = "user"
)

const dayLayout = "2006-01-02"

// DefaultLimits are the daily quotas used when none are configured.
func DefaultLimits() model.UsageLimits {
	return model.UsageLimits{GlobalPerDay: 15, EditPerDay: 2, GeneratePerDay: 1}
}

// Persister stores the current day bucket. LoadUsage returns a zero
// counter when nothing was saved yet.
type Persister interface {
	LoadUsage(ctx context.Context) (model.UsageCounter, error)
	SaveUsage(ctx context.Context, c model.UsageCounter) error
}

// Remaining is what is left of each quota for one user today.
type Remaining struct {
	Global   int
	Edit     int
	Generate int
}

// Grant is the result of TryConsume.
type Grant struct {
	Granted   bool
	Reason    DenyReason
	Remaining Remaining
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) { l.log = log.Named("usage") }
}

// Limiter enforces the global and per user daily quotas. Counters reset at
// UTC midnight.
type Limiter struct {
	limits model.UsageLimits
	store  Persister
	now    func() time.Time
	log    *zap.Logger

	mu      sync.Mutex
	state   model.UsageCounter
	version uint64

	saveMu    sync.Mutex
	savedVers uint64
}

// New loads the persisted bucket. Zero limits fall back to DefaultLimits.
func New(ctx context.Context, limits model.UsageLimits, store Persister, opts ...Option) (*Limiter, error) {
	def := DefaultLimits()
	if limits.GlobalPerDay <= 0 {
		limits.GlobalPerDay = def.GlobalPerDay
	}
	if limits.EditPerDay <= 0 {
		limits.EditPerDay = def.EditPerDay
	}
	if limits.GeneratePerDay <= 0 {
		limits.GeneratePerDay = def.GeneratePerDay
	}

	l := &Limiter{limits: limits, store: store, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}

	l.state = model.NewUsageCounter(l.today())
	if store != nil {
		loaded, err := store.LoadUsage(ctx)
		if err != nil {
			return nil, fmt.Errorf("load usage counters: %w", err)
		}
		if loaded.Day == l.today() {
			l.state = loaded.Clone()
		}
	}
	return l, nil
}

// Limits returns the configured quotas.
func (l *Limiter) Limits() model.UsageLimits { return l.limits }

func (l *Limiter) today() string { return l.now().UTC().Format(dayLayout) }

// rolloverLocked resets the bucket when the day changed. l.mu must be held.
func (l *Limiter) rolloverLocked() bool {
	today := l.today()
	if l.state.Day == today {
		return false
	}
	l.state = model.NewUsageCounter(today)
	l.version++
	return true
}

func (l *Limiter) remainingLocked(userID string) Remaining {
	u := l.state.PerUser[userID]
	return Remaining{
		Global:   max(0, l.limits.GlobalPerDay-l.state.GlobalUsed),
		Edit:     max(0, l.limits.EditPerDay-u.Edit),
		Generate: max(0, l.limits.GeneratePerDay-u.Generate),
	}
}

// TryConsume checks and charges one use of kind in a single step. The
// charge is persisted before returning, so callers invoke the image
// backend only after a granted result.
func (l *Limiter) TryConsume(ctx context.Context, userID string, kind Kind) (Grant, error) {
	if kind != KindEdit && kind != KindGenerate {
		return Grant{}, fmt.Errorf("unknown usage kind %q", kind)
	}

	l.mu.Lock()
	l.rolloverLocked()

	u := l.state.PerUser[userID]
	used, limit := u.Edit, l.limits.EditPerDay
	if kind == KindGenerate {
		used, limit = u.Generate, l.limits.GeneratePerDay
	}

	var grant Grant
	switch {
	case l.state.GlobalUsed >= l.limits.GlobalPerDay:
		grant = Grant{Reason: ReasonGlobal}
	case used >= limit:
		grant = Grant{Reason: ReasonUser}
	default:
		l.state.GlobalUsed++
		if kind == KindGenerate {
			u.Generate++
		} else {
			u.Edit++
		}
		l.state.PerUser[userID] = u
		l.version++
		grant = Grant{Granted: true}
	}
	grant.Remaining = l.remainingLocked(userID)
	snap, vers := l.state.Clone(), l.version
	l.mu.Unlock()

	metrics.UsageConsumedTotal.WithLabelValues(string(kind), strconv.FormatBool(grant.Granted)).Inc()
	if grant.Granted {
		l.persist(ctx, snap, vers)
	}
	return grant, nil
}

// Snapshot returns the remaining quota for userID without charging.
func (l *Limiter) Snapshot(ctx context.Context, userID string) Remaining {
	l.mu.Lock()
	rolled := l.rolloverLocked()
	rem := l.remainingLocked(userID)
	snap, vers := l.state.Clone(), l.version
	l.mu.Unlock()

	if rolled {
		l.persist(ctx, snap, vers)
	}
	return rem
}

// Rollover resets the counters if the UTC day changed and reports whether
// it did.
func (l *Limiter) Rollover(ctx context.Context) bool {
	l.mu.Lock()
	rolled := l.rolloverLocked()
	snap, vers := l.state.Clone(), l.version
	l.mu.Unlock()

	if rolled {
		l.persist(ctx, snap, vers)
	}
	return rolled
}

// persist writes snap unless a newer version was already written.
func (l *Limiter) persist(ctx context.Context, snap model.UsageCounter, vers uint64) {
	if l.store == nil {
		return
	}
	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	if vers <= l.savedVers {
		return
	}
	if err := l.store.SaveUsage(ctx, snap); err != nil {
		l.log.Warn("failed to persist usage counters", zap.String("day", snap.Day), zap.Error(err))
		return
	}
	l.savedVers = vers
}
