package confirm

import (
	"context"
	"sync"
	"time"

	"ceniza-bot/metrics"
	"ceniza-bot/model"
)

// MemoryStore is a process local Store. Expiry is lazy: records are dropped
// when read after their TTL, or by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]*model.PendingAction
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]*model.PendingAction),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) TTL() time.Duration { return s.ttl }

func (s *MemoryStore) Create(_ context.Context, requesterID string, action model.Action, origin model.Origin) (*model.PendingAction, error) {
	rec := &model.PendingAction{
		ID:          newToken(),
		CreatedAt:   s.now(),
		RequesterID: requesterID,
		Action:      action,
		Origin:      origin,
	}

	s.mu.Lock()
	s.pending[rec.ID] = rec
	n := len(s.pending)
	s.mu.Unlock()

	metrics.PendingConfirmations.Set(float64(n))
	out := *rec
	return &out, nil
}

func (s *MemoryStore) Peek(_ context.Context, token string) (*model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(token), nil
}

func (s *MemoryStore) Consume(_ context.Context, token string) (*model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.liveLocked(token)
	delete(s.pending, token)
	metrics.PendingConfirmations.Set(float64(len(s.pending)))
	return rec, nil
}

func (s *MemoryStore) ConsumeFor(_ context.Context, token, requesterID string) (*model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.liveLocked(token)
	if rec == nil || rec.RequesterID != requesterID {
		return nil, nil
	}
	delete(s.pending, token)
	metrics.PendingConfirmations.Set(float64(len(s.pending)))
	return rec, nil
}

// liveLocked returns the record if it has not expired, evicting it
// otherwise. s.mu must be held.
func (s *MemoryStore) liveLocked(token string) *model.PendingAction {
	rec, ok := s.pending[token]
	if !ok {
		return nil
	}
	if rec.Expired(s.now(), s.ttl) {
		delete(s.pending, token)
		return nil
	}
	return rec
}

// Sweep drops every expired record and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, rec := range s.pending {
		if rec.Expired(now, s.ttl) {
			delete(s.pending, token)
			removed++
		}
	}
	metrics.PendingConfirmations.Set(float64(len(s.pending)))
	return removed
}

// Len returns the number of records held, including expired ones not yet
// evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
