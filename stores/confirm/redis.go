package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ceniza-bot/metrics"
	"ceniza-bot/model"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ceniza:confirm:"

// RedisStore shares pending actions between bot processes. Redis key expiry
// enforces the TTL.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *goredis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

func (s *RedisStore) TTL() time.Duration { return s.ttl }

func key(token string) string { return redisKeyPrefix + token }

func (s *RedisStore) Create(ctx context.Context, requesterID string, action model.Action, origin model.Origin) (*model.PendingAction, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	rec := model.PendingAction{
		ID:          newToken(),
		CreatedAt:   s.now(),
		RequesterID: requesterID,
		Action:      action,
		Origin:      origin,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal pending action: %w", err)
	}
	if err := s.client.Set(ctx, key(rec.ID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store pending action: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Peek(ctx context.Context, token string) (*model.PendingAction, error) {
	data, err := s.client.Get(ctx, key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending action: %w", err)
	}
	return s.decode(data)
}

func (s *RedisStore) Consume(ctx context.Context, token string) (*model.PendingAction, error) {
	data, err := s.client.GetDel(ctx, key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume pending action: %w", err)
	}
	return s.decode(data)
}

func (s *RedisStore) ConsumeFor(ctx context.Context, token, requesterID string) (*model.PendingAction, error) {
	rec, err := s.Peek(ctx, token)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.RequesterID != requesterID {
		return nil, nil
	}
	// Only the caller whose DEL removes the key owns the record.
	n, err := s.client.Del(ctx, key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("consume pending action: %w", err)
	}
	if n != 1 {
		return nil, nil
	}
	return rec, nil
}

// Pending counts live records in Redis and publishes the count to the
// pending confirmations gauge. Other processes' records are included.
func (s *RedisStore) Pending(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count pending actions: %w", err)
	}
	metrics.PendingConfirmations.Set(float64(n))
	return n, nil
}

func (s *RedisStore) decode(data []byte) (*model.PendingAction, error) {
	var rec model.PendingAction
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode pending action: %w", err)
	}
	// Key expiry has one second resolution.
	if rec.Expired(s.now(), s.ttl) {
		return nil, nil
	}
	return &rec, nil
}
