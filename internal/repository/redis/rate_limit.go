package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-passport/internal/core/port"
)

// SlidingWindowConfig defines configuration for the sliding window limiter.
type SlidingWindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// RateLimitStore persists flow-start attempts in Redis sorted sets scored by
// nanosecond timestamps.
type RateLimitStore struct {
	client *red.Client
	cfg    SlidingWindowConfig
}

// NewRateLimitStore constructs a store using the provided Redis client and config.
func NewRateLimitStore(client *red.Client, cfg SlidingWindowConfig) *RateLimitStore {
	return &RateLimitStore{client: client, cfg: cfg}
}

// RecordAttempt stores the provided timestamp and refreshes the key TTL.
func (s *RateLimitStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.key(identifier)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, red.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()})
	if s.cfg.TTL > 0 {
		pipe.Expire(ctx, key, s.cfg.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record attempt: %w", err)
	}

	return nil
}

// CountAttempts returns how many attempts occurred within the window ending at
// the reference time.
func (s *RateLimitStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	min := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	max := strconv.FormatInt(reference.UnixNano(), 10)

	count, err := s.client.ZCount(ctx, s.key(identifier), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis count attempts: %w", err)
	}

	return int(count), nil
}

// TrimWindow drops attempts older than the window relative to the reference time.
func (s *RateLimitStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	threshold := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.key(identifier), "-inf", threshold).Err(); err != nil {
		return fmt.Errorf("redis trim window: %w", err)
	}

	return nil
}

// OldestAttempt returns the oldest attempt remaining inside the active window.
func (s *RateLimitStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	values, err := s.client.ZRangeByScore(ctx, s.key(identifier), &red.ZRangeBy{
		Min:   strconv.FormatInt(reference.Add(-window).UnixNano(), 10),
		Max:   strconv.FormatInt(reference.UnixNano(), 10),
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis oldest attempt: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	ts, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}

	return time.Unix(0, ts).UTC(), true, nil
}

func (s *RateLimitStore) key(identifier string) string {
	if s.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
