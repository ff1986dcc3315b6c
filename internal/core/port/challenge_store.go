package port

import (
	"context"
	"time"

	"github.com/arklim/social-platform-passport/internal/core/domain"
)

// ChallengeStore keeps pending verification challenges under server-issued
// opaque keys with per-key expiry.
//
// Get returns repository.ErrNotFound for absent or expired keys, so an expired
// challenge is indistinguishable from one that never existed. Put overwrites
// any previous challenge under the same key (last write wins). Update rewrites
// the record without touching the remaining TTL.
type ChallengeStore interface {
	Put(ctx context.Context, key string, challenge domain.Challenge, ttl time.Duration) error
	Get(ctx context.Context, key string) (*domain.Challenge, error)
	Update(ctx context.Context, key string, challenge domain.Challenge) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// ConsumeIfCodeMatches atomically deletes the challenge when its stored
	// code equals the supplied one, returning whether the delete happened.
	// This is the single-use guarantee for code confirmation: two racing
	// confirms cannot both succeed.
	ConsumeIfCodeMatches(ctx context.Context, key, code string) (bool, error)
}
