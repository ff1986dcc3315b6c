package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/repository"
)

const (
	defaultChallengePrefix = "passport:challenge"

	fieldFlow         = "flow"
	fieldState        = "state"
	fieldCode         = "code"
	fieldLogin        = "login"
	fieldEmail        = "email"
	fieldPasswordHash = "password_hash"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
)

// consumeScript deletes the challenge only when the stored code still equals
// the submitted one. Running it server-side makes confirmation single-use even
// under racing requests.
var consumeScript = red.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if code and code == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)

// ChallengeStore persists pending verification challenges in Redis hashes
// with per-key TTL.
type ChallengeStore struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewChallengeStore constructs a challenge store with the provided Redis
// client and key prefix.
func NewChallengeStore(client *red.Client, keyPrefix string) *ChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}

	return &ChallengeStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Put stores the challenge under the key, replacing any previous entry and
// arming the TTL. Last write wins.
func (s *ChallengeStore) Put(ctx context.Context, key string, challenge domain.Challenge, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return errors.New("key is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	now := s.now().UTC()
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = now
	}
	if challenge.ExpiresAt.IsZero() {
		challenge.ExpiresAt = now.Add(ttl)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.HSet(ctx, s.key(key), challengeFields(challenge))
	pipe.Expire(ctx, s.key(key), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store challenge: %w", err)
	}

	return nil
}

// Get retrieves the challenge for the key. Absent and expired entries are
// indistinguishable: both return repository.ErrNotFound.
func (s *ChallengeStore) Get(ctx context.Context, key string) (*domain.Challenge, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("key is required")
	}

	values, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	challenge, err := challengeFromFields(values)
	if err != nil {
		return nil, err
	}

	if challenge.Expired(s.now().UTC()) {
		_ = s.client.Del(ctx, s.key(key)).Err()
		return nil, repository.ErrNotFound
	}

	return challenge, nil
}

// Update rewrites the challenge fields without re-arming the TTL, so a state
// transition keeps the original challenge window alive.
func (s *ChallengeStore) Update(ctx context.Context, key string, challenge domain.Challenge) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}

	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}

	if err := s.client.HSet(ctx, s.key(key), challengeFields(challenge)).Err(); err != nil {
		return fmt.Errorf("redis update challenge: %w", err)
	}

	return nil
}

// Delete removes the challenge entry.
func (s *ChallengeStore) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}

	deleted, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Exists reports whether a challenge is stored under the key.
func (s *ChallengeStore) Exists(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("key is required")
	}

	count, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists challenge: %w", err)
	}

	return count > 0, nil
}

// ConsumeIfCodeMatches atomically deletes the challenge when the stored code
// equals the submitted one.
func (s *ChallengeStore) ConsumeIfCodeMatches(ctx context.Context, key, code string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || code == "" {
		return false, errors.New("key and code are required")
	}

	res, err := consumeScript.Run(ctx, s.client, []string{s.key(key)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume challenge: %w", err)
	}

	return res == 1, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *ChallengeStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *ChallengeStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

func challengeFields(challenge domain.Challenge) map[string]any {
	return map[string]any{
		fieldFlow:         string(challenge.Flow),
		fieldState:        string(challenge.State),
		fieldCode:         challenge.Code,
		fieldLogin:        challenge.Login,
		fieldEmail:        challenge.Email,
		fieldPasswordHash: challenge.PasswordHash,
		fieldCreatedAt:    strconv.FormatInt(challenge.CreatedAt.UTC().Unix(), 10),
		fieldExpiresAt:    strconv.FormatInt(challenge.ExpiresAt.UTC().Unix(), 10),
	}
}

func challengeFromFields(values map[string]string) (*domain.Challenge, error) {
	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &domain.Challenge{
		Flow:         domain.ChallengeFlow(values[fieldFlow]),
		State:        domain.ChallengeState(values[fieldState]),
		Code:         values[fieldCode],
		Login:        values[fieldLogin],
		Email:        values[fieldEmail],
		PasswordHash: values[fieldPasswordHash],
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
	}, nil
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}
