package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/repository"
)

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User // keyed by login

	createErr         error
	createCalls       int
	findErr           error
	updatePasswordErr error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]domain.User{}}
}

func (m *mockUserRepository) add(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Login] = user
}

func (m *mockUserRepository) FindByLogin(_ context.Context, login string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	user, ok := m.users[login]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := user
	return &copy, nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, user := range m.users {
		if user.Email == email {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Login]; exists {
		return repository.ErrConflict
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	m.users[user.Login] = user
	return nil
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, email, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	for login, user := range m.users {
		if user.Email == email {
			user.PasswordHash = passwordHash
			user.PasswordChangedAt = changedAt
			m.users[login] = user
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockUserRepository) SetVerified(_ context.Context, identifier string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for login, user := range m.users {
		if login == identifier || user.Email == identifier {
			user.IsVerified = verified
			m.users[login] = user
			return nil
		}
	}
	return repository.ErrNotFound
}

type storedChallenge struct {
	challenge domain.Challenge
	expiresAt time.Time
}

// memChallengeStore is an in-memory challenge store with an injectable clock.
type memChallengeStore struct {
	mu   sync.Mutex
	data map[string]storedChallenge
	now  func() time.Time

	putErr error
}

func newMemChallengeStore() *memChallengeStore {
	return &memChallengeStore{data: map[string]storedChallenge{}, now: time.Now}
}

func (s *memChallengeStore) Put(_ context.Context, key string, challenge domain.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.data[key] = storedChallenge{challenge: challenge, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memChallengeStore) Get(_ context.Context, key string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data[key]
	if !ok || s.now().After(stored.expiresAt) {
		delete(s.data, key)
		return nil, repository.ErrNotFound
	}
	copy := stored.challenge
	return &copy, nil
}

func (s *memChallengeStore) Update(_ context.Context, key string, challenge domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data[key]
	if !ok || s.now().After(stored.expiresAt) {
		delete(s.data, key)
		return repository.ErrNotFound
	}
	stored.challenge = challenge
	s.data[key] = stored
	return nil
}

func (s *memChallengeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memChallengeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data[key]
	if !ok || s.now().After(stored.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (s *memChallengeStore) ConsumeIfCodeMatches(_ context.Context, key, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data[key]
	if !ok || s.now().After(stored.expiresAt) {
		delete(s.data, key)
		return false, nil
	}
	if stored.challenge.Code != code {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

func (s *memChallengeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

type sentMail struct {
	To       string
	Template string
	Vars     map[string]string
}

type mockMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (m *mockMailer) Send(_ context.Context, to, template string, vars map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{To: to, Template: template, Vars: vars})
	return nil
}

func (m *mockMailer) lastSent() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type mockPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	authorized []domain.UserAuthorizedEvent
	changed    []domain.PasswordChangedEvent
}

func (m *mockPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, event)
	return nil
}

func (m *mockPublisher) PublishUserAuthorized(_ context.Context, event domain.UserAuthorizedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorized = append(m.authorized, event)
	return nil
}

func (m *mockPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, event)
	return nil
}
