package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/repository"
	"github.com/arklim/social-platform-passport/internal/usecase"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]domain.User{}}
}

func (r *memUserRepo) FindByLogin(_ context.Context, login string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[login]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Login]; ok {
		return repository.ErrConflict
	}
	r.users[user.Login] = user
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, email, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for login, user := range r.users {
		if user.Email == email {
			user.PasswordHash = passwordHash
			user.PasswordChangedAt = changedAt
			r.users[login] = user
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memUserRepo) SetVerified(_ context.Context, identifier string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for login, user := range r.users {
		if login == identifier || user.Email == identifier {
			user.IsVerified = verified
			r.users[login] = user
			return nil
		}
	}
	return repository.ErrNotFound
}

type memChallenges struct {
	mu   sync.Mutex
	data map[string]domain.Challenge
}

func newMemChallenges() *memChallenges {
	return &memChallenges{data: map[string]domain.Challenge{}}
}

func (s *memChallenges) Put(_ context.Context, key string, challenge domain.Challenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = challenge
	return nil
}

func (s *memChallenges) Get(_ context.Context, key string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.data[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := challenge
	return &copy, nil
}

func (s *memChallenges) Update(_ context.Context, key string, challenge domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return repository.ErrNotFound
	}
	s.data[key] = challenge
	return nil
}

func (s *memChallenges) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memChallenges) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *memChallenges) ConsumeIfCodeMatches(_ context.Context, key, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.data[key]
	if !ok || challenge.Code != code {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

type captureMailer struct {
	mu   sync.Mutex
	vars map[string]string
}

func (m *captureMailer) Send(_ context.Context, _, _ string, vars map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vars = vars
	return nil
}

func (m *captureMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vars["code"]
}

func newRegistrationRouter() (*gin.Engine, *captureMailer, *memUserRepo) {
	gin.SetMode(gin.TestMode)

	users := newMemUserRepo()
	mailer := &captureMailer{}
	svc := usecase.NewRegistrationService(users, newMemChallenges(), mailer, nil, nil)

	r := gin.New()
	api := r.Group("/api/v1")
	NewRegistrationHandler(svc).RegisterRoutes(api)
	return r, mailer, users
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpointHappyPath(t *testing.T) {
	r, _, _ := newRegistrationRouter()

	w := postJSON(t, r, "/api/v1/register", RegisterRequest{
		Login:          "Alice99x",
		Email:          "alice@example.com",
		Password:       "Sup3rSecret",
		PasswordRepeat: "Sup3rSecret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ChallengeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChallengeKey == "" {
		t.Fatal("expected a challenge key")
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Fatal("expected a future expiry")
	}
}

func TestRegisterEndpointRejectsMalformedPayload(t *testing.T) {
	r, _, _ := newRegistrationRouter()

	w := postJSON(t, r, "/api/v1/register", map[string]string{"login": "Alice99x"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing fields, got %d", w.Code)
	}
}

func TestRegisterEndpointRejectsPasswordMismatch(t *testing.T) {
	r, _, _ := newRegistrationRouter()

	w := postJSON(t, r, "/api/v1/register", RegisterRequest{
		Login:          "Alice99x",
		Email:          "alice@example.com",
		Password:       "Sup3rSecret",
		PasswordRepeat: "Different9x",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRegisterConfirmEndpoint(t *testing.T) {
	r, mailer, users := newRegistrationRouter()

	w := postJSON(t, r, "/api/v1/register", RegisterRequest{
		Login:          "Alice99x",
		Email:          "alice@example.com",
		Password:       "Sup3rSecret",
		PasswordRepeat: "Sup3rSecret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register failed: %d", w.Code)
	}
	var start ChallengeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &start); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// Wrong code is a business failure, not a transport one.
	w = postJSON(t, r, "/api/v1/register/confirm", ConfirmRequest{
		ChallengeKey: start.ChallengeKey,
		Code:         "WRONG0",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a wrong code, got %d", w.Code)
	}

	w = postJSON(t, r, "/api/v1/register/confirm", ConfirmRequest{
		ChallengeKey: start.ChallengeKey,
		Code:         mailer.lastCode(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RegisterConfirmResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.Login != "Alice99x" {
		t.Fatalf("unexpected login %q", resp.User.Login)
	}

	if _, err := users.FindByLogin(context.Background(), "Alice99x"); err != nil {
		t.Fatalf("account not persisted: %v", err)
	}
}
