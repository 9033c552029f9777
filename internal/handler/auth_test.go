package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readoai/readoai-go/internal/crypto"
	"github.com/readoai/readoai-go/internal/metrics"
	"github.com/readoai/readoai-go/internal/model"
	"github.com/readoai/readoai-go/internal/repository"
	"github.com/readoai/readoai-go/internal/service"
)

type brokenStore struct {
	repository.UserStore
}

func (brokenStore) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection refused")
}

type testServer struct {
	*httptest.Server
	store   *repository.MemoryUserStore
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, store repository.UserStore) *testServer {
	t.Helper()

	mem := repository.NewMemoryUserStore()
	if store == nil {
		store = mem
	}

	hasher := crypto.NewPasswordHasher(crypto.HashParams{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	tokens, err := crypto.NewTokenIssuer("handler-test-secret", time.Hour)
	require.NoError(t, err)

	m := metrics.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := NewRouter(ctx, RouterConfig{
		Auth:    service.NewAuthService(store, hasher, tokens),
		Metrics: m,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: mem, metrics: m}
}

// do sends a request and returns the status and the raw body.
func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func assertNoSecrets(t *testing.T, raw []byte) {
	t.Helper()
	body := strings.ToLower(string(raw))
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "$argon2id$")
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	register := model.RegisterRequest{Name: "Ana", Email: "ana@x.io", Password: "pw1"}
	status, raw := srv.do(t, http.MethodPost, "/api/auth/register", "", register)
	require.Equal(t, http.StatusCreated, status, string(raw))
	assert.Equal(t, "User registered successfully", decode[model.MessageResponse](t, raw).Message)
	assertNoSecrets(t, raw)

	status, raw = srv.do(t, http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already exists", decode[model.MessageResponse](t, raw).Message)

	status, raw = srv.do(t, http.MethodPost, "/api/auth/login", "",
		model.LoginRequest{Email: "ana@x.io", Password: "pw1"})
	require.Equal(t, http.StatusOK, status, string(raw))
	assertNoSecrets(t, raw)
	login := decode[model.LoginResponse](t, raw)
	assert.Equal(t, "Login successful", login.Message)
	assert.NotEmpty(t, login.Token)
	assert.NotEmpty(t, login.User.ID)
	assert.Equal(t, "Ana", login.User.Name)
	assert.Equal(t, "ana@x.io", login.User.Email)

	status, raw = srv.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assertNoSecrets(t, raw)
	assert.Equal(t, login.User, decode[model.MeResponse](t, raw).User)

	status, raw = srv.do(t, http.MethodPost, "/api/auth/login", "",
		model.LoginRequest{Email: "ana@x.io", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid credentials", decode[model.MessageResponse](t, raw).Message)
}

func TestLoginDoesNotRevealAccounts(t *testing.T) {
	srv := newTestServer(t, nil)

	status, _ := srv.do(t, http.MethodPost, "/api/auth/register", "",
		model.RegisterRequest{Name: "Ana", Email: "ana@x.io", Password: "pw1"})
	require.Equal(t, http.StatusCreated, status)

	wrongPassword, wrongRaw := srv.do(t, http.MethodPost, "/api/auth/login", "",
		model.LoginRequest{Email: "ana@x.io", Password: "nope"})
	unknownEmail, unknownRaw := srv.do(t, http.MethodPost, "/api/auth/login", "",
		model.LoginRequest{Email: "nobody@x.io", Password: "nope"})

	assert.Equal(t, wrongPassword, unknownEmail)
	assert.JSONEq(t, string(wrongRaw), string(unknownRaw))
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name    string
		req     model.RegisterRequest
		message string
	}{
		{"missing name", model.RegisterRequest{Email: "a@x.io", Password: "pw"}, "Name is required"},
		{"missing email", model.RegisterRequest{Name: "A", Password: "pw"}, "Email is required"},
		{"missing password", model.RegisterRequest{Name: "A", Email: "a@x.io"}, "Password is required"},
		{"invalid email", model.RegisterRequest{Name: "A", Email: "not-an-email", Password: "pw"}, "Invalid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := srv.do(t, http.MethodPost, "/api/auth/register", "", tt.req)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.message, decode[model.MessageResponse](t, raw).Message)
		})
	}
}

func TestMalformedBodies(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/auth/register", "/api/auth/login"} {
		status, raw := srv.do(t, http.MethodPost, path, "", "{not json")
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, "Invalid request body", decode[model.MessageResponse](t, raw).Message)
	}

	huge := `{"name":"` + strings.Repeat("a", maxBodyBytes+1) + `"}`
	rec := httptest.NewRecorder()
	srv.Config.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(huge)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMeRejectsBadTokens(t *testing.T) {
	srv := newTestServer(t, nil)

	srv.do(t, http.MethodPost, "/api/auth/register", "",
		model.RegisterRequest{Name: "Ana", Email: "ana@x.io", Password: "pw1"})
	_, raw := srv.do(t, http.MethodPost, "/api/auth/login", "",
		model.LoginRequest{Email: "ana@x.io", Password: "pw1"})
	login := decode[model.LoginResponse](t, raw)

	last := login.Token[len(login.Token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := login.Token[:len(login.Token)-2] + string(flipped) + string(flipped)

	for name, token := range map[string]string{
		"missing":  "",
		"garbage":  "not-a-token",
		"tampered": tampered,
	} {
		t.Run(name, func(t *testing.T) {
			status, raw := srv.do(t, http.MethodGet, "/api/auth/me", token, nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "Not authorized", decode[model.MessageResponse](t, raw).Message)
		})
	}

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, srv.store.Delete(context.Background(), login.User.ID))
		status, _ := srv.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestServerErrorHidesCause(t *testing.T) {
	srv := newTestServer(t, brokenStore{})

	status, raw := srv.do(t, http.MethodPost, "/api/auth/login", "",
		model.LoginRequest{Email: "ana@x.io", Password: "pw1"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server error", decode[model.MessageResponse](t, raw).Message)
	assert.NotContains(t, string(raw), "connection refused")

	status, _ = srv.do(t, http.MethodPost, "/api/auth/register", "",
		model.RegisterRequest{Name: "Ana", Email: "ana@x.io", Password: "pw1"})
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestServiceRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	status, raw := srv.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "API is running...", string(raw))

	status, raw = srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(raw))

	srv.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Email: "x@x.io", Password: "pw"})

	status, raw = srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `readoai_auth_requests_total{operation="login",outcome="invalid_credentials"} 1`)
	assert.Contains(t, string(raw), `route="/api/auth/login"`)
}

func TestRateLimitedRoutes(t *testing.T) {
	hasher := crypto.NewPasswordHasher(crypto.HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	tokens, err := crypto.NewTokenIssuer("handler-test-secret", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := NewRouter(ctx, RouterConfig{
		Auth:           service.NewAuthService(repository.NewMemoryUserStore(), hasher, tokens),
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	})

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@x.io","password":"pw"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	// /me is outside the limited group.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
