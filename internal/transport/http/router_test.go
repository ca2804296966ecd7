package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/negspace-imaging/auth-service/internal/config"
	"github.com/negspace-imaging/auth-service/internal/guard"
	"github.com/negspace-imaging/auth-service/internal/models"
	"github.com/negspace-imaging/auth-service/internal/password"
	"github.com/negspace-imaging/auth-service/internal/service"
	"github.com/negspace-imaging/auth-service/internal/storage"
	"github.com/negspace-imaging/auth-service/internal/token"
	"github.com/negspace-imaging/auth-service/mocks"
)

// memStore — хранилище в памяти поверх gomock: REST-тесты гоняют
// полный конвейер (router -> middleware -> handlers -> service) с
// реалистичным поведением SaveUser/UserByEmail и водяного знака отзыва.
type memStore struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
	revoked map[uuid.UUID]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		byEmail: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
		revoked: make(map[uuid.UUID]time.Time),
	}
}

func bindMemStore(st *mocks.MockStorage, mem *memStore) {
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			mem.mu.Lock()
			defer mem.mu.Unlock()
			if _, ok := mem.byEmail[u.Email]; ok {
				return storage.ErrAlreadyExists
			}
			cp := *u
			mem.byEmail[u.Email] = &cp
			mem.byID[u.ID] = &cp
			return nil
		}).AnyTimes()

	st.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, email string) (*models.User, error) {
			mem.mu.Lock()
			defer mem.mu.Unlock()
			u, ok := mem.byEmail[email]
			if !ok {
				return nil, storage.ErrNotFound
			}
			return u, nil
		}).AnyTimes()

	st.EXPECT().UserByID(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID) (*models.User, error) {
			mem.mu.Lock()
			defer mem.mu.Unlock()
			u, ok := mem.byID[id]
			if !ok {
				return nil, storage.ErrNotFound
			}
			return u, nil
		}).AnyTimes()

	st.EXPECT().RevokeUserTokens(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID, revokedAt, _ time.Time) error {
			mem.mu.Lock()
			defer mem.mu.Unlock()
			if cur, ok := mem.revoked[id]; !ok || revokedAt.After(cur) {
				mem.revoked[id] = revokedAt
			}
			return nil
		}).AnyTimes()

	st.EXPECT().IsTokenRevoked(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID, issuedAt time.Time) (bool, error) {
			mem.mu.Lock()
			defer mem.mu.Unlock()
			at, ok := mem.revoked[id]
			if !ok {
				return false, nil
			}
			return issuedAt.Before(at), nil
		}).AnyTimes()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	st := mocks.NewMockStorage(ctrl)
	bindMemStore(st, newMemStore())

	iss, err := token.New(config.AuthConfig{
		JWTSecret:       "router-test-secret",
		KeyVersion:      "v1",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "auth-service",
		Audience:        []string{"imaging-web"},
	})
	require.NoError(t, err)

	svc := service.New(st, iss, guard.New(3, 15*time.Minute), password.New(bcrypt.MinCost))

	srv := httptest.NewServer(NewRouter(svc, Options{
		Timeout:  5 * time.Second,
		BasePath: "/api/v1",
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type authBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID    string   `json:"id"`
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

type errBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func register(t *testing.T, srv *httptest.Server, email string) authBody {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/v1/auth/register", map[string]string{
		"email":     email,
		"password":  "Abcdef1!",
		"firstName": "Alice",
		"lastName":  "Smith",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[authBody](t, resp)
}

func TestRouter_Register_Login_Flow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	got := register(t, srv, "User@Example.com")
	require.NotEmpty(t, got.AccessToken)
	require.NotEmpty(t, got.RefreshToken)
	require.Equal(t, "user@example.com", got.User.Email)
	require.Equal(t, []string{"user"}, got.User.Roles)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "Abcdef1!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logged := decodeBody[authBody](t, resp)
	require.NotEmpty(t, logged.AccessToken)
	require.Equal(t, got.User.ID, logged.User.ID)
}

func TestRouter_Register_DuplicateEmail_409(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	register(t, srv, "dup@example.com")

	resp := postJSON(t, srv.URL+"/api/v1/auth/register", map[string]string{
		"email":     "dup@example.com",
		"password":  "Abcdef1!",
		"firstName": "Alice",
		"lastName":  "Smith",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody[errBody](t, resp)
	require.Equal(t, "already_exists", body.Error.Code)
}

func TestRouter_Register_Validation_400(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"bad_email", map[string]string{"email": "nope", "password": "Abcdef1!", "firstName": "A", "lastName": "B"}},
		{"weak_password", map[string]string{"email": "u@e.com", "password": "short", "firstName": "A", "lastName": "B"}},
		{"empty_name", map[string]string{"email": "u@e.com", "password": "Abcdef1!", "firstName": "", "lastName": "B"}},
	}

	for _, tc := range cases {
		resp := postJSON(t, srv.URL+"/api/v1/auth/register", tc.payload)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.name)
		body := decodeBody[errBody](t, resp)
		require.Equal(t, "invalid_argument", body.Error.Code, tc.name)
	}
}

func TestRouter_MalformedBody_400(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json",
		bytes.NewReader([]byte(`{"email": broken`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[errBody](t, resp)
	require.Equal(t, "invalid_argument", body.Error.Code)

	// Неизвестное поле — тоже отказ: строгий декодер.
	resp = postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{
		"email": "u@e.com", "password": "x", "unexpected": "field",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRouter_Login_WrongPassword_401_SingleMessage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	register(t, srv, "victim@example.com")

	// Неверный пароль и несуществующий пользователь дают одинаковый ответ.
	for _, payload := range []map[string]string{
		{"email": "victim@example.com", "password": "WRONG1!a"},
		{"email": "ghost@example.com", "password": "Abcdef1!"},
	} {
		resp := postJSON(t, srv.URL+"/api/v1/auth/login", payload)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody[errBody](t, resp)
		require.Equal(t, "invalid_credentials", body.Error.Code)
		require.Equal(t, "invalid email or password", body.Error.Message)
	}
}

func TestRouter_Login_RateLimited_429_WithRetryAfter(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{
			"email": "brute@example.com", "password": "WRONG1!a",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{
		"email": "brute@example.com", "password": "WRONG1!a",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	body := decodeBody[errBody](t, resp)
	require.Equal(t, "rate_limited", body.Error.Code)
}

func TestRouter_Refresh_OK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	got := register(t, srv, "refresh@example.com")

	resp := postJSON(t, srv.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": got.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	}](t, resp)
	require.NotEmpty(t, out.AccessToken)
	require.Greater(t, out.ExpiresIn, int64(0))
	require.LessOrEqual(t, out.ExpiresIn, int64(60))
}

func TestRouter_Refresh_InvalidToken_401(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": "garbage",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[errBody](t, resp)
	require.Equal(t, "unauthenticated", body.Error.Code)
}

func TestRouter_Refresh_AccessTokenRejected(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	got := register(t, srv, "typmix@example.com")

	// Access-токен в роли refresh — отказ.
	resp := postJSON(t, srv.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": got.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func authedRequest(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestRouter_Verify_OK_And_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	got := register(t, srv, "verify@example.com")

	resp := authedRequest(t, http.MethodGet, srv.URL+"/api/v1/auth/verify", got.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[struct {
		Valid  bool     `json:"valid"`
		UserID string   `json:"userId"`
		Email  string   `json:"email"`
		Roles  []string `json:"roles"`
	}](t, resp)
	require.True(t, out.Valid)
	require.Equal(t, got.User.ID, out.UserID)
	require.Equal(t, "verify@example.com", out.Email)

	// Без токена — 401.
	noAuth, err := http.Get(srv.URL + "/api/v1/auth/verify")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, noAuth.StatusCode)
	_ = noAuth.Body.Close()

	// С мусорным токеном — 401.
	resp = authedRequest(t, http.MethodGet, srv.URL+"/api/v1/auth/verify", "garbage")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRouter_Logout_RevokesRefresh(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	got := register(t, srv, "logout@example.com")

	// iat имеет секундную точность, а токены той же секунды, что и отметка
	// отзыва, остаются живыми — переходим в следующую секунду.
	time.Sleep(1100 * time.Millisecond)

	resp := authedRequest(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", got.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Повторный logout идемпотентен.
	resp = authedRequest(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", got.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Старый refresh больше не работает.
	resp = postJSON(t, srv.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": got.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[errBody](t, resp)
	require.Equal(t, "unauthenticated", body.Error.Code)
}

func TestRouter_RequestID_PropagatedIntoErrorBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/auth/refresh",
		bytes.NewReader([]byte(`{"refreshToken":"garbage"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "trace-me-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, "trace-me-123", resp.Header.Get("X-Request-Id"))

	body := decodeBody[errBody](t, resp)
	require.Equal(t, "trace-me-123", body.Error.RequestID)
}
