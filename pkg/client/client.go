// Package client — Go SDK auth-сервиса.
//
// Помимо типизированных методов (Register/Login/Logout/Verify) клиент
// прозрачно обслуживает жизненный цикл токенов: подставляет Bearer в
// исходящие запросы, а на 401 запускает единый (single-flight) refresh
// и повторяет запрос с новым токеном. Параллельные 401 не порождают
// шторм обновлений — все ждут один общий вызов.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config — параметры клиента.
type Config struct {
	// BaseURL — корень API, например "https://auth.example.com/api/v1".
	BaseURL string
	// HTTPClient — базовый клиент; nil — http.DefaultClient c таймаутом 30s.
	HTTPClient *http.Client
	// RefreshTimeout — дедлайн общего refresh-вызова (по умолчанию 10s).
	RefreshTimeout time.Duration
	// Logger — для диагностики refresh-цикла; nil — slog.Default().
	Logger *slog.Logger
	// OnSessionExpired вызывается один раз, когда refresh окончательно
	// провалился и токены сброшены. Может быть nil.
	OnSessionExpired func()
}

// Client — типизированный клиент auth-сервиса.
type Client struct {
	baseURL string
	http    *http.Client
	store   *TokenStore
	coord   *coordinator
}

// ErrEmptyBaseURL возвращается New при пустом Config.BaseURL.
var ErrEmptyBaseURL = errors.New("client: empty base URL")

// New собирает клиент: токен-стор, координатор refresh и транспортный
// конвейер поверх переданного http.Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		store:   NewTokenStore(),
	}

	c.coord = newCoordinator(
		c.refreshAccessToken,
		c.store,
		cfg.RefreshTimeout,
		cfg.Logger,
		cfg.OnSessionExpired,
	)

	inner := base.Transport
	if inner == nil {
		inner = http.DefaultTransport
	}

	// Копия, чтобы не мутировать чужой http.Client.
	wrapped := *base
	wrapped.Transport = &Transport{
		base:  inner,
		store: c.store,
		coord: c.coord,
	}
	c.http = &wrapped

	return c, nil
}

// Tokens открывает доступ к хранилищу токенов — например, чтобы
// восстановить сессию из сохранённой пары.
func (c *Client) Tokens() *TokenStore {
	return c.store
}

// AuthResponse — ответ register/login.
type AuthResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         UserInfo `json:"user"`
}

// UserInfo — публичный профиль пользователя.
type UserInfo struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

// VerifyResponse — ответ /auth/verify.
type VerifyResponse struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	Timestamp time.Time `json:"timestamp"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Register создаёт учётную запись и сохраняет выданную пару токенов.
func (c *Client) Register(ctx context.Context, email, password, firstName, lastName string) (*AuthResponse, error) {
	const op = "client.Register"

	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", registerRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.store.SetPair(out.AccessToken, out.RefreshToken)
	return &out, nil
}

// Login аутентифицирует пользователя и сохраняет пару токенов.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	const op = "client.Login"

	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{
		Email:    email,
		Password: password,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.store.SetPair(out.AccessToken, out.RefreshToken)
	return &out, nil
}

// Logout отзывает токены на сервере и сбрасывает локальное состояние.
// Локальная очистка выполняется даже при ошибке сервера: пользователь
// нажал "выйти" — сессия на этой стороне закончилась.
func (c *Client) Logout(ctx context.Context) error {
	const op = "client.Logout"

	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)

	// Сначала чистим токены, затем отменяем refresh в полёте: конкурентный
	// 401 между этими шагами упадёт на пустом refresh-токене, а не запустит
	// второй сетевой refresh параллельно с отменённым.
	c.store.Clear()
	c.coord.Cancel()

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Verify проверяет текущий access-токен на сервере.
func (c *Client) Verify(ctx context.Context) (*VerifyResponse, error) {
	const op = "client.Verify"

	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verify", nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// refreshAccessToken — единственный сетевой вызов refresh; запускается
// только координатором. Идёт через тот же транспорт, но путь /auth/refresh
// исключён из конвейера, поэтому рекурсивный refresh невозможен.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	refresh := c.store.Refresh()
	if refresh == "" {
		return "", errors.New("no refresh token")
	}

	var out refreshResponse
	err := c.do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refresh}, &out)
	if err != nil {
		return "", err
	}

	return out.AccessToken, nil
}

// do выполняет запрос и нормализует ответ: 2xx декодируется в out,
// всё остальное превращается в *APIError. Транспортные ошибки
// (включая ErrSessionExpired из конвейера) возвращаются как есть —
// http.Client оборачивает их в *url.Error, errors.Is видит сквозь него.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalizeError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
