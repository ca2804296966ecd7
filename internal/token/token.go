// token реализует выпуск и проверку JWT (access и refresh).
//
// Контракт проверки различает две ошибки:
//   - ErrExpired — срок действия истёк ("обновись по refresh");
//   - ErrInvalid — подпись/формат/claims некорректны ("отклонить насовсем").
//
// Ключ и алгоритм (HS256) — процессная конфигурация, загружается один раз
// на старте. В заголовок токена пишется версия ключа (kid); проверка
// принимает только текущую версию — ротация ключей спроектирована,
// но не реализована.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/negspace-imaging/auth-service/internal/config"
	"github.com/negspace-imaging/auth-service/internal/models"
)

var (
	// ErrExpired — токен корректен, но срок действия истёк.
	ErrExpired = errors.New("token expired")

	// ErrInvalid — токен некорректен: подпись, формат, тип или claims.
	ErrInvalid = errors.New("token invalid")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// accessClaims — полный набор утверждений access-токена.
type accessClaims struct {
	UserID string   `json:"uid"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	Type   string   `json:"typ"`
	jwt.RegisteredClaims
}

// refreshClaims — сокращённый набор: только uid+email.
type refreshClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer выпускает и проверяет токены с процессной конфигурацией ключа.
type Issuer struct {
	cfg config.AuthConfig
}

// New создаёт Issuer и проверяет инварианты конфигурации:
// секрет непустой, access TTL строго короче refresh TTL.
func New(cfg config.AuthConfig) (*Issuer, error) {
	const op = "token.New"

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%s: empty jwt secret", op)
	}

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("%s: non-positive token ttl", op)
	}

	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("%s: access ttl %s must be shorter than refresh ttl %s",
			op, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}

	if cfg.KeyVersion == "" {
		cfg.KeyVersion = "v1"
	}

	return &Issuer{cfg: cfg}, nil
}

// AccessTTL возвращает срок жизни access-токена.
func (i *Issuer) AccessTTL() time.Duration { return i.cfg.AccessTokenTTL }

// RefreshTTL возвращает срок жизни refresh-токена.
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTokenTTL }

// IssueAccess подписывает access-токен с полным набором claims.
func (i *Issuer) IssueAccess(user *models.User, now time.Time) (string, error) {
	const op = "token.IssueAccess"

	claims := accessClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Roles:  user.Roles,
		Type:   typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings(i.cfg.Audience),
		},
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// IssueRefresh подписывает refresh-токен с сокращённым набором claims.
func (i *Issuer) IssueRefresh(user *models.User, now time.Time) (string, error) {
	const op = "token.IssueRefresh"

	claims := refreshClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Type:   typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings(i.cfg.Audience),
		},
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// VerifyAccess валидирует access-токен и возвращает его payload.
func (i *Issuer) VerifyAccess(tokenStr string) (*models.TokenPayload, error) {
	const op = "token.VerifyAccess"

	var claims accessClaims
	if err := i.parse(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.Type != typeAccess {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	payload, err := payloadFrom(claims.UserID, claims.Email, claims.Roles, claims.RegisteredClaims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return payload, nil
}

// VerifyRefresh валидирует refresh-токен и возвращает его payload (Roles пустые).
func (i *Issuer) VerifyRefresh(tokenStr string) (*models.TokenPayload, error) {
	const op = "token.VerifyRefresh"

	var claims refreshClaims
	if err := i.parse(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.Type != typeRefresh {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	payload, err := payloadFrom(claims.UserID, claims.Email, nil, claims.RegisteredClaims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return payload, nil
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = i.cfg.KeyVersion

	return t.SignedString([]byte(i.cfg.JWTSecret))
}

func (i *Issuer) parse(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalid
			}

			// Версия ключа: принимаем токены без kid (выпущенные до его
			// введения) и с текущей версией; чужая версия — отказ.
			if kid, ok := t.Header["kid"].(string); ok && kid != i.cfg.KeyVersion {
				return nil, ErrInvalid
			}

			return []byte(i.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}

		return ErrInvalid
	}

	if !token.Valid {
		return ErrInvalid
	}

	return nil
}

func payloadFrom(uid, email string, roles []string, rc jwt.RegisteredClaims) (*models.TokenPayload, error) {
	id, err := uuid.Parse(uid)
	if err != nil {
		return nil, ErrInvalid
	}

	if rc.IssuedAt == nil || rc.ExpiresAt == nil {
		return nil, ErrInvalid
	}

	return &models.TokenPayload{
		UserID:    id,
		Email:     email,
		Roles:     roles,
		IssuedAt:  rc.IssuedAt.Time,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
