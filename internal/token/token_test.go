package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/negspace-imaging/auth-service/internal/config"
	"github.com/negspace-imaging/auth-service/internal/models"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		KeyVersion:      "v1",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "auth-service",
		Audience:        []string{"imaging-web"},
	}
}

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := New(testCfg())
	require.NoError(t, err)
	return iss
}

func testUser() *models.User {
	return &models.User{
		ID:    uuid.New(),
		Email: "user@example.com",
		Roles: []string{"user", "admin"},
	}
}

func TestNew_ConfigInvariants(t *testing.T) {
	t.Parallel()

	cfg := testCfg()
	cfg.JWTSecret = ""
	_, err := New(cfg)
	require.Error(t, err)

	cfg = testCfg()
	cfg.AccessTokenTTL = 0
	_, err = New(cfg)
	require.Error(t, err)

	cfg = testCfg()
	cfg.AccessTokenTTL = cfg.RefreshTokenTTL
	_, err = New(cfg)
	require.Error(t, err)
}

func TestIssueAccess_VerifyAccess_OK(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)
	user := testUser()
	now := time.Now().UTC()

	signed, err := iss.IssueAccess(user, now)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	payload, err := iss.VerifyAccess(signed)
	require.NoError(t, err)
	require.Equal(t, user.ID, payload.UserID)
	require.Equal(t, user.Email, payload.Email)
	require.ElementsMatch(t, user.Roles, payload.Roles)
	require.WithinDuration(t, now, payload.IssuedAt, time.Second)
	require.WithinDuration(t, now.Add(30*time.Second), payload.ExpiresAt, time.Second)
}

func TestIssueRefresh_VerifyRefresh_OK(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)
	user := testUser()
	now := time.Now().UTC()

	signed, err := iss.IssueRefresh(user, now)
	require.NoError(t, err)

	payload, err := iss.VerifyRefresh(signed)
	require.NoError(t, err)
	require.Equal(t, user.ID, payload.UserID)
	require.Equal(t, user.Email, payload.Email)
	require.Empty(t, payload.Roles)
	require.WithinDuration(t, now.Add(24*time.Hour), payload.ExpiresAt, time.Second)
}

func TestVerify_TypeMismatch_Rejected(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)
	user := testUser()
	now := time.Now().UTC()

	access, err := iss.IssueAccess(user, now)
	require.NoError(t, err)
	refresh, err := iss.IssueRefresh(user, now)
	require.NoError(t, err)

	// refresh в роли access и наоборот — отказ, а не истечение.
	_, err = iss.VerifyAccess(refresh)
	require.ErrorIs(t, err, ErrInvalid)

	_, err = iss.VerifyRefresh(access)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyAccess_Expired(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)

	// Выпуск в прошлом: exp позади даже с учётом leeway 5s.
	signed, err := iss.IssueAccess(testUser(), time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	_, err = iss.VerifyAccess(signed)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyAccess_Garbage_And_WrongSecret(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)

	_, err := iss.VerifyAccess("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalid)

	other := testCfg()
	other.JWTSecret = "different-secret"
	otherIss, err := New(other)
	require.NoError(t, err)

	signed, err := otherIss.IssueAccess(testUser(), time.Now().UTC())
	require.NoError(t, err)

	_, err = iss.VerifyAccess(signed)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyAccess_ForeignKeyVersion_Rejected(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)

	v2 := testCfg()
	v2.KeyVersion = "v2"
	v2Iss, err := New(v2)
	require.NoError(t, err)

	signed, err := v2Iss.IssueAccess(testUser(), time.Now().UTC())
	require.NoError(t, err)

	_, err = iss.VerifyAccess(signed)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyAccess_MissingKid_Accepted(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)
	cfg := testCfg()
	user := testUser()
	now := time.Now().UTC()

	// Токен без kid (выпущен до введения версионирования ключа).
	claims := accessClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Roles:  user.Roles,
		Type:   typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings(cfg.Audience),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	payload, err := iss.VerifyAccess(signed)
	require.NoError(t, err)
	require.Equal(t, user.ID, payload.UserID)
}

func TestVerifyAccess_WrongIssuerOrAudience_Rejected(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)

	wrongIss := testCfg()
	wrongIss.Issuer = "someone-else"
	otherIss, err := New(wrongIss)
	require.NoError(t, err)

	signed, err := otherIss.IssueAccess(testUser(), time.Now().UTC())
	require.NoError(t, err)
	_, err = iss.VerifyAccess(signed)
	require.ErrorIs(t, err, ErrInvalid)

	wrongAud := testCfg()
	wrongAud.Audience = []string{"other-app"}
	audIss, err := New(wrongAud)
	require.NoError(t, err)

	signed, err = audIss.IssueAccess(testUser(), time.Now().UTC())
	require.NoError(t, err)
	_, err = iss.VerifyAccess(signed)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyAccess_NonUUIDSubject_Rejected(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t)
	cfg := testCfg()
	now := time.Now().UTC()

	claims := accessClaims{
		UserID: "not-a-uuid",
		Email:  "user@example.com",
		Type:   typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings(cfg.Audience),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = cfg.KeyVersion
	signed, err := tok.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	_, err = iss.VerifyAccess(signed)
	require.ErrorIs(t, err, ErrInvalid)
}
