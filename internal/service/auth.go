package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/negspace-imaging/auth-service/internal/models"
	"github.com/negspace-imaging/auth-service/internal/pkg/log"
	"github.com/negspace-imaging/auth-service/internal/pkg/redact"
	"github.com/negspace-imaging/auth-service/internal/storage"
	"github.com/negspace-imaging/auth-service/internal/token"
)

// defaultRoles назначаются каждому новому пользователю.
var defaultRoles = []string{"user"}

// Register регистрирует нового пользователя и возвращает пару токенов
// вместе с проекцией пользователя.
func (s *Service) Register(ctx context.Context, email, pw, firstName, lastName string) (*models.AuthResult, error) {
	const op = "service.auth.Register"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(pw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyName)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		PasswordHash: hashed,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        append([]string(nil), defaultRoles...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueTokenPair(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthResult{Tokens: *pair, User: user.Info()}, nil
}

// Login выполняет вход по email+пароль.
// "Пользователь не найден" и "пароль не подошёл" неразличимы для вызывающего;
// оба случая фиксируются в guard как неудачная попытка. ip — только для логов.
func (s *Service) Login(ctx context.Context, email, pw, ip string) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(pw) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if retryAfter, ok := s.guard.CheckAllowed(normEmail); !ok {
		lg.Warn("login_rate_limited",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
			slog.String("ip", ip),
			slog.Duration("retry_after", retryAfter),
		)
		return nil, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: retryAfter})
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.guard.RecordFailure(normEmail)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(pw, user.PasswordHash)
	if err != nil {
		// Битый хэш — внутренняя ошибка, а не "неверный пароль".
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		s.guard.RecordFailure(normEmail)
		lg.Info("login_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
			slog.String("ip", ip),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	s.guard.RecordSuccess(normEmail)

	pair, err := s.issueTokenPair(user, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthResult{Tokens: *pair, User: user.Info()}, nil
}

// Refresh выпускает новый access-токен по валидному refresh-токену.
// Refresh-токен не ротируется (см. DESIGN.md); роли перечитываются из
// хранилища, чтобы подхватить изменения с момента выпуска refresh-токена.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.AccessToken, error) {
	const op = "service.auth.Refresh"

	lg := log.From(ctx)

	payload, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapTokenErr(err))
	}

	revoked, err := s.isRevoked(ctx, payload.UserID, payload.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("user_id", payload.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	user, err := s.storage.UserByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Пользователь исчез между выпуском токена и запросом.
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	access, err := s.tokens.IssueAccess(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AccessToken{
		Token:     access,
		ExpiresAt: now.Add(s.tokens.AccessTTL()),
	}, nil
}

// Logout отзывает все refresh-токены пользователя, выпущенные к этому моменту.
// Идемпотентен: повторный logout не является ошибкой.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.auth.Logout"

	lg := log.From(ctx)

	// iat в JWT имеет секундную точность, поэтому отметка пишется с той же
	// гранулярностью: иначе токен, выпущенный после logout в ту же секунду,
	// навсегда считался бы отозванным.
	now := time.Now().UTC().Truncate(time.Second)
	// Отметка хранится, пока самый свежий отозванный токен не истёк бы сам.
	expiresAt := now.Add(s.tokens.RefreshTTL())

	if err := s.storage.RevokeUserTokens(ctx, userID, now, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.rcache != nil {
		if err := s.rcache.Set(ctx, userID, now, s.tokens.RefreshTTL()); err != nil {
			// Кэш — ускорение, не источник истины: деградируем до БД.
			lg.Warn("revocation_cache_set_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return nil
}

// VerifyToken проверяет access-токен и возвращает его payload.
// Чистая проверка подписи/срока — используется middleware аутентификации.
func (s *Service) VerifyToken(ctx context.Context, accessToken string) (*models.TokenPayload, error) {
	const op = "service.auth.VerifyToken"

	payload, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapTokenErr(err))
	}

	return payload, nil
}

// isRevoked сверяет момент выпуска токена с отметкой отзыва:
// сначала кэш, при промахе — хранилище. Сравнение строгое: токен,
// выпущенный в ту же секунду, что и отметка, считается живым.
func (s *Service) isRevoked(ctx context.Context, userID uuid.UUID, issuedAt time.Time) (bool, error) {
	if s.rcache != nil {
		revokedAt, ok, err := s.rcache.Get(ctx, userID)
		if err != nil {
			log.From(ctx).Warn("revocation_cache_get_failed", slog.String("err", err.Error()))
		} else if ok {
			return issuedAt.Before(revokedAt), nil
		}
	}

	return s.storage.IsTokenRevoked(ctx, userID, issuedAt)
}

// mapTokenErr переводит ошибки пакета token в сентинелы сервиса.
func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrInvalid):
		return ErrInvalidToken
	default:
		return err
	}
}

// issueTokenPair выпускает новую пару access+refresh токенов.
func (s *Service) issueTokenPair(user *models.User, now time.Time) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	access, err := s.tokens.IssueAccess(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.tokens.IssueRefresh(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: now.Add(s.tokens.AccessTTL()),
	}, nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
