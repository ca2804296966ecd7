// service содержит бизнес-логику auth-сервиса:
// регистрацию/аутентификацию пользователей, выпуск/проверку токенов,
// защиту от перебора паролей и отзыв сессий.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//     Состояние счётчиков попыток живёт в инжектированном guard.Guard.
//   - Ошибки возвращаются и далее маппятся
//     транспортом на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/negspace-imaging/auth-service/internal/cache"
	"github.com/negspace-imaging/auth-service/internal/guard"
	"github.com/negspace-imaging/auth-service/internal/password"
	"github.com/negspace-imaging/auth-service/internal/storage"
	"github.com/negspace-imaging/auth-service/internal/token"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Случаи намеренно не различаются, чтобы не раскрывать, какие email
	// зарегистрированы. Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи.
	// Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк.
	// Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен отозван (logout) и недействителен
	// независимо от срока. Транспорт: HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят другим пользователем.
	// Транспорт: HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrRateLimited — исчерпан лимит неудачных попыток входа.
	// Транспорт: HTTP 429 c заголовком Retry-After.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrInvalidEmail — e-mail имеет некорректный формат.
	// Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности.
	// Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой.
	// Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrEmptyName — имя или фамилия пустые после trim.
	// Транспорт: HTTP 400.
	ErrEmptyName = errors.New("first and last name are required")
)

// RateLimitedError уточняет ErrRateLimited временем до конца окна.
// errors.Is(err, ErrRateLimited) остаётся истинным.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.Storage
	tokens  *token.Issuer
	guard   *guard.Guard
	hasher  *password.Hasher
	rcache  cache.RevocationCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, tokens *token.Issuer, guard *guard.Guard, hasher *password.Hasher) *Service {
	return &Service{
		storage: storage,
		tokens:  tokens,
		guard:   guard,
		hasher:  hasher,
	}
}

// SetRevocationCache устанавливает кэш отметок отзыва (опционально).
func (s *Service) SetRevocationCache(c cache.RevocationCache) {
	s.rcache = c
}
