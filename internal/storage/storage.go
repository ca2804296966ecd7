package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/negspace-imaging/auth-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/отметка отзыва).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStore выполняет операции над пользователями.
type UserStore interface {
	// SaveUser создает нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email (нормализованному).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RevocationStore хранит пометки отзыва refresh-токенов.
//
// Модель — "водяной знак" на пользователя: logout записывает момент отзыва,
// и любой refresh-токен, выпущенный не позже этого момента, считается
// отозванным. Записи живут, пока самый свежий отозванный токен не истёк бы
// естественным образом, после чего их убирает джанитор.
type RevocationStore interface {
	// RevokeUserTokens ставит/продвигает отметку отзыва пользователя.
	// Идемпотентна: повторный вызов не является ошибкой.
	RevokeUserTokens(ctx context.Context, userID uuid.UUID, revokedAt, expiresAt time.Time) error
	// IsTokenRevoked отвечает, отозван ли токен пользователя,
	// выпущенный в момент issuedAt.
	IsTokenRevoked(ctx context.Context, userID uuid.UUID, issuedAt time.Time) (bool, error)
	// DeleteExpired удаляет отметки, чей срок хранения истёк.
	DeleteExpired(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStore
	RevocationStore
	Close()
}
