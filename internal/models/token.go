package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPayload — утверждения, зашитые в подписанный токен.
// Неизменяем после подписи; refresh-токен несёт сокращённый набор
// (UserID+Email, Roles пустые).
type TokenPayload struct {
	UserID    uuid.UUID
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair — пара токенов, выдаваемая при регистрации/аутентификации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT с сокращённым набором claims,
//     предъявляется только для выпуска нового access-токена;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	// AccessToken — JWT для авторизации запросов.
	AccessToken string
	// RefreshToken — JWT для обновления access-токена.
	RefreshToken string
	// AccessExpiresAt — время истечения действия access-токена (UTC).
	AccessExpiresAt time.Time
}

// AuthResult — результат register/login: пара токенов + проекция пользователя.
type AuthResult struct {
	Tokens TokenPair
	User   UserInfo
}

// AccessToken — результат refresh: только новый access-токен.
// Refresh-токен в этом дизайне не ротируется (см. DESIGN.md).
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}
