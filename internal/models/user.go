package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя в системе.
// PasswordHash никогда не отдаётся наружу — см. проекцию UserInfo.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Info возвращает read-проекцию пользователя без хэша пароля.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     append([]string(nil), u.Roles...),
		CreatedAt: u.CreatedAt,
	}
}

// UserInfo — безопасная проекция пользователя для ответов API.
type UserInfo struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}
