// password инкапсулирует хэширование паролей.
//
// Используется bcrypt: медленный адаптивный алгоритм с встроенной солью и
// устойчивым к таймингу сравнением. Ошибки bcrypt (битый хэш и т.п.)
// возвращаются как есть и трактуются вызывающим кодом как внутренние —
// они никогда не превращаются в "неверный пароль", чтобы не давать оракул.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher хэширует и проверяет пароли с настраиваемой стоимостью.
type Hasher struct {
	cost int
}

// New создаёт Hasher; cost <= 0 означает bcrypt.DefaultCost
// (подобран так, чтобы хэширование занимало десятки миллисекунд).
func New(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	return &Hasher{cost: cost}
}

// Hash возвращает bcrypt-хэш пароля.
func (h *Hasher) Hash(plain string) (string, error) {
	const op = "password.Hash"

	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// Verify сравнивает пароль с хэшем.
// Несовпадение — (false, nil); любая другая ошибка bcrypt — (false, err).
func (h *Hasher) Verify(plain, hash string) (bool, error) {
	const op = "password.Verify"

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, fmt.Errorf("%s: %w", op, err)
}
