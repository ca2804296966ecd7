package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RevokeUserTokens ставит/продвигает отметку отзыва для пользователя.
// Upsert: повторный logout лишь продвигает revoked_at/expires_at вперёд,
// поэтому операция идемпотентна.
func (s *Storage) RevokeUserTokens(ctx context.Context, userID uuid.UUID, revokedAt, expiresAt time.Time) error {
	const op = "storage.postgres.RevokeUserTokens"

	query := `
		INSERT INTO token_revocations(user_id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET revoked_at = GREATEST(token_revocations.revoked_at, EXCLUDED.revoked_at),
		    expires_at = GREATEST(token_revocations.expires_at, EXCLUDED.expires_at)
	`

	if _, err := s.db.Exec(ctx, query, userID, revokedAt, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IsTokenRevoked отвечает, отозван ли токен пользователя, выпущенный в issuedAt.
// Токен отозван, если выпущен строго раньше живой отметки: iat имеет секундную
// точность, и токен той же секунды, что и отметка, остаётся живым.
func (s *Storage) IsTokenRevoked(ctx context.Context, userID uuid.UUID, issuedAt time.Time) (bool, error) {
	const op = "storage.postgres.IsTokenRevoked"

	query := `
		SELECT revoked_at
		FROM token_revocations
		WHERE user_id = $1 AND expires_at > now()
	`

	var revokedAt time.Time
	err := s.db.QueryRow(ctx, query, userID).Scan(&revokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return issuedAt.Before(revokedAt), nil
}

// DeleteExpired удаляет отметки отзыва, пережившие срок жизни refresh-токена.
func (s *Storage) DeleteExpired(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpired"

	query := `DELETE FROM token_revocations WHERE expires_at <= $1`

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
