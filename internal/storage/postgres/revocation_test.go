package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Интеграционные тесты отметок отзыва (модель "водяного знака"):
// отозвано всё, что выпущено строго раньше revoked_at живой отметки.

func TestIntegration_RevokeAndCheck_Watermark(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := testUser("revoke@example.com")
	require.NoError(t, st.SaveUser(context.Background(), u))

	now := time.Now().UTC()
	require.NoError(t, st.RevokeUserTokens(context.Background(), u.ID, now, now.Add(24*time.Hour)))

	// Выпущен до отметки — отозван.
	revoked, err := st.IsTokenRevoked(context.Background(), u.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, revoked)

	// Выпущен после отметки — жив.
	revoked, err = st.IsTokenRevoked(context.Background(), u.ID, now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, revoked)
}

// Граница отметки: iat в JWT имеет секундную точность, поэтому токен,
// выпущенный в ту же секунду, что и отметка, считается живым — отозвано
// только выпущенное строго раньше.
func TestIntegration_IsTokenRevoked_SameSecondBoundary(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := testUser("boundary@example.com")
	require.NoError(t, st.SaveUser(context.Background(), u))

	mark := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.RevokeUserTokens(context.Background(), u.ID, mark, mark.Add(24*time.Hour)))

	// Та же секунда, что и отметка — жив.
	revoked, err := st.IsTokenRevoked(context.Background(), u.ID, mark)
	require.NoError(t, err)
	require.False(t, revoked)

	// Секундой раньше — отозван.
	revoked, err = st.IsTokenRevoked(context.Background(), u.ID, mark.Add(-time.Second))
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestIntegration_IsTokenRevoked_NoMark_False(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := testUser("clean@example.com")
	require.NoError(t, st.SaveUser(context.Background(), u))

	revoked, err := st.IsTokenRevoked(context.Background(), u.ID, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestIntegration_Revoke_Idempotent_AdvancesWatermark(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := testUser("repeat@example.com")
	require.NoError(t, st.SaveUser(context.Background(), u))

	first := time.Now().UTC().Add(-time.Hour)
	second := time.Now().UTC()

	require.NoError(t, st.RevokeUserTokens(context.Background(), u.ID, first, first.Add(24*time.Hour)))
	require.NoError(t, st.RevokeUserTokens(context.Background(), u.ID, second, second.Add(24*time.Hour)))

	// Отметка продвинулась вперёд: токен между first и second отозван.
	revoked, err := st.IsTokenRevoked(context.Background(), u.ID, first.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, revoked)

	// Повтор со старым временем не откатывает отметку назад.
	require.NoError(t, st.RevokeUserTokens(context.Background(), u.ID, first, first.Add(24*time.Hour)))
	revoked, err = st.IsTokenRevoked(context.Background(), u.ID, first.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestIntegration_ExpiredMark_NotRevoked(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := testUser("expired-mark@example.com")
	require.NoError(t, st.SaveUser(context.Background(), u))

	// Отметка с истёкшим expires_at не действует.
	past := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, st.RevokeUserTokens(context.Background(), u.ID, past, past.Add(24*time.Hour)))

	revoked, err := st.IsTokenRevoked(context.Background(), u.ID, past.Add(-time.Hour))
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestIntegration_DeleteExpired_RemovesOnlyStale(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	stale := testUser("stale@example.com")
	fresh := testUser("fresh@example.com")
	require.NoError(t, st.SaveUser(context.Background(), stale))
	require.NoError(t, st.SaveUser(context.Background(), fresh))

	now := time.Now().UTC()
	require.NoError(t, st.RevokeUserTokens(context.Background(), stale.ID, now.Add(-48*time.Hour), now.Add(-24*time.Hour)))
	require.NoError(t, st.RevokeUserTokens(context.Background(), fresh.ID, now, now.Add(24*time.Hour)))

	require.NoError(t, st.DeleteExpired(context.Background(), now))

	// Живая отметка осталась.
	revoked, err := st.IsTokenRevoked(context.Background(), fresh.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, revoked)

	// Просроченная удалена: повторный DeleteExpired — no-op.
	require.NoError(t, st.DeleteExpired(context.Background(), now))
}

func TestIntegration_Revocation_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := st.RevokeUserTokens(ctx, uuid.New(), time.Now().UTC(), time.Now().UTC().Add(time.Hour))
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)

	_, err = st.IsTokenRevoked(ctx, uuid.New(), time.Now().UTC())
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}
