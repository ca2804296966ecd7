package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Тесты используют MinCost: DefaultCost занимает десятки миллисекунд на хэш.
func newHasher() *Hasher {
	return New(bcrypt.MinCost)
}

func TestHashAndVerify_OK(t *testing.T) {
	t.Parallel()

	h := newHasher()

	hash, err := h.Hash("Abcdef1!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEqual(t, "Abcdef1!", hash)

	ok, err := h.Verify("Abcdef1!", hash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerify_WrongPassword_FalseWithoutError(t *testing.T) {
	t.Parallel()

	h := newHasher()

	hash, err := h.Hash("Abcdef1!")
	require.NoError(t, err)

	ok, err := h.Verify("WRONG1!a", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerify_MalformedHash_ReturnsError(t *testing.T) {
	t.Parallel()

	h := newHasher()

	ok, err := h.Verify("Abcdef1!", "not-a-bcrypt-hash")
	require.Error(t, err)
	require.False(t, ok)
}

func TestHash_SamePasswordDifferentHashes(t *testing.T) {
	t.Parallel()

	h := newHasher()

	h1, err := h.Hash("Abcdef1!")
	require.NoError(t, err)
	h2, err := h.Hash("Abcdef1!")
	require.NoError(t, err)

	// Соль встроена в bcrypt: два хэша одного пароля различаются.
	require.NotEqual(t, h1, h2)
}

func TestNew_NonPositiveCost_UsesDefault(t *testing.T) {
	t.Parallel()

	h := New(0)
	require.Equal(t, bcrypt.DefaultCost, h.cost)

	h = New(-1)
	require.Equal(t, bcrypt.DefaultCost, h.cost)
}

func TestHash_CostAboveMax_ReturnsError(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MaxCost + 1)

	_, err := h.Hash("Abcdef1!")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "password.Hash"))
}
