package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandBytes(t *testing.T) {
	t.Parallel()
	a, err := RandBytes(64)
	require.NoError(t, err)
	require.Len(t, a, 64)
	b, err := RandBytes(64)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEqual(t, make([]byte, 64), a)
}

func TestHashPassword_Deterministic(t *testing.T) {
	t.Parallel()
	pw, salt := []byte("p@ssw0rd"), []byte("NaCl-16-bytes?")

	h1 := HashPassword(pw, salt)
	require.NotEmpty(t, h1)
	require.Equal(t, h1, HashPassword(pw, salt))
	require.NotEqual(t, h1, HashPassword(pw, []byte("another-salt----")))
	require.NotEqual(t, h1, HashPassword([]byte("p@ssw0rd!"), salt))
}

func TestNewPasswordHash_Verify(t *testing.T) {
	t.Parallel()
	hash, salt, err := NewPasswordHash("correct horse battery staple")
	require.NoError(t, err)
	require.Len(t, salt, SaltLen)

	require.True(t, VerifyPassword([]byte("correct horse battery staple"), salt, hash))
	require.False(t, VerifyPassword([]byte("wrong"), salt, hash))
	require.False(t, VerifyPassword([]byte("correct horse battery staple"), []byte("wrong-salt"), hash))
	require.False(t, VerifyPassword(nil, salt, hash))
}
