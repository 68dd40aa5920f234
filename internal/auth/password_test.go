package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("segredo123")
	require.NoError(t, err)
	assert.NotContains(t, hash, "segredo123")

	assert.True(t, VerifyPassword("segredo123", hash))
	assert.False(t, VerifyPassword("segredo124", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := HashPassword("same")
	require.NoError(t, err)
	h2, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.True(t, VerifyPassword("same", h1))
	assert.True(t, VerifyPassword("same", h2))
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("x", "plaintext"))
	assert.False(t, VerifyPassword("x", "argon2id$a$b$c$d$e"))
	assert.False(t, VerifyPassword("x", ""))
}
