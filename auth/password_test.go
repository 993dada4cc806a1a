package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordAndValidateRoundTrip(t *testing.T) {
	params := DefaultArgon2Params()
	hash, err := HashPassword("correct-horse-battery-staple", params)
	require.NoError(t, err)

	assert.NoError(t, ValidatePassword("correct-horse-battery-staple", hash))
	assert.ErrorIs(t, ValidatePassword("wrong-password", hash), ErrInvalidCredentials)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("", DefaultArgon2Params())
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHashPasswordProducesUniqueSaltPerCall(t *testing.T) {
	params := DefaultArgon2Params()
	h1, err := HashPassword("same-password", params)
	require.NoError(t, err)
	h2, err := HashPassword("same-password", params)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestNeedsRehashDetectsWeakerParameters(t *testing.T) {
	weak := Argon2Params{Memory: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32, SaltLen: 16}
	hash, err := HashPassword("a-password", weak)
	require.NoError(t, err)

	assert.True(t, NeedsRehash(hash, DefaultArgon2Params()))
	assert.False(t, NeedsRehash(hash, weak))
}

func TestCheckPasswordStrengthRequiresComplexityWhenEnabled(t *testing.T) {
	assert.NoError(t, CheckPasswordStrength("simplepass", false))
	assert.ErrorIs(t, CheckPasswordStrength("simplepass", true), ErrWeakPassword)
	assert.NoError(t, CheckPasswordStrength("Str0ng!Pass", true))
}

func TestValidateUsernameFormat(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice_1"))
	assert.ErrorIs(t, ValidateUsername("ab"), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername("has space"), ErrInvalidUsername)
}

func TestValidateEmailAllowsEmpty(t *testing.T) {
	assert.NoError(t, ValidateEmail(""))
	assert.NoError(t, ValidateEmail("a@b.com"))
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmail)
}
