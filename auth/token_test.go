package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceIssueAndValidateRoundTrip(t *testing.T) {
	ts := NewTokenService("test-secret")
	user := &User{ID: "u1", Roles: []string{"editor"}}

	token, err := ts.Issue(user, ScopeAccess, "jti-1", time.Hour)
	require.NoError(t, err)

	claims, err := ts.Validate(token, ScopeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, []string{"editor"}, claims.Roles)
	assert.Equal(t, "jti-1", claims.ID)
}

func TestTokenServiceValidateRejectsWrongScope(t *testing.T) {
	ts := NewTokenService("test-secret")
	user := &User{ID: "u1"}

	token, err := ts.Issue(user, ScopeRefresh, "jti-2", time.Hour)
	require.NoError(t, err)

	_, err = ts.Validate(token, ScopeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenScope)
}

func TestTokenServiceValidateRejectsExpiredToken(t *testing.T) {
	ts := NewTokenService("test-secret")
	user := &User{ID: "u1"}

	// Issue treats ttl <= 0 as "no expiry", so an already-expired token is
	// signed directly with an ExpiresAt in the past.
	claims := Claims{UserID: user.ID, Scope: ScopeAccess, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        "jti-3",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	require.NoError(t, err)

	_, err = ts.Validate(token, ScopeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenServiceIssueWithZeroTTLNeverExpires(t *testing.T) {
	ts := NewTokenService("test-secret")
	user := &User{ID: "u1"}

	token, err := ts.Issue(user, ScopeAPIKey, "jti-4", 0)
	require.NoError(t, err)

	claims, err := ts.Validate(token, ScopeAPIKey)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestTokenServiceValidateRejectsTamperedSecret(t *testing.T) {
	ts := NewTokenService("test-secret")
	other := NewTokenService("different-secret")
	user := &User{ID: "u1"}

	token, err := ts.Issue(user, ScopeAccess, "jti-5", time.Hour)
	require.NoError(t, err)

	_, err = other.Validate(token, ScopeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
