package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scope names what a signed token may be used for (§4.8).
type Scope string

const (
	ScopeAccess  Scope = "access"
	ScopeRefresh Scope = "refresh"
	ScopeAPIKey  Scope = "api_key"
)

// Claims is the signed claim set every credential kind but password shares:
// {sub, iat, exp, scope, jti}, plus the role set needed for authorisation
// without a round trip to the user store.
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	Scope  Scope    `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService mints and validates the HS256 JWTs used for access, refresh,
// and API-key credentials. Revocation (by jti) is the caller's
// responsibility — Validate only checks signature, scope, and expiry.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a new token service.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: "reedcms/auth"}
}

// Issue mints a signed token for user with the given scope, jti and
// lifetime. ttl <= 0 means no expiry (used for long-lived API keys).
func (s *TokenService) Issue(user *User, scope Scope, jti string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Roles:  user.Roles,
		Scope:  scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   user.ID,
			ID:        jti,
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and verifies a token's signature and expiry, and checks it
// carries wantScope. It does not consult the revocation allowlist; callers
// holding a hot-store handle must also check IsJTIRevoked.
func (s *TokenService) Validate(tokenString string, wantScope Scope) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != wantScope {
		return nil, ErrWrongTokenScope
	}
	return claims, nil
}
