package auth

import "time"

// Config represents authentication service configuration. Values are bound
// from `auth.*` config keys (§6: auth.session.ttl, auth.token.access_ttl,
// auth.token.refresh_ttl, auth.password.argon2.{mem,t}).
type Config struct {
	// JWT settings
	JWTSecret         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RefreshEnabled    bool

	// Session settings (hot-store only, §4.8 Open Question a)
	SessionTTL time.Duration

	// Password policy
	PasswordRequireStrong bool
	Argon2                Argon2Params

	// Account locking
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// Roles
	DefaultRole    string
	AvailableRoles []string

	// Audit logging
	AuditEnabled bool

	// OAuth (credential kind "oauth")
	OAuth OIDCSettings
}

// OIDCSettings configures the OAuth-code credential kind. Empty ProviderURL
// disables OAuth login entirely.
type OIDCSettings struct {
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Standard roles
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
	RoleAgent  = "agent"
)

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		AccessTokenTTL:        1 * time.Hour,
		RefreshTokenTTL:       7 * 24 * time.Hour,
		RefreshEnabled:        true,
		SessionTTL:            24 * time.Hour,
		PasswordRequireStrong: false,
		Argon2:                DefaultArgon2Params(),
		MaxFailedAttempts:     5,
		LockoutDuration:       30 * time.Minute,
		DefaultRole:           RoleViewer,
		AvailableRoles:        []string{RoleAdmin, RoleEditor, RoleViewer, RoleAgent},
		AuditEnabled:          true,
	}
}
