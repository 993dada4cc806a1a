package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/reedcms/reed/durable"
	"github.com/reedcms/reed/ids"
)

// AuthService is the credential and session surface for the request
// pipeline (§4.8): it authenticates all four credential kinds — password,
// token, OAuth code, API key — manages the user directory, and maintains
// the hot-store session/revocation state.
type AuthService interface {
	// Authentication
	LoginWithPassword(ctx context.Context, username, password, ip, userAgent string) (*AuthResult, error)
	LoginWithOAuthCode(ctx context.Context, code, ip, userAgent string) (*AuthResult, error)
	AuthenticateSession(ctx context.Context, sessionID string) (*User, *Session, error)
	AuthenticateToken(ctx context.Context, token string) (*User, *Claims, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutEverywhere(ctx context.Context, userID string) error

	// Token/API key management
	IssueAPIKey(ctx context.Context, userID string) (string, error)
	RevokeToken(ctx context.Context, claims *Claims) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error)

	// Password management
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error

	// User management
	CreateUser(req CreateUserRequest) (*User, error)
	UpdateUser(userID string, req UpdateUserRequest) (*User, error)
	DeleteUser(userID, requestingUserID string) error
	GetUser(userID string) (*User, error)
	ListUsers() ([]*User, error)
}

type authService struct {
	config   *Config
	store    UserStore
	tokens   *TokenService
	sessions *SessionStore
	oauth    *OAuthProvider
	audit    *durable.GormDB
}

// NewAuthService wires an AuthService from its store, session backend, and
// (optionally nil) OAuth provider. audit may be nil to disable durable audit
// trail persistence entirely (tests, or AuditEnabled=false deployments).
func NewAuthService(config *Config, store UserStore, sessions *SessionStore, oauth *OAuthProvider, audit *durable.GormDB) AuthService {
	if config == nil {
		config = DefaultConfig()
	}
	return &authService{
		config:   config,
		store:    store,
		tokens:   NewTokenService(config.JWTSecret),
		sessions: sessions,
		oauth:    oauth,
		audit:    audit,
	}
}

// TokenPair is an access/refresh token pair returned on login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResult is what a successful login returns: the user, a session for
// cookie-based auth, and a token pair for API clients.
type AuthResult struct {
	User      *User      `json:"user"`
	Session   *Session   `json:"session"`
	Tokens    TokenPair  `json:"tokens"`
}

func (s *authService) LoginWithPassword(ctx context.Context, username, password, ip, userAgent string) (*AuthResult, error) {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		s.recordAudit(ctx, "", "login_failed")
		return nil, ErrInvalidCredentials
	}

	if user.Locked {
		s.recordAudit(ctx, user.ID, "login_failed_locked")
		return nil, ErrAccountLocked
	}
	if !user.Enabled {
		s.recordAudit(ctx, user.ID, "login_failed_disabled")
		return nil, ErrAccountDisabled
	}

	if err := ValidatePassword(password, user.PasswordHash); err != nil {
		user.FailedLogins++
		if user.FailedLogins >= s.config.MaxFailedAttempts {
			user.Locked = true
		}
		s.store.UpdateUser(user)
		s.recordAudit(ctx, user.ID, "login_failed")
		return nil, ErrInvalidCredentials
	}

	if NeedsRehash(user.PasswordHash, s.config.Argon2) {
		if rehashed, err := HashPassword(password, s.config.Argon2); err == nil {
			user.PasswordHash = rehashed
		}
	}

	user.FailedLogins = 0
	now := time.Now()
	user.LastLoginAt = &now
	s.store.UpdateUser(user)

	return s.completeLogin(ctx, user, ip, userAgent, "login")
}

func (s *authService) LoginWithOAuthCode(ctx context.Context, code, ip, userAgent string) (*AuthResult, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth login is not configured")
	}
	claims, err := s.oauth.ExchangeAndVerify(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(claims.Email)
	if err != nil {
		user, err = s.CreateUser(CreateUserRequest{
			Username: claims.Email,
			Email:    claims.Email,
			Name:     claims.Name,
			Password: ids.New(), // unguessable placeholder; password login stays unavailable for oauth-provisioned accounts until explicitly set
		})
		if err != nil {
			return nil, err
		}
	}

	return s.completeLogin(ctx, user, ip, userAgent, "login_oauth")
}

func (s *authService) completeLogin(ctx context.Context, user *User, ip, userAgent, auditEvent string) (*AuthResult, error) {
	sess, err := s.sessions.Create(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	tokens, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, user.ID, auditEvent)
	return &AuthResult{User: user, Session: sess, Tokens: tokens}, nil
}

func (s *authService) issueTokenPair(user *User) (TokenPair, error) {
	accessJTI := ids.New()
	access, err := s.tokens.Issue(user, ScopeAccess, accessJTI, s.config.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	pair := TokenPair{AccessToken: access, ExpiresAt: time.Now().Add(s.config.AccessTokenTTL)}
	if s.config.RefreshEnabled {
		refreshJTI := ids.New()
		refresh, err := s.tokens.Issue(user, ScopeRefresh, refreshJTI, s.config.RefreshTokenTTL)
		if err != nil {
			return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
		}
		pair.RefreshToken = refresh
	}
	return pair, nil
}

func (s *authService) AuthenticateSession(ctx context.Context, sessionID string) (*User, *Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.store.GetUser(sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	s.sessions.Touch(ctx, sessionID)
	return user, sess, nil
}

func (s *authService) AuthenticateToken(ctx context.Context, token string) (*User, *Claims, error) {
	claims, err := s.tokens.Validate(token, ScopeAccess)
	if err != nil {
		return nil, nil, err
	}
	revoked, err := s.sessions.IsJTIRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, ErrRevokedToken
	}
	user, err := s.store.GetUser(claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err == nil {
		s.recordAudit(ctx, sess.UserID, "logout")
	}
	return s.sessions.Revoke(ctx, sessionID)
}

func (s *authService) LogoutEverywhere(ctx context.Context, userID string) error {
	s.recordAudit(ctx, userID, "logout_everywhere")
	return s.sessions.RevokeAllForUser(ctx, userID)
}

func (s *authService) IssueAPIKey(ctx context.Context, userID string) (string, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return "", err
	}
	// API keys are long-lived (ttl<=0) signed tokens scoped api_key; they
	// are revoked the same way any other token is, via the jti allowlist.
	return s.tokens.Issue(user, ScopeAPIKey, ids.New(), 0)
}

func (s *authService) RevokeToken(ctx context.Context, claims *Claims) error {
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	} else {
		ttl = 365 * 24 * time.Hour // api_key tokens carry no expiry; bound the marker's lifetime generously
	}
	return s.sessions.RevokeJTI(ctx, claims.ID, ttl)
}

func (s *authService) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Validate(refreshToken, ScopeRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := s.sessions.IsJTIRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	user, err := s.store.GetUser(claims.UserID)
	if err != nil {
		return nil, err
	}

	// Rotate: the old refresh token is immediately revoked so it can't be
	// replayed once a new pair has been issued.
	if err := s.RevokeToken(ctx, claims); err != nil {
		return nil, err
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return err
	}

	if err := ValidatePassword(currentPassword, user.PasswordHash); err != nil {
		s.recordAudit(ctx, userID, "change_password_failed")
		return ErrInvalidCredentials
	}
	if err := CheckPasswordStrength(newPassword, s.config.PasswordRequireStrong); err != nil {
		return err
	}

	hashed, err := HashPassword(newPassword, s.config.Argon2)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hashed
	user.MustChangePassword = false
	if err := s.store.UpdateUser(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.sessions.RevokeAllForUser(ctx, userID)
	s.recordAudit(ctx, userID, "change_password")
	return nil
}

func (s *authService) CreateUser(req CreateUserRequest) (*User, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := CheckPasswordStrength(req.Password, s.config.PasswordRequireStrong); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserByUsername(req.Username); err == nil {
		return nil, ErrUserExists
	}
	if req.Email != "" {
		if _, err := s.store.GetUserByEmail(req.Email); err == nil {
			return nil, ErrUserExists
		}
	}

	hashed, err := HashPassword(req.Password, s.config.Argon2)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{s.config.DefaultRole}
	}

	now := time.Now()
	user := &User{
		ID:                 ids.New(),
		Username:           req.Username,
		Email:              req.Email,
		Name:               req.Name,
		PasswordHash:       hashed,
		Roles:              roles,
		Enabled:            true,
		MustChangePassword: req.MustChangePassword,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.CreateUser(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *authService) UpdateUser(userID string, req UpdateUserRequest) (*User, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		if err := ValidateEmail(*req.Email); err != nil {
			return nil, err
		}
		user.Email = *req.Email
	}
	if req.Password != nil {
		if err := CheckPasswordStrength(*req.Password, s.config.PasswordRequireStrong); err != nil {
			return nil, err
		}
		hashed, err := HashPassword(*req.Password, s.config.Argon2)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hashed
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Roles != nil {
		user.Roles = *req.Roles
	}
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}
	if req.Locked != nil {
		user.Locked = *req.Locked
	}
	if req.MustChangePassword != nil {
		user.MustChangePassword = *req.MustChangePassword
	}

	user.UpdatedAt = time.Now()
	if err := s.store.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *authService) DeleteUser(userID, requestingUserID string) error {
	if userID == requestingUserID {
		return ErrSelfDelete
	}
	if _, err := s.store.GetUser(userID); err != nil {
		return err
	}
	return s.store.DeleteUser(userID)
}

func (s *authService) GetUser(userID string) (*User, error) {
	return s.store.GetUser(userID)
}

func (s *authService) ListUsers() ([]*User, error) {
	return s.store.ListUsers()
}

func (s *authService) recordAudit(ctx context.Context, userID, event string) {
	if !s.config.AuditEnabled || s.audit == nil {
		return
	}
	s.audit.RecordAuditEvent(durable.SessionAuditEvent{UserID: userID, Event: event})
}
