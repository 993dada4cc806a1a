package auth

import (
	"context"
	"time"

	"github.com/reedcms/reed/hotstore"
	"github.com/reedcms/reed/ids"
)

// Session is an opaque, high-entropy server-side session (§4.8). Sessions
// live only in the hot store (Open Question (a), resolved): a hot-store
// loss is treated as every in-flight session expiring, never rehydrated
// from the durable store.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	// Bag carries per-session preferences (theme, locale) consulted as the
	// fallback tier in negotiation precedence (§4.4) ahead of the globally
	// active default, behind any explicit per-request signal.
	Bag map[string]string `json:"bag,omitempty"`
}

// SessionStore wraps the hot store's session class with the session-specific
// key shape: session:<id> for the session itself, and a set at
// user:sessions:<userID> (class prefix first, not user:<id>:sessions)
// indexing the user's session ids for bulk revocation.
type SessionStore struct {
	hot *hotstore.Store
	ttl time.Duration
}

// NewSessionStore builds a SessionStore with the given session TTL.
func NewSessionStore(hot *hotstore.Store, ttl time.Duration) *SessionStore {
	return &SessionStore{hot: hot, ttl: ttl}
}

// Create mints a new session for userID and indexes it under the user's
// session set.
func (s *SessionStore) Create(ctx context.Context, userID, ip, userAgent string) (*Session, error) {
	sess := &Session{
		ID:        ids.New(),
		UserID:    userID,
		CreatedAt: time.Now(),
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := s.hot.SetJSONTTL(ctx, hotstore.ClassSession, sess, s.ttl, sess.ID); err != nil {
		return nil, err
	}
	if err := s.hot.AddToSet(ctx, hotstore.ClassUserSess, sess.ID, userID); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session by id. Returns ErrSessionNotFound on a miss (expired
// or never existed — the hot store doesn't distinguish the two).
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	ok, err := s.hot.GetJSON(ctx, hotstore.ClassSession, &sess, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// Touch resets a session's TTL, extending its lifetime on each authenticated
// request.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	return s.hot.Touch(ctx, hotstore.ClassSession, id)
}

// Revoke deletes a single session.
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil // already gone
	}
	if err := s.hot.Invalidate(ctx, hotstore.ClassSession, id); err != nil {
		return err
	}
	return s.hot.RemoveFromSet(ctx, hotstore.ClassUserSess, id, sess.UserID)
}

// RevokeAllForUser revokes every session belonging to userID, used on
// logout-everywhere and on password change.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.hot.SetMembers(ctx, hotstore.ClassUserSess, userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.hot.Invalidate(ctx, hotstore.ClassSession, id)
	}
	return s.hot.Invalidate(ctx, hotstore.ClassUserSess, userID)
}

// revokedMarker is the value stored at a revoked jti's key; its presence,
// not its content, is what matters.
type revokedMarker struct {
	RevokedAt time.Time `json:"revoked_at"`
}

// RevokeJTI adds a token id to the revocation allowlist for ttl — long
// enough to outlive the token it revokes, so the marker self-cleans instead
// of growing the hot store without bound.
func (s *SessionStore) RevokeJTI(ctx context.Context, jti string, ttl time.Duration) error {
	return s.hot.SetJSONTTL(ctx, hotstore.ClassRevoked, revokedMarker{RevokedAt: time.Now()}, ttl, jti)
}

// IsJTIRevoked reports whether jti has been revoked.
func (s *SessionStore) IsJTIRevoked(ctx context.Context, jti string) (bool, error) {
	var marker revokedMarker
	return s.hot.GetJSON(ctx, hotstore.ClassRevoked, &marker, jti)
}
