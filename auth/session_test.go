package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedcms/reed/hotstore"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hot := hotstore.NewWithClient(client, map[hotstore.Class]time.Duration{
		hotstore.ClassSession:  time.Hour,
		hotstore.ClassRevoked:  time.Hour,
	})
	return NewSessionStore(hot, time.Hour)
}

func TestSessionStoreCreateAndGet(t *testing.T) {
	store := newTestSessionStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "127.0.0.1", "test-agent")
	require.NoError(t, err)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestSessionStoreGetMissingReturnsNotFound(t *testing.T) {
	store := newTestSessionStore(t)
	_, err := store.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreRevokeRemovesSessionAndIndex(t *testing.T) {
	store := newTestSessionStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "", "")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, sess.ID))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreRevokeAllForUserClearsEverySession(t *testing.T) {
	store := newTestSessionStore(t)
	ctx := context.Background()

	s1, _ := store.Create(ctx, "u1", "", "")
	s2, _ := store.Create(ctx, "u1", "", "")

	require.NoError(t, store.RevokeAllForUser(ctx, "u1"))

	_, err1 := store.Get(ctx, s1.ID)
	_, err2 := store.Get(ctx, s2.ID)
	assert.ErrorIs(t, err1, ErrSessionNotFound)
	assert.ErrorIs(t, err2, ErrSessionNotFound)
}

func TestSessionStoreJTIRevocation(t *testing.T) {
	store := newTestSessionStore(t)
	ctx := context.Background()

	revoked, err := store.IsJTIRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeJTI(ctx, "jti-1", time.Hour))

	revoked, err = store.IsJTIRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
