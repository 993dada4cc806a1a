// Package hotstore wraps the volatile, TTL-evicted key/value layer that
// sits in front of the durable store: entity/association caches, the
// children-index, sessions, translation strings, and search postings.
package hotstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reedcms/reed/reederr"
)

// Class names a key class for TTL policy purposes (§4.2).
type Class string

const (
	ClassEntity    Class = "entity"
	ClassChildren  Class = "ucg:children"
	ClassAssoc     Class = "assoc"
	ClassEPC       Class = "epc"
	ClassSession   Class = "session"
	ClassUserSess  Class = "user:sessions"
	ClassTranslate Class = "translation"
	ClassSearch    Class = "search:post"
	ClassPlugin    Class = "plugin"
	ClassRevoked   Class = "token:revoked"
)

// DefaultTTL is the built-in per-class TTL (§4.2), overridable via
// config's hot_store.ttl.<class> keys.
var DefaultTTL = map[Class]time.Duration{
	ClassEntity:    600 * time.Second,
	ClassChildren:  120 * time.Second,
	ClassAssoc:     600 * time.Second,
	ClassEPC:       0, // invalidated by fsnotify, not time
	ClassTranslate: 3600 * time.Second,
	ClassSearch:    3600 * time.Second,
}

// Store is the hot-store client. All operations are advisory: callers must
// treat Store errors as non-fatal and fall through to the durable store.
type Store struct {
	client    *redis.Client
	ttl       map[Class]time.Duration
	keyPrefix string
}

// Config configures a Store.
type Config struct {
	URL        string
	KeyPrefix  string
	TTLOverride map[Class]time.Duration
}

// New connects to the backing Redis-class server and verifies reachability.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, reederr.HotStoreError("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, reederr.HotStoreError("connect: %v", err)
	}

	ttl := make(map[Class]time.Duration, len(DefaultTTL))
	for k, v := range DefaultTTL {
		ttl[k] = v
	}
	for k, v := range cfg.TTLOverride {
		ttl[k] = v
	}

	return &Store{client: client, ttl: ttl, keyPrefix: cfg.KeyPrefix}, nil
}

// NewWithClient wraps an already-constructed client (used by tests with
// miniredis and by callers with a shared connection pool).
func NewWithClient(client *redis.Client, ttl map[Class]time.Duration) *Store {
	merged := make(map[Class]time.Duration, len(DefaultTTL))
	for k, v := range DefaultTTL {
		merged[k] = v
	}
	for k, v := range ttl {
		merged[k] = v
	}
	return &Store{client: client, ttl: merged}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(class Class, parts ...string) string {
	k := string(class)
	for _, p := range parts {
		k += ":" + p
	}
	return s.keyPrefix + k
}

// TTLFor returns the configured TTL for class.
func (s *Store) TTLFor(class Class) time.Duration {
	return s.ttl[class]
}

// SetJSON marshals value and writes it under class/parts with the class's
// configured TTL (0 means no expiry, used for fsnotify-invalidated classes).
func (s *Store) SetJSON(ctx context.Context, class Class, value interface{}, parts ...string) error {
	return s.SetJSONTTL(ctx, class, value, s.ttl[class], parts...)
}

// SetJSONTTL is SetJSON with an explicit TTL override, used where the
// per-class default doesn't fit a single write (e.g. a revoked-jti marker
// that only needs to outlive the token it revokes).
func (s *Store) SetJSONTTL(ctx context.Context, class Class, value interface{}, ttl time.Duration, parts ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return reederr.HotStoreError("marshal %s: %v", class, err)
	}
	key := s.key(class, parts...)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return reederr.HotStoreError("set %s: %v", key, err)
	}
	return nil
}

// GetJSON reads and unmarshals a value previously written by SetJSON.
// Returns (false, nil) on a cache miss, distinguishing it from errors.
func (s *Store) GetJSON(ctx context.Context, class Class, dest interface{}, parts ...string) (bool, error) {
	key := s.key(class, parts...)
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, reederr.HotStoreError("get %s: %v", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, reederr.HotStoreError("unmarshal %s: %v", key, err)
	}
	return true, nil
}

// Invalidate deletes the key for class/parts.
func (s *Store) Invalidate(ctx context.Context, class Class, parts ...string) error {
	key := s.key(class, parts...)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return reederr.HotStoreError("del %s: %v", key, err)
	}
	return nil
}

// InvalidatePrefix deletes every key sharing the given class/parts prefix,
// used for bulk invalidation (e.g. all epc:<theme>:* entries on a theme
// filesystem change).
func (s *Store) InvalidatePrefix(ctx context.Context, class Class, parts ...string) error {
	pattern := s.key(class, parts...) + "*"
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return reederr.HotStoreError("scan %s: %v", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return reederr.HotStoreError("del prefix %s: %v", pattern, err)
	}
	return nil
}

// Flush discards every key under this store's prefix. Used only by the CSV
// rebuild's phase-1 "flush hot store" step (§4.2); advisory like every other
// hot-store call, so a rebuild proceeds even if this fails.
func (s *Store) Flush(ctx context.Context) error {
	pattern := s.keyPrefix + "*"
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return reederr.HotStoreError("scan %s: %v", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return reederr.HotStoreError("flush: %v", err)
	}
	return nil
}

// Touch resets a key's TTL to its class default, extending a session or
// entity's lifetime without rewriting the value.
func (s *Store) Touch(ctx context.Context, class Class, parts ...string) error {
	key := s.key(class, parts...)
	ttl := s.ttl[class]
	if ttl <= 0 {
		return nil
	}
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return reederr.HotStoreError("touch %s: %v", key, err)
	}
	if !ok {
		return reederr.HotStoreError("touch %s: key not present", key)
	}
	return nil
}

// AddToSet adds member to the set named by class/parts (used for the
// per-user session index, ClassUserSess).
func (s *Store) AddToSet(ctx context.Context, class Class, member string, parts ...string) error {
	key := s.key(class, parts...)
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return reederr.HotStoreError("sadd %s: %v", key, err)
	}
	return nil
}

// RemoveFromSet removes member from the set named by class/parts.
func (s *Store) RemoveFromSet(ctx context.Context, class Class, member string, parts ...string) error {
	key := s.key(class, parts...)
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return reederr.HotStoreError("srem %s: %v", key, err)
	}
	return nil
}

// SetMembers returns every member of the set named by class/parts.
func (s *Store) SetMembers(ctx context.Context, class Class, parts ...string) ([]string, error) {
	key := s.key(class, parts...)
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, reederr.HotStoreError("smembers %s: %v", key, err)
	}
	return members, nil
}

// IsMember reports whether member belongs to the set named by class/parts.
func (s *Store) IsMember(ctx context.Context, class Class, member string, parts ...string) (bool, error) {
	key := s.key(class, parts...)
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, reederr.HotStoreError("sismember %s: %v", key, err)
	}
	return ok, nil
}

// IncrementPosting bumps a search-posting counter for term/docID, used by
// the snippet search index.
func (s *Store) IncrementPosting(ctx context.Context, term, docID string) error {
	key := s.key(ClassSearch, term)
	if err := s.client.HIncrBy(ctx, key, docID, 1).Err(); err != nil {
		return reederr.HotStoreError("posting incr %s: %v", key, err)
	}
	if ttl := s.ttl[ClassSearch]; ttl > 0 {
		s.client.Expire(ctx, key, ttl)
	}
	return nil
}

// Postings returns the docID -> hit-count map for a search term.
func (s *Store) Postings(ctx context.Context, term string) (map[string]int, error) {
	key := s.key(ClassSearch, term)
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, reederr.HotStoreError("postings %s: %v", key, err)
	}
	out := make(map[string]int, len(raw))
	for doc, countStr := range raw {
		var n int
		fmt.Sscanf(countStr, "%d", &n)
		out[doc] = n
	}
	return out, nil
}

// Ping reports whether the hot store is currently reachable.
func (s *Store) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}
