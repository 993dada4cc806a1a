package templates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Entry is one cached render: body, ETag, and the time it was produced
// (used as Last-Modified).
type Entry struct {
	Body         []byte
	ETag         string
	LastModified time.Time
}

// Fingerprint is the cache key's input set (§4.4): method, path, query,
// locale, theme, device class, the authenticated role set, and the content
// version the render observed (so a UCG mutation invalidates by producing
// a new fingerprint rather than requiring active invalidation).
type Fingerprint struct {
	Method         string
	Path           string
	Query          url.Values
	Locale         string
	Theme          string
	DeviceClass    string
	Roles          []string
	ContentVersion string
}

// Key canonicalises the fingerprint into a single cache key: query keys
// sorted, role list sorted, so equivalent requests always collide.
func (f Fingerprint) Key() string {
	var b strings.Builder
	b.WriteString(f.Method)
	b.WriteByte('|')
	b.WriteString(f.Path)
	b.WriteByte('|')

	keys := make([]string, 0, len(f.Query))
	for k := range f.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := append([]string(nil), f.Query[k]...)
		sort.Strings(vals)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(vals, ","))
		b.WriteByte('&')
	}
	b.WriteByte('|')
	b.WriteString(f.Locale)
	b.WriteByte('|')
	b.WriteString(f.Theme)
	b.WriteByte('|')
	b.WriteString(f.DeviceClass)
	b.WriteByte('|')

	roles := append([]string(nil), f.Roles...)
	sort.Strings(roles)
	b.WriteString(strings.Join(roles, ","))
	b.WriteByte('|')
	b.WriteString(f.ContentVersion)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ResponseCache caches rendered bodies by Fingerprint, with at-most-one
// concurrent render per key (P8): concurrent misses for the same key await
// the first in-flight computation rather than each invoking render.
type ResponseCache struct {
	entries *lru.Cache[string, Entry]
	group   singleflight.Group
	mu      sync.Mutex
}

// NewResponseCache builds a ResponseCache holding up to size entries.
func NewResponseCache(size int) (*ResponseCache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{entries: entries}, nil
}

// Get returns the cached entry for fp, if present.
func (c *ResponseCache) Get(fp Fingerprint) (Entry, bool) {
	return c.entries.Get(fp.Key())
}

// GetOrRender returns the cached entry for fp, or invokes render exactly
// once across any number of concurrent callers sharing the same key,
// caching and returning its result.
func (c *ResponseCache) GetOrRender(ctx context.Context, fp Fingerprint, render func(ctx context.Context) ([]byte, error)) (Entry, error) {
	key := fp.Key()
	if entry, ok := c.entries.Get(key); ok {
		return entry, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		body, err := render(ctx)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(body)
		entry := Entry{Body: body, ETag: `"` + hex.EncodeToString(sum[:]) + `"`, LastModified: time.Now()}
		c.entries.Add(key, entry)
		return entry, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return result.(Entry), nil
}

// NotModified reports whether clientETag matches entry's ETag, the
// signal to short-circuit to an HTTP 304.
func NotModified(entry Entry, clientETag string) bool {
	return clientETag != "" && clientETag == entry.ETag
}

// Invalidate drops every cached entry, used after an event (entity
// mutation, theme change) whose content-version bump callers choose not to
// track per-fingerprint.
func (c *ResponseCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}
