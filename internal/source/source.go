// Package source defines the contract shared by every external metadata
// source, plus the caching and rate limiting all of them rely on.
package source

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"flacify/internal/metadata"
)

// ErrNoMatch means the source was reachable and answered, but nothing
// cleared its acceptance threshold. It is a cacheable outcome.
var ErrNoMatch = errors.New("no match found")

// ErrUnavailable means the source cannot serve lookups at all, for
// instance when a required helper binary is missing.
var ErrUnavailable = errors.New("source unavailable")

// Query carries everything a source may need to identify one track.
// Sources use the subset that suits them and ignore the rest.
type Query struct {
	Artist      string
	Album       string
	Title       string
	TrackNumber int    // 0 when unknown
	Path        string // audio file on disk, for content-based sources
}

// Source resolves a query to a metadata record from one external system.
type Source interface {
	Name() string
	Resolve(ctx context.Context, q Query) (metadata.Record, error)
}

// Key builds a normalized cache key from the given parts.
func Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = slug.Make(p)
	}
	return strings.Join(normalized, "|")
}

// Cache remembers lookup outcomes for the life of the process. Misses
// are stored explicitly: a cached "no match" is distinct from a key
// that has never been queried.
type Cache struct {
	mu      sync.Mutex
	entries map[string]metadata.Record
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]metadata.Record)}
}

// Lookup returns the cached record for key. ok reports whether the key
// has been stored at all; a true ok with a nil record is a cached miss.
func (c *Cache) Lookup(key string) (rec metadata.Record, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok = c.entries[key]
	return rec, ok
}

// Store records a successful lookup.
func (c *Cache) Store(key string, rec metadata.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rec
}

// StoreMiss records that the key yielded no match, so the external call
// is never repeated.
func (c *Cache) StoreMiss(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = nil
}

// Len returns the number of cached outcomes, hits and misses alike.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Limiter spaces outgoing requests at least interval apart.
type Limiter struct {
	interval    time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// NewLimiter returns a limiter enforcing the given minimum interval.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Wait blocks until the interval since the previous request has passed,
// then claims the current slot.
func (l *Limiter) Wait() {
	l.mu.Lock()
	elapsed := time.Since(l.lastRequest)
	l.mu.Unlock()

	if elapsed < l.interval {
		time.Sleep(l.interval - elapsed)
	}

	l.mu.Lock()
	l.lastRequest = time.Now()
	l.mu.Unlock()
}

// Reset restamps the limiter, used after a server-directed backoff.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.lastRequest = time.Now()
	l.mu.Unlock()
}
