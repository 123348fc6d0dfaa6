// Package cache provides the bounded, TTL'd result cache for match queries.
package cache

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 100
)

// Clock abstracts wall time so expiry can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

type entry struct {
	key       string
	matches   []models.DatasetMatch
	expiresAt time.Time
}

// MatchCache is a read-through LRU cache of match results. It is safe for
// concurrent use by multiple pipeline executions; all LRU bookkeeping happens
// under a single mutex.
type MatchCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	clock    Clock

	order   *list.List
	entries map[string]*list.Element

	hits   int64
	misses int64
}

// New creates a MatchCache. Non-positive capacity or TTL fall back to the
// defaults; a nil clock falls back to the system clock.
func New(capacity int, ttl time.Duration, clock Clock) *MatchCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &MatchCache{
		capacity: capacity,
		ttl:      ttl,
		clock:    clock,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Key builds the cache key for a query: a fingerprint of the normalized
// entity, the sorted normalized aliases, and the option fields that change
// the result set. ForceRefresh is deliberately excluded; it alters cache
// behavior, not result content.
func Key(query models.MatchQuery) string {
	opts := query.Options.Clamped()

	aliases := make([]string, 0, len(query.Aliases))
	for _, a := range query.Aliases {
		if n := normalize.Normalize(a); n != "" {
			aliases = append(aliases, n)
		}
	}
	sort.Strings(aliases)

	return fingerprint.Generate(map[string]any{
		"entity":         normalize.Normalize(query.Entity),
		"aliases":        aliases,
		"min_confidence": opts.MinConfidence,
		"max_results":    opts.MaxResults,
	})
}

// Get returns the cached matches for a key, or ok=false on miss or expiry.
// A hit refreshes the entry's LRU position.
func (c *MatchCache) Get(key string) ([]models.DatasetMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := el.Value.(*entry)
	if c.clock.Now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++

	matches := make([]models.DatasetMatch, len(e.matches))
	copy(matches, e.matches)
	return matches, true
}

// Set stores matches for a key, evicting the least recently used entry when
// at capacity.
func (c *MatchCache) Set(key string, matches []models.DatasetMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]models.DatasetMatch, len(matches))
	copy(stored, matches)

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.matches = stored
		e.expiresAt = c.clock.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}

	el := c.order.PushFront(&entry{
		key:       key,
		matches:   stored,
		expiresAt: c.clock.Now().Add(c.ttl),
	})
	c.entries[key] = el
}

// Stats returns a snapshot of hit/miss counters and current size.
func (c *MatchCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: c.order.Len()}
}
