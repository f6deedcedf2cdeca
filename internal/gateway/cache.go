package gateway

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// cacheEntry holds one cached response. Entries are replaced whole, never
// mutated in place.
type cacheEntry struct {
	payload   []byte
	fetchedAt time.Time
}

// responseCache is the per-signature response cache. Concurrent fetches for
// the same signature may race; whichever response is stored last wins the
// slot, which can only make the cache fresher or equally stale.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]cacheEntry)}
}

// get returns the cached payload for sig if it is younger than ttl.
func (c *responseCache) get(sig string, now time.Time, ttl time.Duration) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[sig]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.fetchedAt) >= ttl {
		return nil, false
	}
	return entry.payload, true
}

// put stores a successful response payload under sig.
func (c *responseCache) put(sig string, payload []byte, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sig] = cacheEntry{payload: payload, fetchedAt: now}
}

// reset drops all entries.
func (c *responseCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// signature builds the normalized cache key for an endpoint and query
// parameters. Parameters are sorted so equivalent requests share a key.
func signature(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for j, v := range values {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
