package stubdns

import (
	"sync"
	"time"

	"github.com/miekg/dns"
)

type cnameEntry struct {
	target  string
	expires time.Time
}

// CnameCache caches single alias to target edges. Chains are re-traversed on
// each resolve, but every hop is cache-warm after the first traversal.
type CnameCache struct {
	MinTTL time.Duration
	MaxTTL time.Duration

	mu      sync.RWMutex
	aliases map[string]cnameEntry
}

func NewCnameCache() *CnameCache {
	return &CnameCache{
		MaxTTL:  DefaultMaxTTL,
		aliases: make(map[string]cnameEntry),
	}
}

// Set stores the single mapping for alias, replacing any previous target.
func (c *CnameCache) Set(alias, target string, ttlSecs uint32) {
	if c == nil || ttlSecs == 0 {
		return
	}
	alias = dns.CanonicalName(alias)
	target = dns.CanonicalName(target)
	if alias == target {
		return
	}
	c.mu.Lock()
	c.aliases[alias] = cnameEntry{
		target:  target,
		expires: expiryFor(ttlSecs, c.MinTTL, c.MaxTTL),
	}
	c.mu.Unlock()
}

// Get returns the cached target for alias.
func (c *CnameCache) Get(alias string) (target string, ok bool) {
	if c == nil {
		return "", false
	}
	alias = dns.CanonicalName(alias)
	c.mu.RLock()
	e, found := c.aliases[alias]
	c.mu.RUnlock()
	if !found {
		return "", false
	}
	if !e.expires.After(time.Now()) {
		c.mu.Lock()
		delete(c.aliases, alias)
		c.mu.Unlock()
		return "", false
	}
	return e.target, true
}

// Follow walks the cached chain starting at name and returns the last known
// name, which is name itself when no edge is cached.
func (c *CnameCache) Follow(name string) string {
	name = dns.CanonicalName(name)
	for i := 0; i < maxCnameRedirects; i++ {
		target, ok := c.Get(name)
		if !ok {
			break
		}
		name = target
	}
	return name
}

// Clear drops every mapping.
func (c *CnameCache) Clear() {
	if c != nil {
		c.mu.Lock()
		clear(c.aliases)
		c.mu.Unlock()
	}
}

// Entries returns the number of cached aliases.
func (c *CnameCache) Entries() (n int) {
	if c != nil {
		c.mu.RLock()
		n = len(c.aliases)
		c.mu.RUnlock()
	}
	return
}
