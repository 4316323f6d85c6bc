package stubdns

import (
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/miekg/dns"
)

type nsEntry struct {
	servers []netip.AddrPort
	expires time.Time
}

// NSCache caches the ordered name server set known to be authoritative for a
// zone, so later resolves below that zone skip the referral chain.
type NSCache struct {
	MinTTL time.Duration
	MaxTTL time.Duration

	mu    sync.RWMutex
	zones map[string]nsEntry
}

func NewNSCache() *NSCache {
	return &NSCache{
		MaxTTL: DefaultMaxTTL,
		zones:  make(map[string]nsEntry),
	}
}

// Set stores the server snapshot for zone.
func (c *NSCache) Set(zone string, ttlSecs uint32, servers ...netip.AddrPort) {
	if c == nil || ttlSecs == 0 || len(servers) == 0 {
		return
	}
	c.mu.Lock()
	c.zones[dns.CanonicalName(zone)] = nsEntry{
		servers: slices.Clone(servers),
		expires: expiryFor(ttlSecs, c.MinTTL, c.MaxTTL),
	}
	c.mu.Unlock()
}

// Get returns the unexpired server snapshot for exactly zone.
func (c *NSCache) Get(zone string) ([]netip.AddrPort, bool) {
	if c == nil {
		return nil, false
	}
	zone = dns.CanonicalName(zone)
	c.mu.RLock()
	e, found := c.zones[zone]
	c.mu.RUnlock()
	if !found {
		return nil, false
	}
	if !e.expires.After(time.Now()) {
		c.mu.Lock()
		delete(c.zones, zone)
		c.mu.Unlock()
		return nil, false
	}
	return slices.Clone(e.servers), true
}

// Closest returns the servers for the most specific cached zone enclosing
// name, excluding the root.
func (c *NSCache) Closest(name string) (servers []netip.AddrPort, zone string, ok bool) {
	if c == nil {
		return nil, "", false
	}
	name = dns.CanonicalName(name)
	for _, idx := range dns.Split(name) {
		if servers, ok = c.Get(name[idx:]); ok {
			return servers, name[idx:], true
		}
	}
	return nil, "", false
}

// Clear drops every zone.
func (c *NSCache) Clear() {
	if c != nil {
		c.mu.Lock()
		clear(c.zones)
		c.mu.Unlock()
	}
}

// Entries returns the number of cached zones.
func (c *NSCache) Entries() (n int) {
	if c != nil {
		c.mu.RLock()
		n = len(c.zones)
		c.mu.RUnlock()
	}
	return
}
