package stubdns

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// defaultMaxPerName caps how many entries one name may hold; inserting past
// the cap evicts in insertion order.
const defaultMaxPerName = 64

// AnswerEntry is one cached record, or the cached failure, for a name.
// Exactly one of Record and Cause is set.
type AnswerEntry struct {
	Record  dns.RR
	Cause   error
	expires time.Time
}

// Negative reports whether the entry caches a failure.
func (e *AnswerEntry) Negative() bool { return e.Cause != nil }

// Expires returns when the entry becomes invisible.
func (e *AnswerEntry) Expires() time.Time { return e.expires }

// AnswerCache caches resolved records per name. A name holds either one
// negative entry or any number of positive entries, never both.
type AnswerCache struct {
	MinTTL      time.Duration
	MaxTTL      time.Duration
	NegativeTTL time.Duration
	MaxPerName  int

	count atomic.Uint64
	hits  atomic.Uint64
	mu    sync.RWMutex
	names map[string][]*AnswerEntry
}

func NewAnswerCache() *AnswerCache {
	return &AnswerCache{
		MaxTTL:      DefaultMaxTTL,
		NegativeTTL: DefaultNegativeTTL,
		MaxPerName:  defaultMaxPerName,
		names:       make(map[string][]*AnswerEntry),
	}
}

// answerKey disambiguates by the caller-supplied additional records so that
// questions with different additionals do not share entries. The OPT
// pseudo-record the resolver attaches itself is not part of the key.
func answerKey(name string, additionals []dns.RR) string {
	key := dns.CanonicalName(name)
	for _, rr := range additionals {
		if rr.Header().Rrtype != dns.TypeOPT {
			key += "\x00" + rr.String()
		}
	}
	return key
}

// Get returns the unexpired entries for name, or nil.
func (c *AnswerCache) Get(name string, additionals []dns.RR) []*AnswerEntry {
	if c == nil {
		return nil
	}
	key := answerKey(name, additionals)
	now := time.Now()
	c.mu.RLock()
	entries := c.names[key]
	c.mu.RUnlock()
	c.count.Add(1)
	var live []*AnswerEntry
	for _, e := range entries {
		if e.expires.After(now) {
			live = append(live, e)
		}
	}
	if live == nil {
		if entries != nil {
			c.mu.Lock()
			delete(c.names, key)
			c.mu.Unlock()
		}
		return nil
	}
	c.hits.Add(1)
	return live
}

// AddRecord inserts one positive record for name, displacing a cached
// failure if present. Records with TTL 0 are not cached.
func (c *AnswerCache) AddRecord(name string, additionals []dns.RR, rr dns.RR) {
	if c == nil || rr.Header().Ttl == 0 {
		return
	}
	entry := &AnswerEntry{
		Record:  rr,
		expires: expiryFor(rr.Header().Ttl, c.MinTTL, c.MaxTTL),
	}
	key := answerKey(name, additionals)
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.names[key]
	if len(entries) == 1 && entries[0].Negative() {
		entries = nil
	}
	entries = append(entries, entry)
	if max := c.MaxPerName; max > 0 && len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	c.names[key] = entries
}

// SetFailure replaces every entry for name with a single negative entry.
func (c *AnswerCache) SetFailure(name string, additionals []dns.RR, cause error) {
	if c == nil || c.NegativeTTL <= 0 {
		return
	}
	entry := &AnswerEntry{
		Cause:   cause,
		expires: time.Now().Add(c.NegativeTTL),
	}
	key := answerKey(name, additionals)
	c.mu.Lock()
	c.names[key] = []*AnswerEntry{entry}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *AnswerCache) Clear() {
	if c != nil {
		c.mu.Lock()
		clear(c.names)
		c.mu.Unlock()
	}
}

// Entries returns the number of cached names.
func (c *AnswerCache) Entries() (n int) {
	if c != nil {
		c.mu.RLock()
		n = len(c.names)
		c.mu.RUnlock()
	}
	return
}

// HitRatio returns the hit ratio as a percentage.
func (c *AnswerCache) HitRatio() float64 {
	if c != nil {
		if count := c.count.Load(); count > 0 {
			return float64(c.hits.Load()*100) / float64(count)
		}
	}
	return 0
}
