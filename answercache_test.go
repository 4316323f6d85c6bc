package stubdns

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func newARecord(name string, ttl uint32, ip string) dns.RR {
	return &dns.A{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   net.ParseIP(ip).To4(),
	}
}

func TestAnswerCacheAddAndGet(t *testing.T) {
	c := NewAnswerCache()
	c.AddRecord("example.org.", nil, newARecord("example.org.", 300, "192.0.2.1"))
	c.AddRecord("example.org.", nil, newARecord("example.org.", 300, "192.0.2.2"))

	entries := c.Get("example.org.", nil)
	if len(entries) != 2 {
		t.Fatalf("Get() returned %d entries; want 2", len(entries))
	}
	for _, e := range entries {
		if e.Negative() {
			t.Fatalf("entry unexpectedly negative")
		}
		expires := time.Until(e.Expires())
		if expires < 290*time.Second || expires > 310*time.Second {
			t.Fatalf("entry expires in %v; want about 300s", expires)
		}
	}
	if got := c.Get("other.org.", nil); got != nil {
		t.Fatalf("Get(missing) = %v; want nil", got)
	}
	if ratio := c.HitRatio(); ratio != 50 {
		t.Fatalf("HitRatio() = %v; want 50", ratio)
	}
}

func TestAnswerCacheZeroTTLNotCached(t *testing.T) {
	c := NewAnswerCache()
	c.AddRecord("example.org.", nil, newARecord("example.org.", 0, "192.0.2.1"))
	if entries := c.Get("example.org.", nil); entries != nil {
		t.Fatalf("Get() = %v; want nil for TTL 0 record", entries)
	}
}

func TestAnswerCacheTTLClamp(t *testing.T) {
	c := NewAnswerCache()
	c.MaxTTL = 10 * time.Second
	c.AddRecord("example.org.", nil, newARecord("example.org.", 86400, "192.0.2.1"))
	entries := c.Get("example.org.", nil)
	if len(entries) != 1 {
		t.Fatalf("Get() returned %d entries; want 1", len(entries))
	}
	if expires := time.Until(entries[0].Expires()); expires > 11*time.Second {
		t.Fatalf("entry expires in %v; want at most 10s", expires)
	}
}

func TestAnswerCacheExpiry(t *testing.T) {
	c := NewAnswerCache()
	c.MaxTTL = -time.Second
	c.AddRecord("example.org.", nil, newARecord("example.org.", 300, "192.0.2.1"))
	if entries := c.Get("example.org.", nil); entries != nil {
		t.Fatalf("Get() = %v; want nil for expired entry", entries)
	}
	if n := c.Entries(); n != 0 {
		t.Fatalf("Entries() = %d; want 0 after expired lookup", n)
	}
}

func TestAnswerCacheNegativeReplacesPositives(t *testing.T) {
	c := NewAnswerCache()
	c.AddRecord("example.org.", nil, newARecord("example.org.", 300, "192.0.2.1"))
	cause := errors.New("unknown host")
	c.SetFailure("example.org.", nil, cause)

	entries := c.Get("example.org.", nil)
	if len(entries) != 1 || !entries[0].Negative() {
		t.Fatalf("Get() = %v; want exactly one negative entry", entries)
	}
	if !errors.Is(entries[0].Cause, cause) {
		t.Fatalf("Cause = %v; want %v", entries[0].Cause, cause)
	}

	// a later positive displaces the failure
	c.AddRecord("example.org.", nil, newARecord("example.org.", 300, "192.0.2.2"))
	entries = c.Get("example.org.", nil)
	if len(entries) != 1 || entries[0].Negative() {
		t.Fatalf("Get() = %v; want one positive entry", entries)
	}
}

func TestAnswerCachePerNameCap(t *testing.T) {
	c := NewAnswerCache()
	c.MaxPerName = 4
	for i := 0; i < 8; i++ {
		c.AddRecord("example.org.", nil, newARecord("example.org.", 300, fmt.Sprintf("192.0.2.%d", i+1)))
	}
	entries := c.Get("example.org.", nil)
	if len(entries) != 4 {
		t.Fatalf("Get() returned %d entries; want 4", len(entries))
	}
	// eviction is in insertion order; the newest four remain
	if addr := AddrFromRR(entries[0].Record); addr.String() != "192.0.2.5" {
		t.Fatalf("oldest surviving entry = %v; want 192.0.2.5", addr)
	}
}

func TestAnswerCacheAdditionalsDisambiguate(t *testing.T) {
	c := NewAnswerCache()
	extra := []dns.RR{newARecord("tag.example.", 60, "203.0.113.1")}
	c.AddRecord("example.org.", nil, newARecord("example.org.", 300, "192.0.2.1"))
	c.AddRecord("example.org.", extra, newARecord("example.org.", 300, "192.0.2.2"))

	plain := c.Get("example.org.", nil)
	tagged := c.Get("example.org.", extra)
	if len(plain) != 1 || len(tagged) != 1 {
		t.Fatalf("Get() = %d, %d entries; want 1 and 1", len(plain), len(tagged))
	}
	if AddrFromRR(plain[0].Record) == AddrFromRR(tagged[0].Record) {
		t.Fatalf("additionals did not disambiguate cache keys")
	}
}

func TestAnswerCacheClear(t *testing.T) {
	c := NewAnswerCache()
	c.AddRecord("example.org.", nil, newARecord("example.org.", 300, "192.0.2.1"))
	c.SetFailure("gone.example.", nil, errors.New("nope"))
	if n := c.Entries(); n != 2 {
		t.Fatalf("Entries() = %d; want 2", n)
	}
	c.Clear()
	if n := c.Entries(); n != 0 {
		t.Fatalf("Entries() after Clear = %d; want 0", n)
	}
}
