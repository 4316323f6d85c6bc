package stubdns

import (
	"testing"
	"time"
)

func TestCnameCacheSingleMappingPerAlias(t *testing.T) {
	c := NewCnameCache()
	c.Set("www.example.org", "one.example.org", 300)
	c.Set("www.example.org", "two.example.org", 300)
	if n := c.Entries(); n != 1 {
		t.Fatalf("Entries() = %d; want 1", n)
	}
	target, ok := c.Get("www.example.org.")
	if !ok || target != "two.example.org." {
		t.Fatalf("Get() = %q, %v; want %q, true", target, ok, "two.example.org.")
	}
}

func TestCnameCacheFollow(t *testing.T) {
	c := NewCnameCache()
	c.Set("a.example.", "b.example.", 300)
	c.Set("b.example.", "c.example.", 300)
	if got := c.Follow("a.example."); got != "c.example." {
		t.Fatalf("Follow() = %q; want %q", got, "c.example.")
	}
	if got := c.Follow("unknown.example."); got != "unknown.example." {
		t.Fatalf("Follow(unknown) = %q; want itself", got)
	}
}

func TestCnameCacheFollowBreaksCycles(t *testing.T) {
	c := NewCnameCache()
	c.Set("a.example.", "b.example.", 300)
	c.Set("b.example.", "a.example.", 300)
	got := c.Follow("a.example.")
	if got != "a.example." && got != "b.example." {
		t.Fatalf("Follow(cycle) = %q; want a bounded result", got)
	}
}

func TestCnameCacheExpiry(t *testing.T) {
	c := NewCnameCache()
	c.MaxTTL = -time.Second
	c.Set("www.example.org.", "example.org.", 300)
	if target, ok := c.Get("www.example.org."); ok {
		t.Fatalf("Get() = %q, true; want miss for expired entry", target)
	}
	if n := c.Entries(); n != 0 {
		t.Fatalf("Entries() = %d; want 0 after expired lookup", n)
	}
}

func TestCnameCacheZeroTTLNotCached(t *testing.T) {
	c := NewCnameCache()
	c.Set("www.example.org.", "example.org.", 0)
	if n := c.Entries(); n != 0 {
		t.Fatalf("Entries() = %d; want 0 for TTL 0 edge", n)
	}
}
