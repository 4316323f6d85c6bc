package stubdns

import (
	"net/netip"
	"strings"
	"testing"
)

const hostsSample = `
# static entries
127.0.0.1   localhost
::1         localhost ip6-localhost
192.0.2.10  db.corp.example db
2001:db8::10 db.corp.example

bogus-line
not-an-ip   broken.example
`

func TestParseHosts(t *testing.T) {
	h := ParseHosts(strings.NewReader(hostsSample))

	v4 := h.LookupAddr("db.corp.example", FamilyIPv4)
	if len(v4) != 1 || v4[0] != netip.MustParseAddr("192.0.2.10") {
		t.Fatalf("LookupAddr(v4) = %v; want [192.0.2.10]", v4)
	}
	v6 := h.LookupAddr("db.corp.example.", FamilyIPv6)
	if len(v6) != 1 || v6[0] != netip.MustParseAddr("2001:db8::10") {
		t.Fatalf("LookupAddr(v6) = %v; want [2001:db8::10]", v6)
	}
	if got := h.LookupAddr("db", FamilyIPv4); len(got) != 1 {
		t.Fatalf("LookupAddr(alias) = %v; want one address", got)
	}
	if got := h.LookupAddr("broken.example", FamilyIPv4); got != nil {
		t.Fatalf("LookupAddr(broken) = %v; want nil", got)
	}
	if got := h.LookupAddr("localhost", FamilyIPv6); len(got) != 1 {
		t.Fatalf("LookupAddr(localhost, v6) = %v; want [::1]", got)
	}
}

func TestHostsLookupFirst(t *testing.T) {
	h := NewHostsFile()
	h.Add("multi.example", netip.MustParseAddr("192.0.2.1"))
	h.Add("multi.example", netip.MustParseAddr("192.0.2.2"))
	addr, ok := h.LookupFirst("multi.example", FamilyIPv4)
	if !ok || addr != netip.MustParseAddr("192.0.2.1") {
		t.Fatalf("LookupFirst() = %v, %v; want 192.0.2.1, true", addr, ok)
	}
	if _, ok := h.LookupFirst("multi.example", FamilyIPv6); ok {
		t.Fatalf("LookupFirst(v6) = true; want false")
	}
}

func TestHostsCaseInsensitive(t *testing.T) {
	h := NewHostsFile()
	h.Add("Mixed.Example", netip.MustParseAddr("192.0.2.1"))
	if got := h.LookupAddr("mixed.example.", FamilyIPv4); len(got) != 1 {
		t.Fatalf("LookupAddr(lowercased) = %v; want one address", got)
	}
}
