package stubdns

import (
	"net"
	"net/netip"
	"testing"

	"github.com/miekg/dns"
)

func TestDnsTypeToString(t *testing.T) {
	if got := DnsTypeToString(dns.TypeA); got != "A" {
		t.Errorf("DnsTypeToString(TypeA) = %q; want %q", got, "A")
	}
	if got := DnsTypeToString(9999); got != "9999" {
		t.Errorf("DnsTypeToString(9999) = %q; want %q", got, "9999")
	}
}

func TestAddrFromRR(t *testing.T) {
	ipv4 := net.ParseIP("192.0.2.1").To4()
	rrA := &dns.A{Hdr: dns.RR_Header{Name: "example.org.", Rrtype: dns.TypeA, Class: dns.ClassINET}, A: ipv4}
	if got := AddrFromRR(rrA); got != netip.MustParseAddr("192.0.2.1") {
		t.Errorf("AddrFromRR(A) = %v; want %v", got, "192.0.2.1")
	}
	ipv6 := net.ParseIP("2001:db8::1")
	rrAAAA := &dns.AAAA{Hdr: dns.RR_Header{Name: "example.org.", Rrtype: dns.TypeAAAA, Class: dns.ClassINET}, AAAA: ipv6}
	if got := AddrFromRR(rrAAAA); got != netip.MustParseAddr("2001:db8::1") {
		t.Errorf("AddrFromRR(AAAA) = %v; want %v", got, "2001:db8::1")
	}
	rrNS := &dns.NS{Hdr: dns.RR_Header{Name: "example.org.", Rrtype: dns.TypeNS, Class: dns.ClassINET}, Ns: "ns.example.org."}
	if got := AddrFromRR(rrNS); got.IsValid() {
		t.Errorf("AddrFromRR(NS) = %v; want invalid", got)
	}
}

func TestQuestionsEqual(t *testing.T) {
	a := dns.Question{Name: "Example.ORG.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	b := dns.Question{Name: "example.org.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	if !questionsEqual(a, b) {
		t.Errorf("questionsEqual() = false for case-differing names")
	}
	b.Qtype = dns.TypeAAAA
	if questionsEqual(a, b) {
		t.Errorf("questionsEqual() = true for differing types")
	}
}

func TestNormalizeAddrPort(t *testing.T) {
	mapped := netip.MustParseAddrPort("[::ffff:192.0.2.1]:53")
	want := netip.MustParseAddrPort("192.0.2.1:53")
	if got := normalizeAddrPort(mapped); got != want {
		t.Errorf("normalizeAddrPort() = %v; want %v", got, want)
	}
}

func TestMatchingRecords(t *testing.T) {
	rrs := []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "Example.org.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.1").To4()},
		&dns.A{Hdr: dns.RR_Header{Name: "other.org.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.2").To4()},
		&dns.CNAME{Hdr: dns.RR_Header{Name: "example.org.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60}, Target: "target.org."},
	}
	got := matchingRecords(rrs, "example.org.", dns.TypeA)
	if len(got) != 1 {
		t.Fatalf("matchingRecords() returned %d records; want 1", len(got))
	}
	if cn := findCname(rrs, "example.org."); cn == nil || cn.Target != "target.org." {
		t.Errorf("findCname() = %v; want the CNAME to target.org.", cn)
	}
}
