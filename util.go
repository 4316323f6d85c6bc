package stubdns

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// DnsTypeToString returns the textual form of a DNS record type.
func DnsTypeToString(qtype uint16) string {
	if s, ok := dns.TypeToString[qtype]; ok {
		return s
	}
	return strconv.Itoa(int(qtype))
}

// AddrFromRR returns the address carried by an A or AAAA record, or the zero
// Addr for other record types.
func AddrFromRR(rr dns.RR) netip.Addr {
	switch v := rr.(type) {
	case *dns.A:
		if ip, ok := netip.AddrFromSlice(v.A); ok {
			return ip.Unmap()
		}
	case *dns.AAAA:
		if ip, ok := netip.AddrFromSlice(v.AAAA); ok {
			return ip
		}
	}
	return netip.Addr{}
}

// questionsEqual compares two questions by case-insensitive name, type and class.
func questionsEqual(a, b dns.Question) bool {
	return a.Qtype == b.Qtype && a.Qclass == b.Qclass &&
		strings.EqualFold(a.Name, b.Name)
}

// normalizeAddrPort unmaps 4-in-6 addresses so that the address a datagram
// was sent to and the sender address it came back from compare equal.
func normalizeAddrPort(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// matchingRecords returns the records in rrs owned by name with the wanted type.
func matchingRecords(rrs []dns.RR, name string, qtype uint16) (out []dns.RR) {
	for _, rr := range rrs {
		hdr := rr.Header()
		if hdr.Rrtype == qtype && hdr.Class == dns.ClassINET && strings.EqualFold(hdr.Name, name) {
			out = append(out, rr)
		}
	}
	return
}
