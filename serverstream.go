package stubdns

import (
	"net/netip"
	"slices"
)

// ServerStream is an ordered iterator over candidate name server addresses.
// Next cycles indefinitely; callers count tries, not positions.
type ServerStream interface {
	Next() netip.AddrPort
	Size() int
}

// NameServerProvider supplies the server stream consulted for a hostname.
type NameServerProvider interface {
	ServersFor(qname string) ServerStream
}

type rotationalStream struct {
	servers []netip.AddrPort
	idx     int
}

func newRotationalStream(servers []netip.AddrPort) *rotationalStream {
	return &rotationalStream{servers: servers}
}

func (s *rotationalStream) Next() (ap netip.AddrPort) {
	if len(s.servers) > 0 {
		ap = s.servers[s.idx%len(s.servers)]
		s.idx++
	}
	return
}

func (s *rotationalStream) Size() int { return len(s.servers) }

type staticProvider struct {
	servers []netip.AddrPort
}

// NewStaticProvider returns a provider serving the same server list for
// every hostname.
func NewStaticProvider(servers ...netip.AddrPort) NameServerProvider {
	return &staticProvider{servers: slices.Clone(servers)}
}

func (p *staticProvider) ServersFor(string) ServerStream {
	return newRotationalStream(p.servers)
}

// sortByFamily orders servers so that addresses of the preferred family come
// first; within a family the original order is preserved.
func sortByFamily(servers []netip.AddrPort, preferred Family) []netip.AddrPort {
	sorted := slices.Clone(servers)
	slices.SortStableFunc(sorted, func(a, b netip.AddrPort) int {
		am := familyOf(a.Addr()) == preferred
		bm := familyOf(b.Addr()) == preferred
		switch {
		case am && !bm:
			return -1
		case bm && !am:
			return 1
		}
		return 0
	})
	return sorted
}

// drainStream materializes up to size addresses from a stream.
func drainStream(s ServerStream) []netip.AddrPort {
	n := s.Size()
	servers := make([]netip.AddrPort, 0, n)
	for i := 0; i < n; i++ {
		if ap := s.Next(); ap.IsValid() {
			servers = append(servers, normalizeAddrPort(ap))
		}
	}
	return servers
}

// streamFor builds the server stream used to start resolving qname: the
// closest cached authoritative server set if one is known, otherwise the
// provider's servers, ordered by the preferred address family.
func (r *Resolver) streamFor(qname string) ServerStream {
	if servers, _, ok := r.authns.Closest(qname); ok {
		return newRotationalStream(sortByFamily(servers, r.cfg.AddressTypes.Preferred()))
	}
	return newRotationalStream(sortByFamily(drainStream(r.provider.ServersFor(qname)), r.cfg.AddressTypes.Preferred()))
}
