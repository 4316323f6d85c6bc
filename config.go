package stubdns

import (
	"io"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/proxy"
)

// Family identifies an internet protocol address family.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	}
	return "none"
}

// Qtype returns the DNS record type queried for addresses of this family.
func (f Family) Qtype() uint16 {
	if f == FamilyIPv6 {
		return dns.TypeAAAA
	}
	return dns.TypeA
}

// Loopback returns the loopback address of this family.
func (f Family) Loopback() netip.Addr {
	if f == FamilyIPv6 {
		return netip.IPv6Loopback()
	}
	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}

func familyOf(addr netip.Addr) Family {
	if addr.Unmap().Is4() {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// AddressTypes selects which address families a resolve asks for and in
// which order the results are preferred.
type AddressTypes uint8

const (
	IPv4Only AddressTypes = iota
	IPv4Preferred
	IPv6Only
	IPv6Preferred
)

func (t AddressTypes) String() string {
	switch t {
	case IPv4Only:
		return "ipv4-only"
	case IPv4Preferred:
		return "ipv4-preferred"
	case IPv6Only:
		return "ipv6-only"
	case IPv6Preferred:
		return "ipv6-preferred"
	}
	return "unknown"
}

// Families returns the enabled families in preference order.
func (t AddressTypes) Families() []Family {
	switch t {
	case IPv4Only:
		return []Family{FamilyIPv4}
	case IPv6Only:
		return []Family{FamilyIPv6}
	case IPv6Preferred:
		return []Family{FamilyIPv6, FamilyIPv4}
	}
	return []Family{FamilyIPv4, FamilyIPv6}
}

// Preferred returns the preferred family.
func (t AddressTypes) Preferred() Family {
	return t.Families()[0]
}

// DefaultAddressTypes returns IPv4Preferred unless the host only has usable
// IPv6 interface addresses.
func DefaultAddressTypes() AddressTypes {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return IPv4Preferred
	}
	var have4, have6 bool
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ipnet.IP.To4() != nil {
			have4 = true
		} else {
			have6 = true
		}
	}
	if !have4 && have6 {
		return IPv6Preferred
	}
	return IPv4Preferred
}

// Config holds the resolver settings. All fields are read-only once passed
// to New. The zero value is not usable; start from DefaultConfig.
type Config struct {
	// Servers are the upstream name servers, queried in order with those of
	// the preferred address family first. Ignored when Provider is set.
	Servers []netip.AddrPort
	// Provider supplies the name server stream per hostname. Overrides Servers.
	Provider NameServerProvider
	// QueryTimeout is the per-query timeout.
	QueryTimeout time.Duration
	// MaxQueriesPerResolve is the query budget across one resolve, including
	// CNAME chases and referral lookups.
	MaxQueriesPerResolve int
	// MaxPayloadSize is the EDNS0 advertised receive buffer size and the UDP
	// read buffer cap.
	MaxPayloadSize uint16
	// AddressTypes selects the queried families and their preference order.
	AddressTypes AddressTypes
	// RecursionDesired sets the RD bit on outgoing queries.
	RecursionDesired bool
	// OptResource controls whether an EDNS0 OPT pseudo-record is attached.
	OptResource bool
	// SearchDomains are suffixes tried on short names, see Ndots.
	SearchDomains []string
	// Ndots is the minimum number of dots in a name for it to be tried as
	// absolute before search domain expansion.
	Ndots int
	// DecodeIDN punycode-decodes domain names found in responses.
	DecodeIDN bool
	// CompleteOncePreferred finishes a resolve as soon as the preferred
	// family has an answer; the other family keeps resolving in the
	// background to warm the cache.
	CompleteOncePreferred bool
	// Hosts is consulted before any cache or network traffic for address
	// lookups. Nil uses the system hosts file.
	Hosts HostsResolver
	// Dialer opens the stream connection used to retry truncated responses.
	// Nil disables TCP fallback.
	Dialer proxy.ContextDialer
	// LocalAddr binds the shared UDP socket. Nil binds a wildcard address.
	LocalAddr *net.UDPAddr
	// MinTTL and MaxTTL clamp cache entry lifetimes.
	MinTTL time.Duration
	MaxTTL time.Duration
	// NegativeTTL bounds how long unknown-host results are cached.
	NegativeTTL time.Duration
	// AnswerCache, CnameCache and NSCache may be injected to share between
	// resolvers. Nil creates private instances.
	AnswerCache *AnswerCache
	CnameCache  *CnameCache
	NSCache     *NSCache
	// RateLimiter is read before every outgoing query when non-nil.
	RateLimiter <-chan struct{}
	// Observer is invoked for every query issued on behalf of a resolve.
	Observer ObserverFactory
	// DebugLog, if not nil, receives a per-resolve event log.
	DebugLog io.Writer
}

const (
	DefaultQueryTimeout         = 5 * time.Second
	DefaultMaxQueriesPerResolve = 8
	DefaultMaxPayloadSize       = 4096
	DefaultMaxTTL               = 24 * time.Hour
	DefaultNegativeTTL          = 30 * time.Second
	DefaultNdots                = 1
)

// DefaultConfig returns a Config with the default settings. The server list
// is left empty; set Servers or Provider before calling New.
func DefaultConfig() *Config {
	return &Config{
		QueryTimeout:         DefaultQueryTimeout,
		MaxQueriesPerResolve: DefaultMaxQueriesPerResolve,
		MaxPayloadSize:       DefaultMaxPayloadSize,
		AddressTypes:         DefaultAddressTypes(),
		RecursionDesired:     true,
		OptResource:          true,
		Ndots:                DefaultNdots,
		DecodeIDN:            true,
		Dialer:               &net.Dialer{},
		MaxTTL:               DefaultMaxTTL,
		NegativeTTL:          DefaultNegativeTTL,
	}
}
