// Package stubdns implements a recursive-capable DNS stub resolver. It
// translates host names into addresses or arbitrary resource records by
// querying a configured set of name servers over a shared UDP socket,
// following CNAME chains and nameserver referrals, retrying truncated
// responses over TCP, honoring a hosts-file overlay and search domains, and
// caching positive and negative answers.
package stubdns

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/miekg/dns"
	"github.com/tevino/abool"
	"golang.org/x/net/idna"
)

// Resolver owns the shared UDP socket, the three caches and the configured
// policy. Create with New; Close releases the socket and clears the caches.
type Resolver struct {
	cfg       Config
	provider  NameServerProvider
	ids       *idManager
	transport *transport
	answers   *AnswerCache
	cnames    *CnameCache
	authns    *NSCache
	hosts     HostsResolver
	closed    *abool.AtomicBool

	qmu         sync.Mutex
	queryStream ServerStream
}

// New returns a Resolver for the given configuration. A nil cfg uses
// DefaultConfig, which has no name servers, so New(nil) returns an error;
// callers pass a Config with Servers or Provider populated.
func New(cfg *Config) (*Resolver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cc := *cfg
	if cc.QueryTimeout <= 0 {
		cc.QueryTimeout = DefaultQueryTimeout
	}
	if cc.MaxQueriesPerResolve <= 0 {
		cc.MaxQueriesPerResolve = DefaultMaxQueriesPerResolve
	}
	if cc.MaxPayloadSize < dns.MinMsgSize {
		cc.MaxPayloadSize = DefaultMaxPayloadSize
	}

	provider := cc.Provider
	if provider == nil {
		if len(cc.Servers) == 0 {
			return nil, errors.New("no name servers configured")
		}
		provider = NewStaticProvider(cc.Servers...)
	}

	hosts := cc.Hosts
	if hosts == nil {
		hosts = SystemHosts()
	}

	answers := cc.AnswerCache
	if answers == nil {
		answers = NewAnswerCache()
		answers.MinTTL = cc.MinTTL
		answers.MaxTTL = cc.MaxTTL
		answers.NegativeTTL = cc.NegativeTTL
	}
	cnames := cc.CnameCache
	if cnames == nil {
		cnames = NewCnameCache()
		cnames.MinTTL = cc.MinTTL
		cnames.MaxTTL = cc.MaxTTL
	}
	authns := cc.NSCache
	if authns == nil {
		authns = NewNSCache()
		authns.MinTTL = cc.MinTTL
		authns.MaxTTL = cc.MaxTTL
	}

	r := &Resolver{
		cfg:      cc,
		provider: provider,
		ids:      newIDManager(),
		answers:  answers,
		cnames:   cnames,
		authns:   authns,
		hosts:    hosts,
		closed:   abool.New(),
	}
	t, err := newTransport(cc.LocalAddr, r.ids, int(cc.MaxPayloadSize), r.clearCaches)
	if err != nil {
		return nil, err
	}
	r.transport = t
	return r, nil
}

func (r *Resolver) clearCaches() {
	r.answers.Clear()
	r.cnames.Clear()
	r.authns.Clear()
}

// Close closes the shared UDP socket, fails the in-flight queries and clears
// the caches. Operations submitted after Close fail with ErrResolverClosed.
func (r *Resolver) Close() error {
	if !r.closed.SetToIf(false, true) {
		return nil
	}
	err := r.transport.close()
	for _, qc := range r.ids.drain() {
		qc.cancel(ErrResolverClosed)
	}
	r.clearCaches()
	return err
}

// AnswerCache returns the answer cache in use.
func (r *Resolver) AnswerCache() *AnswerCache { return r.answers }

// CnameCache returns the CNAME cache in use.
func (r *Resolver) CnameCache() *CnameCache { return r.cnames }

// NSCache returns the authoritative nameserver cache in use.
func (r *Resolver) NSCache() *NSCache { return r.authns }

// LocalAddr returns the local address of the shared UDP socket.
func (r *Resolver) LocalAddr() net.Addr { return r.transport.localAddr() }

// Resolve returns the first address of the preferred family for name, or
// the first resolved address when the preferred family yielded none.
func (r *Resolver) Resolve(ctx context.Context, name string, additionals ...dns.RR) (netip.Addr, error) {
	addrs, err := r.ResolveAll(ctx, name, additionals...)
	if err != nil {
		return netip.Addr{}, err
	}
	preferred := r.cfg.AddressTypes.Preferred()
	for _, addr := range addrs {
		if familyOf(addr) == preferred {
			return addr, nil
		}
	}
	return addrs[0], nil
}

// ResolveAll returns every address for name in every enabled family,
// ordered by family preference and then answer order. The hosts-file
// overlay is consulted before any cache or network traffic; an empty name
// and "localhost" yield loopback addresses, and a literal IP is returned
// directly.
func (r *Resolver) ResolveAll(ctx context.Context, name string, additionals ...dns.RR) ([]netip.Addr, error) {
	if r.closed.IsSet() {
		return nil, ErrResolverClosed
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(strings.TrimSuffix(name, "."), "localhost") {
		return r.loopbacks(), nil
	}
	if addr, err := netip.ParseAddr(name); err == nil {
		return []netip.Addr{addr.Unmap()}, nil
	}
	ascii := name
	if a, err := idna.Lookup.ToASCII(name); err == nil && a != "" {
		ascii = a
	}
	if addrs := r.hostsLookup(ascii); len(addrs) > 0 {
		metricHostsHits.Inc()
		return addrs, nil
	}
	// resolveAddresses gets the name as the caller wrote it: only an
	// explicit trailing dot suppresses search domain expansion.
	return r.resolveAddresses(ctx, ascii, additionals)
}

// ResolveRecords resolves the records answering an arbitrary question,
// following CNAME chains and referrals. The hosts-file overlay and the
// answer cache are not consulted for generic record questions, and the
// question name is taken as given without search domain expansion.
func (r *Resolver) ResolveRecords(ctx context.Context, question dns.Question, additionals ...dns.RR) ([]dns.RR, error) {
	if r.closed.IsSet() {
		return nil, ErrResolverClosed
	}
	if question.Qclass == 0 {
		question.Qclass = dns.ClassINET
	}
	if a, err := idna.Lookup.ToASCII(question.Name); err == nil && a != "" {
		question.Name = a
	}
	question.Name = dns.CanonicalName(question.Name)

	var budget atomic.Int32
	budget.Store(int32(r.cfg.MaxQueriesPerResolve))
	c := r.newResolveContext(question, additionals, &budget, false, r.cfg.DebugLog)
	records, err := c.resolve(ctx)
	if err != nil {
		if isNoAnswer(err) {
			return nil, &UnknownHostError{Host: question.Name, Cause: err}
		}
		return nil, err
	}
	if r.cfg.DecodeIDN {
		records = decodeRecordNames(records)
	}
	return records, nil
}

// Query sends a single one-shot question to the next name server from the
// provider, bypassing every cache and all CNAME and referral handling.
func (r *Resolver) Query(ctx context.Context, question dns.Question, additionals ...dns.RR) (*Envelope, error) {
	return r.QueryServer(ctx, r.nextQueryServer(), question, additionals...)
}

// QueryServer is Query against a caller-chosen server.
func (r *Resolver) QueryServer(ctx context.Context, server netip.AddrPort, question dns.Question, additionals ...dns.RR) (*Envelope, error) {
	if r.closed.IsSet() {
		return nil, ErrResolverClosed
	}
	if question.Qclass == 0 {
		question.Qclass = dns.ClassINET
	}
	question.Name = dns.CanonicalName(question.Name)
	obs := r.observerFor(question)
	env, err := r.query0(ctx, server, question, additionals, obs)
	if err != nil {
		return nil, err
	}
	obs.QuerySucceeded()
	return env, nil
}

// nextQueryServer round-robins over the provider's servers; the stream is
// per-resolver state shared by every Query call.
func (r *Resolver) nextQueryServer() netip.AddrPort {
	r.qmu.Lock()
	defer r.qmu.Unlock()
	if r.queryStream == nil || r.queryStream.Size() == 0 {
		r.queryStream = r.provider.ServersFor(".")
	}
	return normalizeAddrPort(r.queryStream.Next())
}

func (r *Resolver) loopbacks() (addrs []netip.Addr) {
	for _, fam := range r.cfg.AddressTypes.Families() {
		addrs = append(addrs, fam.Loopback())
	}
	return
}

func (r *Resolver) hostsLookup(name string) (addrs []netip.Addr) {
	if r.hosts == nil {
		return nil
	}
	for _, fam := range r.cfg.AddressTypes.Families() {
		addrs = append(addrs, r.hosts.LookupAddr(name, fam)...)
	}
	return
}

func decodeRecordNames(records []dns.RR) []dns.RR {
	out := make([]dns.RR, len(records))
	for i, rr := range records {
		if uni, err := idna.ToUnicode(rr.Header().Name); err == nil && uni != rr.Header().Name {
			rr = dns.Copy(rr)
			rr.Header().Name = uni
		}
		out[i] = rr
	}
	return out
}
