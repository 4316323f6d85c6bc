package stubdns

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"

	"github.com/miekg/dns"
)

// resolveAddresses resolves a hostname over the network per the configured
// family policy, trying each search list candidate until one yields
// addresses. name is the caller-written form: a trailing dot makes it the
// sole candidate, anything else is subject to search domain expansion.
// Exhausting every candidate caches and returns an UnknownHostError.
func (r *Resolver) resolveAddresses(ctx context.Context, name string, additionals []dns.RR) ([]netip.Addr, error) {
	var budget atomic.Int32
	budget.Store(int32(r.cfg.MaxQueriesPerResolve))
	var lastNoAnswer error
	for _, candidate := range searchList(name, r.cfg.SearchDomains, r.cfg.Ndots) {
		addrs, err := r.resolveCandidate(ctx, candidate, additionals, &budget)
		if err != nil {
			if isNoAnswer(err) {
				lastNoAnswer = err
				continue
			}
			return nil, err
		}
		if len(addrs) > 0 {
			return addrs, nil
		}
	}
	// a failure served from the answer cache is returned as is, so a cache
	// hit does not renew its negative TTL
	var cached *UnknownHostError
	if errors.As(lastNoAnswer, &cached) {
		return nil, cached
	}
	uhe := &UnknownHostError{Host: name, Cause: lastNoAnswer}
	r.answers.SetFailure(name, additionals, uhe)
	return nil, uhe
}

// resolveCandidate resolves one fully qualified candidate name: answer cache
// first (following cached CNAME edges), then the network for each enabled
// family. The secondary family resolves concurrently; with
// CompleteOncePreferred set the call returns on the preferred family's
// answer while the secondary keeps running to warm the cache.
func (r *Resolver) resolveCandidate(ctx context.Context, name string, additionals []dns.RR, budget *atomic.Int32) ([]netip.Addr, error) {
	families := r.cfg.AddressTypes.Families()
	target := r.cnames.Follow(name)

	if entries := r.answers.Get(target, additionals); entries != nil {
		if entries[0].Negative() {
			metricAnswerHits.Inc()
			return nil, entries[0].Cause
		}
		if addrs := addrsFromEntries(entries, families); len(addrs) > 0 {
			metricAnswerHits.Inc()
			return addrs, nil
		}
	}
	metricAnswerMisses.Inc()

	preferred := families[0]
	if len(families) == 1 {
		records, err := r.resolveFamily(ctx, target, preferred, additionals, budget)
		if err != nil {
			return nil, err
		}
		return recordAddrs(records), nil
	}

	secondary := families[1]
	secCtx := ctx
	if r.cfg.CompleteOncePreferred {
		secCtx = context.WithoutCancel(ctx)
	}
	secDone := make(chan struct{})
	var secRecords []dns.RR
	var secErr error
	go func() {
		defer close(secDone)
		secRecords, secErr = r.resolveFamily(secCtx, target, secondary, additionals, budget)
	}()

	prefRecords, prefErr := r.resolveFamily(ctx, target, preferred, additionals, budget)
	if r.cfg.CompleteOncePreferred && prefErr == nil && len(prefRecords) > 0 {
		// the secondary query keeps running into the cache
		return recordAddrs(prefRecords), nil
	}
	<-secDone

	addrs := append(recordAddrs(prefRecords), recordAddrs(secRecords)...)
	if len(addrs) > 0 {
		return addrs, nil
	}
	for _, err := range []error{prefErr, secErr} {
		if err != nil && !isNoAnswer(err) {
			return nil, err
		}
	}
	if prefErr != nil {
		return nil, prefErr
	}
	return nil, secErr
}

// resolveFamily asks for one record type and caches the terminal records
// under their owner name.
func (r *Resolver) resolveFamily(ctx context.Context, name string, family Family, additionals []dns.RR, budget *atomic.Int32) ([]dns.RR, error) {
	q := dns.Question{
		Name:   dns.CanonicalName(name),
		Qtype:  family.Qtype(),
		Qclass: dns.ClassINET,
	}
	c := r.newResolveContext(q, additionals, budget, true, r.cfg.DebugLog)
	return c.resolve(ctx)
}

func isNoAnswer(err error) bool {
	var na *noAnswerError
	return errors.As(err, &na)
}

func recordAddrs(records []dns.RR) (addrs []netip.Addr) {
	for _, rr := range records {
		if addr := AddrFromRR(rr); addr.IsValid() {
			addrs = append(addrs, addr)
		}
	}
	return
}

// addrsFromEntries orders cached addresses by family preference, preserving
// answer order within a family.
func addrsFromEntries(entries []*AnswerEntry, families []Family) (addrs []netip.Addr) {
	for _, fam := range families {
		for _, e := range entries {
			if e.Record == nil {
				continue
			}
			if addr := AddrFromRR(e.Record); addr.IsValid() && familyOf(addr) == fam {
				addrs = append(addrs, addr)
			}
		}
	}
	return
}
