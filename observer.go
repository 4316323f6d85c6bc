package stubdns

import (
	"net/netip"

	"github.com/miekg/dns"
)

// QueryLifecycleObserver receives events for the queries issued on behalf of
// a single resolve. Implementations must be safe for concurrent use; the
// secondary family query may still be running when the resolve has returned.
type QueryLifecycleObserver interface {
	// QueryWritten is called after the query datagram was handed to the
	// transport.
	QueryWritten(server netip.AddrPort, id uint16)
	// QueryCancelled is called when the caller stopped waiting before the
	// query settled.
	QueryCancelled(queriesRemaining int)
	// QueryRedirected is called when a referral moved the resolve to a new
	// set of name servers.
	QueryRedirected(servers []netip.AddrPort)
	// QueryCNAMEd is called when the resolve moved to a CNAME target.
	QueryCNAMEd(target string)
	// QueryNoAnswer is called on NXDOMAIN or an empty answer.
	QueryNoAnswer(rcode int)
	// QueryFailed is called when a query failed with an error.
	QueryFailed(err error)
	// QuerySucceeded is called when a query produced a usable response.
	QuerySucceeded()
}

// ObserverFactory creates an observer for one question. Returning nil
// disables observation for that resolve.
type ObserverFactory func(question dns.Question) QueryLifecycleObserver

type nopObserver struct{}

func (nopObserver) QueryWritten(netip.AddrPort, uint16) {}
func (nopObserver) QueryCancelled(int)                  {}
func (nopObserver) QueryRedirected([]netip.AddrPort)    {}
func (nopObserver) QueryCNAMEd(string)                  {}
func (nopObserver) QueryNoAnswer(int)                   {}
func (nopObserver) QueryFailed(error)                   {}
func (nopObserver) QuerySucceeded()                     {}

func (r *Resolver) observerFor(q dns.Question) QueryLifecycleObserver {
	if r.cfg.Observer != nil {
		if obs := r.cfg.Observer(q); obs != nil {
			return obs
		}
	}
	return nopObserver{}
}
