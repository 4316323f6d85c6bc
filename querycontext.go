package stubdns

import (
	"context"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

const (
	statePending int32 = iota
	stateFinished
	stateTimedOut
	stateCancelled
)

// queryContext is a single outstanding question against one server. Exactly
// one of finish, timeout or cancel settles it; the id slot is released at
// settle time.
type queryContext struct {
	r        *Resolver
	server   netip.AddrPort
	question dns.Question
	req      *dns.Msg
	id       uint16
	deadline time.Time
	timer    *time.Timer
	promise  *promise[*Envelope]
	observer QueryLifecycleObserver
	state    atomic.Int32
}

func (qc *queryContext) terminal() bool {
	return qc.state.Load() != statePending
}

// query0 issues one question to one server and waits for the response. A
// context cancellation abandons the wait; the query keeps its id slot until
// its timer fires so that a late response cannot be misattributed.
func (r *Resolver) query0(ctx context.Context, server netip.AddrPort, q dns.Question, additionals []dns.RR, obs QueryLifecycleObserver) (*Envelope, error) {
	if r.closed.IsSet() {
		return nil, ErrResolverClosed
	}
	server = normalizeAddrPort(server)
	qc := &queryContext{
		r:        r,
		server:   server,
		question: q,
		promise:  newPromise[*Envelope](),
		observer: obs,
	}

	id, err := r.ids.add(server, qc)
	if err != nil {
		obs.QueryFailed(err)
		return nil, err
	}
	qc.id = id

	req := new(dns.Msg)
	req.Id = id
	req.Opcode = dns.OpcodeQuery
	req.RecursionDesired = r.cfg.RecursionDesired
	req.Question = []dns.Question{q}
	req.Extra = append(req.Extra, additionals...)
	if r.cfg.OptResource {
		opt := new(dns.OPT)
		opt.Hdr.Name = "."
		opt.Hdr.Rrtype = dns.TypeOPT
		opt.SetUDPSize(r.cfg.MaxPayloadSize)
		req.Extra = append(req.Extra, opt)
	}
	qc.req = req

	buf, err := req.Pack()
	if err != nil {
		r.ids.remove(qc)
		obs.QueryFailed(err)
		return nil, err
	}

	if r.cfg.RateLimiter != nil {
		select {
		case <-r.cfg.RateLimiter:
		case <-ctx.Done():
			r.ids.remove(qc)
			return nil, ctx.Err()
		}
	}

	qc.deadline = time.Now().Add(r.cfg.QueryTimeout)
	if err := r.transport.send(buf, server); err != nil {
		r.ids.remove(qc)
		te := &transportError{server: server, err: err}
		obs.QueryFailed(te)
		return nil, te
	}
	metricQueriesUDP.Inc()
	obs.QueryWritten(server, id)
	qc.timer = time.AfterFunc(r.cfg.QueryTimeout, qc.timeout)

	return qc.promise.wait(ctx)
}

// finish accepts or rejects an incoming response. A response whose opcode or
// question section does not match the request is dropped and the context
// keeps waiting. A truncated response is retried over TCP when a dialer is
// configured, otherwise the partial response settles the context.
func (qc *queryContext) finish(env *Envelope) {
	msg := env.Msg
	if !msg.Response || msg.Opcode != qc.req.Opcode ||
		len(msg.Question) == 0 || !questionsEqual(msg.Question[0], qc.question) {
		qc.r.ids.restore(qc)
		return
	}
	if msg.Truncated {
		metricTruncated.Inc()
		if qc.r.cfg.Dialer != nil {
			go qc.fallbackTCP(env)
			return
		}
	}
	qc.complete(env)
}

func (qc *queryContext) complete(env *Envelope) {
	if qc.state.CompareAndSwap(statePending, stateFinished) {
		if qc.timer != nil {
			qc.timer.Stop()
		}
		qc.promise.trySuccess(env)
	}
}

func (qc *queryContext) timeout() {
	if qc.state.CompareAndSwap(statePending, stateTimedOut) {
		qc.r.ids.remove(qc)
		metricTimeouts.Inc()
		qc.promise.tryFailure(&TimeoutError{
			Server:   qc.server,
			Question: qc.question,
			After:    qc.r.cfg.QueryTimeout,
		})
	}
}

func (qc *queryContext) cancel(cause error) {
	if qc.state.CompareAndSwap(statePending, stateCancelled) {
		if qc.timer != nil {
			qc.timer.Stop()
		}
		qc.r.ids.remove(qc)
		qc.promise.tryFailure(cause)
	}
}
