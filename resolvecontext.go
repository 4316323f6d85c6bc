package stubdns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
)

// resolveContext drives one question to a terminal answer: it iterates the
// server stream, follows CNAME chains and nameserver referrals, and charges
// every query against the shared budget.
type resolveContext struct {
	r            *Resolver
	question     dns.Question
	additionals  []dns.RR
	budget       *atomic.Int32
	redirects    int
	cnames       int
	cacheAnswers bool
	observer     QueryLifecycleObserver
	causes       *multierror.Error
	logw         io.Writer
	start        time.Time
}

func (r *Resolver) newResolveContext(q dns.Question, additionals []dns.RR, budget *atomic.Int32, cacheAnswers bool, logw io.Writer) *resolveContext {
	return &resolveContext{
		r:            r,
		question:     q,
		additionals:  additionals,
		budget:       budget,
		cacheAnswers: cacheAnswers,
		observer:     r.observerFor(q),
		logw:         logw,
		start:        time.Now(),
	}
}

func (c *resolveContext) dbg() bool { return c.logw != nil }

func (c *resolveContext) log(format string, args ...any) bool {
	fmt.Fprintf(c.logw, "[%-5d] ", time.Since(c.start).Milliseconds())
	fmt.Fprintf(c.logw, format, args...)
	return false
}

// resolve returns the records answering the context's question. The
// question's Name is updated as CNAME edges are followed, so on return it
// holds the owner name of the returned records.
func (c *resolveContext) resolve(ctx context.Context) ([]dns.RR, error) {
	stream := c.r.streamFor(c.question.Name)
	for {
		if stream.Size() == 0 {
			return nil, c.failure(ErrNoNameServers)
		}
		if c.budget.Load() <= 0 {
			err := &BudgetExceededError{
				Question: c.question,
				Budget:   c.r.cfg.MaxQueriesPerResolve,
				Cause:    c.causes.ErrorOrNil(),
			}
			c.observer.QueryFailed(err)
			return nil, err
		}
		server := stream.Next()
		c.budget.Add(-1)

		_ = c.dbg() && c.log("QUERY @%v %s %q\n", server, DnsTypeToString(c.question.Qtype), c.question.Name)
		env, err := c.r.query0(ctx, server, c.question, c.additionals, c.observer)
		if err != nil {
			if ctx.Err() != nil {
				c.observer.QueryCancelled(int(c.budget.Load()))
				return nil, ctx.Err()
			}
			if errors.Is(err, ErrResolverClosed) {
				return nil, err
			}
			c.causes = multierror.Append(c.causes, err)
			_ = c.dbg() && c.log("FAILED @%v: %v\n", server, err)
			if errors.Is(err, ErrNoMoreIDs) {
				time.Sleep(time.Duration(1+rand.Intn(20)) * time.Millisecond) // #nosec G404
			}
			continue
		}

		msg := env.Msg
		switch msg.Rcode {
		case dns.RcodeSuccess:
			if records, done, err := c.onSuccess(ctx, env, &stream); done {
				return records, err
			}
		case dns.RcodeNameError:
			_ = c.dbg() && c.log("NXDOMAIN @%v for %q\n", env.Sender, c.question.Name)
			c.observer.QueryNoAnswer(msg.Rcode)
			return nil, &noAnswerError{name: c.question.Name, rcode: msg.Rcode}
		case dns.RcodeServerFailure:
			_ = c.dbg() && c.log("SERVFAIL @%v for %q\n", env.Sender, c.question.Name)
			c.causes = multierror.Append(c.causes, fmt.Errorf("%v answered SERVFAIL for %q", env.Sender, c.question.Name))
		default:
			_ = c.dbg() && c.log("%s @%v for %q\n", dns.RcodeToString[msg.Rcode], env.Sender, c.question.Name)
			c.causes = multierror.Append(c.causes, fmt.Errorf("%v answered %s for %q",
				env.Sender, dns.RcodeToString[msg.Rcode], c.question.Name))
		}
	}
}

// onSuccess handles a NOERROR response: terminal records, in-message or
// cross-message CNAME edges, referrals, or an empty answer. done is false
// when the loop should continue with the (possibly replaced) stream.
func (c *resolveContext) onSuccess(ctx context.Context, env *Envelope, stream *ServerStream) (records []dns.RR, done bool, err error) {
	msg := env.Msg
	name := dns.CanonicalName(c.question.Name)

	// Walk CNAME edges inside this message; a recursive upstream often
	// returns the whole chain plus the terminal records in one response.
	for {
		if ans := matchingRecords(msg.Answer, name, c.question.Qtype); len(ans) > 0 {
			c.question.Name = name
			if c.cacheAnswers {
				for _, rr := range ans {
					c.r.answers.AddRecord(name, c.additionals, rr)
				}
			}
			c.observer.QuerySucceeded()
			_ = c.dbg() && c.log("ANSWER %q with %d records\n", name, len(ans))
			return ans, true, nil
		}
		cn := findCname(msg.Answer, name)
		if cn == nil || c.question.Qtype == dns.TypeCNAME {
			break
		}
		target := dns.CanonicalName(cn.Target)
		c.r.cnames.Set(name, target, cn.Hdr.Ttl)
		c.cnames++
		if c.cnames > maxCnameRedirects {
			return nil, true, c.failure(ErrCnameLoop)
		}
		c.observer.QueryCNAMEd(target)
		_ = c.dbg() && c.log("CNAME %q => %q\n", name, target)
		name = target
	}

	if name != dns.CanonicalName(c.question.Name) {
		// Chain left this message; requery for the target.
		c.question.Name = name
		*stream = c.r.streamFor(name)
		return nil, false, nil
	}

	if servers, zone, ok := c.referral(ctx, msg); ok {
		c.redirects++
		if c.redirects > maxReferralRedirects {
			return nil, true, c.failure(ErrRedirectLoop)
		}
		c.observer.QueryRedirected(servers)
		_ = c.dbg() && c.log("REFERRAL for %q to zone %q: %v\n", name, zone, servers)
		*stream = newRotationalStream(sortByFamily(servers, c.r.cfg.AddressTypes.Preferred()))
		return nil, false, nil
	}

	c.observer.QueryNoAnswer(msg.Rcode)
	_ = c.dbg() && c.log("EMPTY answer for %q\n", name)
	return nil, true, &noAnswerError{name: name, rcode: msg.Rcode}
}

func (c *resolveContext) failure(err error) error {
	if cause := c.causes.ErrorOrNil(); cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	c.observer.QueryFailed(err)
	return err
}

// referral extracts a delegation from the authority section. In-bailiwick
// glue from the additional section is used directly; glueless NS targets are
// resolved against the remaining budget, first target to yield an address
// set wins.
func (c *resolveContext) referral(ctx context.Context, msg *dns.Msg) (servers []netip.AddrPort, zone string, ok bool) {
	var targets []string
	for _, rr := range msg.Ns {
		ns, isNS := rr.(*dns.NS)
		if !isNS {
			continue
		}
		owner := dns.CanonicalName(ns.Hdr.Name)
		if !dns.IsSubDomain(owner, c.question.Name) {
			continue
		}
		if zone == "" {
			zone = owner
		}
		if owner == zone {
			targets = append(targets, dns.CanonicalName(ns.Ns))
		}
	}
	if len(targets) == 0 {
		return nil, "", false
	}

	var ttl uint32
	for _, rr := range msg.Ns {
		if ns, isNS := rr.(*dns.NS); isNS && dns.CanonicalName(ns.Hdr.Name) == zone {
			ttl = ns.Hdr.Ttl
			break
		}
	}

	// glue; only in-bailiwick addresses count
	for _, rr := range msg.Extra {
		addr := AddrFromRR(rr)
		if !addr.IsValid() {
			continue
		}
		owner := dns.CanonicalName(rr.Header().Name)
		if !dns.IsSubDomain(zone, owner) {
			continue
		}
		for _, target := range targets {
			if owner == target {
				servers = append(servers, netip.AddrPortFrom(addr, dnsPort))
				break
			}
		}
	}

	if len(servers) == 0 {
		servers = c.resolveGlueless(ctx, targets)
		if len(servers) == 0 {
			return nil, "", false
		}
	}
	c.r.authns.Set(zone, ttl, servers...)
	return servers, zone, true
}

func (c *resolveContext) resolveGlueless(ctx context.Context, targets []string) (servers []netip.AddrPort) {
	for _, target := range targets {
		if c.budget.Load() <= 0 {
			return
		}
		q := dns.Question{
			Name:   target,
			Qtype:  c.r.cfg.AddressTypes.Preferred().Qtype(),
			Qclass: dns.ClassINET,
		}
		child := c.r.newResolveContext(q, nil, c.budget, true, c.logw)
		child.redirects = c.redirects + 1
		records, err := child.resolve(ctx)
		if err != nil {
			c.causes = multierror.Append(c.causes, err)
			continue
		}
		for _, rr := range records {
			if addr := AddrFromRR(rr); addr.IsValid() {
				servers = append(servers, netip.AddrPortFrom(addr, dnsPort))
			}
		}
		if len(servers) > 0 {
			return
		}
	}
	return
}

func findCname(rrs []dns.RR, name string) *dns.CNAME {
	for _, rr := range rrs {
		if cn, ok := rr.(*dns.CNAME); ok && dns.CanonicalName(cn.Hdr.Name) == name {
			return cn
		}
	}
	return nil
}
