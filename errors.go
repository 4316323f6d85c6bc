package stubdns

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

const (
	maxCnameRedirects    = 16 // maximum CNAME chain length followed per resolve
	maxReferralRedirects = 16 // maximum nameserver referral depth per resolve
)

var (
	// ErrResolverClosed is returned for operations submitted after Close.
	ErrResolverClosed = errors.New("resolver is closed")
	// ErrNoMoreIDs is returned when all 65535 query ids for a server are in flight.
	ErrNoMoreIDs = errors.New("no free query id for server")
	// ErrCnameLoop is returned when a CNAME chain exceeds the allowed length.
	ErrCnameLoop = fmt.Errorf("cname chain exceeded %d redirects", maxCnameRedirects)
	// ErrRedirectLoop is returned when nameserver referrals exceed the allowed depth.
	ErrRedirectLoop = fmt.Errorf("referral chain exceeded %d redirects", maxReferralRedirects)
	// ErrQuestionMismatch is returned when a DNS response does not match what was queried.
	ErrQuestionMismatch = errors.New("question mismatch")
	// ErrNoNameServers is returned when the server stream for a name is empty.
	ErrNoNameServers = errors.New("no name servers available")
)

// UnknownHostError is returned when every search list expansion of a name
// ended in NXDOMAIN or an empty answer.
type UnknownHostError struct {
	Host  string
	Cause error
}

func (e *UnknownHostError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unknown host %q: %v", e.Host, e.Cause)
	}
	return fmt.Sprintf("unknown host %q", e.Host)
}

func (e *UnknownHostError) Unwrap() error { return e.Cause }

// BudgetExceededError is returned when a resolve ran out of its query budget.
// Cause carries the accumulated per-server failures.
type BudgetExceededError struct {
	Question dns.Question
	Budget   int
	Cause    error
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("resolving %s %q exceeded %d queries: %v",
		DnsTypeToString(e.Question.Qtype), e.Question.Name, e.Budget, e.Cause)
}

func (e *BudgetExceededError) Unwrap() error { return e.Cause }

// TimeoutError is returned when a single query got no response in time.
type TimeoutError struct {
	Server   netip.AddrPort
	Question dns.Question
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query %s %q to %s timed out after %v",
		DnsTypeToString(e.Question.Qtype), e.Question.Name, e.Server, e.After)
}

func (e *TimeoutError) Timeout() bool   { return true }
func (e *TimeoutError) Temporary() bool { return true }

// IsTimeoutError reports whether err was caused by a query timeout.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsTransportOrTimeoutError reports whether err was caused by a query timeout
// or by an I/O error talking to a name server.
func IsTransportOrTimeoutError(err error) bool {
	if IsTimeoutError(err) {
		return true
	}
	var ne *transportError
	return errors.As(err, &ne)
}

// transportError wraps an I/O failure for one server so it can be told apart
// from resolution failures when deciding whether to try the next server.
type transportError struct {
	server netip.AddrPort
	err    error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("transport error talking to %s: %v", e.server, e.err)
}

func (e *transportError) Unwrap() error { return e.err }

// noAnswerError signals NXDOMAIN or an empty answer for one search list
// candidate. It never escapes to the user; the search loop converts it into
// an UnknownHostError once all candidates are exhausted.
type noAnswerError struct {
	name  string
	rcode int
}

func (e *noAnswerError) Error() string {
	return fmt.Sprintf("no answer for %q (%s)", e.name, dns.RcodeToString[e.rcode])
}
