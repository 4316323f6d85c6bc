package stubdns

import (
	"context"

	"github.com/miekg/dns"
)

// fallbackTCP reissues the question over a one-shot stream connection to the
// same server and settles the context with the full response. If the stream
// attempt fails in any way the original truncated response is used instead.
func (qc *queryContext) fallbackTCP(truncated *Envelope) {
	env, err := qc.exchangeTCP()
	if err != nil || env == nil {
		qc.complete(truncated)
		return
	}
	qc.complete(env)
}

func (qc *queryContext) exchangeTCP() (*Envelope, error) {
	ctx, cancel := context.WithDeadline(context.Background(), qc.deadline)
	defer cancel()

	network := "tcp4"
	if qc.server.Addr().Is6() {
		network = "tcp6"
	}
	nconn, err := qc.r.cfg.Dialer.DialContext(ctx, network, qc.server.String())
	if err != nil {
		return nil, &transportError{server: qc.server, err: err}
	}
	dnsconn := &dns.Conn{Conn: nconn}
	defer dnsconn.Close()
	_ = nconn.SetDeadline(qc.deadline)

	metricQueriesTCP.Inc()
	if err := dnsconn.WriteMsg(qc.req); err != nil {
		return nil, &transportError{server: qc.server, err: err}
	}
	msg, err := dnsconn.ReadMsg()
	if err != nil {
		return nil, &transportError{server: qc.server, err: err}
	}
	if len(msg.Question) == 0 || !questionsEqual(msg.Question[0], qc.question) {
		return nil, ErrQuestionMismatch
	}
	return &Envelope{Sender: qc.server, Msg: msg}, nil
}
