package dnstest

import (
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestServer(t *testing.T) {
	rr, err := dns.NewRR("example.org. 60 IN A 127.0.0.1")
	if err != nil {
		t.Fatalf("NewRR: %v", err)
	}
	respMsg := &dns.Msg{Answer: []dns.RR{rr}}

	srv, err := NewServer("127.0.0.1:0", map[string]*Response{
		Key("example.org.", dns.TypeA):      {Msg: respMsg},
		Key("nxdomain.example.", dns.TypeA): {Rcode: dns.RcodeNameError},
		Key("bad.example.", dns.TypeA):      {Raw: []byte{0, 1, 2, 3}},
		Key("timeout.example.", dns.TypeA):  {Drop: true},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	c := dns.Client{Net: "udp"}
	req := new(dns.Msg)
	req.SetQuestion("example.org.", dns.TypeA)
	in, _, err := c.Exchange(req, srv.Addr)
	if err != nil {
		t.Fatalf("udp exchange: %v", err)
	}
	if len(in.Answer) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(in.Answer))
	}

	c.Net = "tcp"
	in, _, err = c.Exchange(req, srv.Addr)
	if err != nil {
		t.Fatalf("tcp exchange: %v", err)
	}
	if len(in.Answer) != 1 {
		t.Fatalf("expected 1 tcp answer, got %d", len(in.Answer))
	}

	c.Net = "udp"
	req.SetQuestion("nxdomain.example.", dns.TypeA)
	in, _, err = c.Exchange(req, srv.Addr)
	if err != nil {
		t.Fatalf("nxdomain exchange: %v", err)
	}
	if in.Rcode != dns.RcodeNameError {
		t.Fatalf("expected NXDOMAIN, got %d", in.Rcode)
	}

	req.SetQuestion("bad.example.", dns.TypeA)
	_, _, err = c.Exchange(req, srv.Addr)
	if err == nil {
		t.Fatalf("expected error for bad response")
	}

	c.ReadTimeout = time.Millisecond
	req.SetQuestion("timeout.example.", dns.TypeA)
	_, _, err = c.Exchange(req, srv.Addr)
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "timeout") {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestServerTruncationAndCounters(t *testing.T) {
	rr1, _ := dns.NewRR("big.example. 60 IN A 192.0.2.1")
	rr2, _ := dns.NewRR("big.example. 60 IN A 192.0.2.2")
	rr3, _ := dns.NewRR("big.example. 60 IN A 192.0.2.3")
	key := Key("big.example.", dns.TypeA)

	srv, err := NewServer("127.0.0.1:0", map[string]*Response{
		key: {Msg: &dns.Msg{Answer: []dns.RR{rr1, rr2, rr3}}, TruncateUDP: 1},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	req := new(dns.Msg)
	req.SetQuestion("big.example.", dns.TypeA)

	c := dns.Client{Net: "udp"}
	in, _, err := c.Exchange(req, srv.Addr)
	if err != nil {
		t.Fatalf("udp exchange: %v", err)
	}
	if !in.Truncated || len(in.Answer) != 1 {
		t.Fatalf("udp answer truncated=%v answers=%d; want true, 1", in.Truncated, len(in.Answer))
	}

	c.Net = "tcp"
	in, _, err = c.Exchange(req, srv.Addr)
	if err != nil {
		t.Fatalf("tcp exchange: %v", err)
	}
	if in.Truncated || len(in.Answer) != 3 {
		t.Fatalf("tcp answer truncated=%v answers=%d; want false, 3", in.Truncated, len(in.Answer))
	}

	if n := srv.Queries(key); n != 2 {
		t.Fatalf("Queries(%q) = %d; want 2", key, n)
	}
	if n := srv.TotalQueries(); n != 2 {
		t.Fatalf("TotalQueries() = %d; want 2", n)
	}
}
