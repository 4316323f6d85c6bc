package stubdns

import (
	"net/netip"

	"github.com/miekg/dns"
)

// Envelope couples a decoded DNS response with the server that sent it.
type Envelope struct {
	Sender netip.AddrPort
	Msg    *dns.Msg
}
