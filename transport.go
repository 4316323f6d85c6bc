package stubdns

import (
	"errors"
	"net"
	"net/netip"

	"github.com/miekg/dns"
	"github.com/tevino/abool"
)

// transport owns the shared unconnected UDP socket. Responses from every
// upstream server arrive on the one socket and are demultiplexed through the
// id manager by (sender, id).
type transport struct {
	conn    *net.UDPConn
	ids     *idManager
	bufsize int
	closed  *abool.AtomicBool
	onClose func()
}

func newTransport(laddr *net.UDPAddr, ids *idManager, bufsize int, onClose func()) (*transport, error) {
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	t := &transport{
		conn:    conn,
		ids:     ids,
		bufsize: bufsize,
		closed:  abool.New(),
		onClose: onClose,
	}
	go t.readLoop()
	return t, nil
}

func (t *transport) send(b []byte, server netip.AddrPort) error {
	_, err := t.conn.WriteToUDPAddrPort(b, server)
	return err
}

func (t *transport) readLoop() {
	defer t.onClose()
	buf := make([]byte, t.bufsize)
	for {
		n, sender, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if t.closed.IsSet() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil {
			metricDecodeErrors.Inc()
			continue
		}
		if !msg.Response {
			continue
		}
		qc := t.ids.take(sender, msg.Id)
		if qc == nil {
			// spoofed, duplicate or late; not surfaced to any caller
			metricOrphanResponses.Inc()
			continue
		}
		qc.finish(&Envelope{Sender: normalizeAddrPort(sender), Msg: msg})
	}
}

func (t *transport) close() error {
	if !t.closed.SetToIf(false, true) {
		return nil
	}
	return t.conn.Close()
}

// localAddr returns the address the shared UDP socket is bound to.
func (t *transport) localAddr() net.Addr { return t.conn.LocalAddr() }
