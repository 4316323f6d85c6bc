package stubdns

// net.Resolver-style convenience lookups built on the record resolver.

import (
	"cmp"
	"context"
	"net"
	"net/netip"
	"slices"
	"strings"

	"github.com/miekg/dns"
)

func (r *Resolver) lookupNetIP(ctx context.Context, ips []net.IP, host string, qtype uint16) ([]net.IP, error) {
	records, err := r.ResolveRecords(ctx, dns.Question{Name: host, Qtype: qtype})
	for _, rr := range records {
		switch rr := rr.(type) {
		case *dns.A:
			ips = append(ips, rr.A)
		case *dns.AAAA:
			ips = append(ips, rr.AAAA)
		}
	}
	return ips, err
}

// LookupIP looks up host for addresses of the given network, one of
// "ip", "ip4" or "ip6".
func (r *Resolver) LookupIP(ctx context.Context, network, host string) (ips []net.IP, err error) {
	if network == "ip" || network == "ip4" {
		ips, err = r.lookupNetIP(ctx, ips, host, dns.TypeA)
	}
	if network == "ip" || network == "ip6" {
		ips, err = r.lookupNetIP(ctx, ips, host, dns.TypeAAAA)
	}
	if len(ips) > 0 {
		err = nil
	}
	return
}

// LookupHost looks up host and returns its addresses as strings.
func (r *Resolver) LookupHost(ctx context.Context, host string) (addrs []string, err error) {
	var ips []net.IP
	if ips, err = r.LookupIP(ctx, "ip", host); err == nil {
		for _, ip := range ips {
			addrs = append(addrs, ip.String())
		}
	}
	return
}

// LookupNetIP looks up host and returns its addresses as netip.Addr.
func (r *Resolver) LookupNetIP(ctx context.Context, network, host string) (addrs []netip.Addr, err error) {
	var ips []net.IP
	if ips, err = r.LookupIP(ctx, network, host); err == nil {
		for _, ip := range ips {
			if addr, ok := netip.AddrFromSlice(ip); ok {
				addrs = append(addrs, addr.Unmap())
			}
		}
	}
	return
}

// LookupIPAddr looks up host and returns its addresses as net.IPAddr.
func (r *Resolver) LookupIPAddr(ctx context.Context, host string) (addrs []net.IPAddr, err error) {
	var ips []net.IP
	if ips, err = r.LookupIP(ctx, "ip", host); err == nil {
		for _, ip := range ips {
			addrs = append(addrs, net.IPAddr{IP: ip})
		}
	}
	return
}

// LookupNS looks up the name servers for name.
func (r *Resolver) LookupNS(ctx context.Context, name string) (nslist []*net.NS, err error) {
	var records []dns.RR
	if records, err = r.ResolveRecords(ctx, dns.Question{Name: name, Qtype: dns.TypeNS}); err == nil {
		for _, rr := range records {
			if ns, ok := rr.(*dns.NS); ok {
				nslist = append(nslist, &net.NS{Host: ns.Ns})
			}
		}
	}
	return
}

// LookupTXT looks up the text records for name.
func (r *Resolver) LookupTXT(ctx context.Context, name string) (txts []string, err error) {
	var records []dns.RR
	if records, err = r.ResolveRecords(ctx, dns.Question{Name: name, Qtype: dns.TypeTXT}); err == nil {
		for _, rr := range records {
			if txt, ok := rr.(*dns.TXT); ok {
				txts = append(txts, strings.Join(txt.Txt, ""))
			}
		}
	}
	return
}

// LookupMX looks up the mail exchangers for name, ordered by preference.
func (r *Resolver) LookupMX(ctx context.Context, name string) (mxs []*net.MX, err error) {
	var records []dns.RR
	if records, err = r.ResolveRecords(ctx, dns.Question{Name: name, Qtype: dns.TypeMX}); err == nil {
		for _, rr := range records {
			if mx, ok := rr.(*dns.MX); ok {
				mxs = append(mxs, &net.MX{Host: mx.Mx, Pref: mx.Preference})
			}
		}
		slices.SortStableFunc(mxs, func(a, b *net.MX) int { return cmp.Compare(a.Pref, b.Pref) })
	}
	return
}

// LookupAddr performs a reverse lookup for addr, returning the names found.
func (r *Resolver) LookupAddr(ctx context.Context, addr string) (names []string, err error) {
	rev, err := dns.ReverseAddr(addr)
	if err != nil {
		return nil, err
	}
	var records []dns.RR
	if records, err = r.ResolveRecords(ctx, dns.Question{Name: rev, Qtype: dns.TypePTR}); err == nil {
		for _, rr := range records {
			if ptr, ok := rr.(*dns.PTR); ok {
				names = append(names, ptr.Ptr)
			}
		}
	}
	return
}

// LookupSRV looks up the SRV records for the given service, protocol and
// domain, as in net.Resolver.
func (r *Resolver) LookupSRV(ctx context.Context, service, proto, name string) (cname string, srvs []*net.SRV, err error) {
	target := name
	if service != "" || proto != "" {
		target = "_" + service + "._" + proto + "." + name
	}
	var records []dns.RR
	if records, err = r.ResolveRecords(ctx, dns.Question{Name: target, Qtype: dns.TypeSRV}); err == nil {
		for _, rr := range records {
			if srv, ok := rr.(*dns.SRV); ok {
				cname = srv.Hdr.Name
				srvs = append(srvs, &net.SRV{
					Target:   srv.Target,
					Port:     srv.Port,
					Priority: srv.Priority,
					Weight:   srv.Weight,
				})
			}
		}
	}
	return
}
