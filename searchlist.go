package stubdns

import (
	"strings"

	"github.com/miekg/dns"
)

// searchList returns the fully qualified candidate names tried for name, in
// order. A name with at least ndots dots is tried absolute first and then
// with each search domain appended; a shorter name is tried suffixed first
// and absolute last. A rooted name is never expanded.
func searchList(name string, searchDomains []string, ndots int) []string {
	if strings.HasSuffix(name, ".") {
		return []string{dns.CanonicalName(name)}
	}
	absolute := dns.CanonicalName(name)
	if len(searchDomains) == 0 {
		return []string{absolute}
	}
	suffixed := make([]string, 0, len(searchDomains))
	for _, sd := range searchDomains {
		sd = strings.Trim(sd, ".")
		if sd == "" {
			continue
		}
		suffixed = append(suffixed, dns.CanonicalName(name+"."+sd))
	}
	if strings.Count(name, ".") >= ndots {
		return append([]string{absolute}, suffixed...)
	}
	return append(suffixed, absolute)
}
