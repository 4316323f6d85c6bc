package stubdns

import (
	"bufio"
	"io"
	"net/netip"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/miekg/dns"
)

// HostsResolver answers address lookups from a local overlay before any
// cache or name server is consulted. A non-empty result short-circuits the
// resolve. The single-address behavior is the list-returning one capped at
// length one.
type HostsResolver interface {
	LookupAddr(name string, family Family) []netip.Addr
}

// HostsFile is a HostsResolver backed by hosts-file style entries.
type HostsFile struct {
	mu sync.RWMutex
	v4 map[string][]netip.Addr
	v6 map[string][]netip.Addr
}

func NewHostsFile() *HostsFile {
	return &HostsFile{
		v4: make(map[string][]netip.Addr),
		v6: make(map[string][]netip.Addr),
	}
}

// ParseHosts reads hosts-file syntax: one address followed by one or more
// names per line, # starts a comment. Malformed lines are skipped.
func ParseHosts(r io.Reader) *HostsFile {
	h := NewHostsFile()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			continue
		}
		for _, name := range fields[1:] {
			h.Add(name, addr)
		}
	}
	return h
}

// LoadHosts parses the hosts file at path.
func LoadHosts(path string) (*HostsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHosts(f), nil
}

// SystemHosts loads the platform hosts file, returning an empty overlay if
// it cannot be read.
func SystemHosts() *HostsFile {
	path := "/etc/hosts"
	if runtime.GOOS == "windows" {
		path = os.Getenv("SystemRoot") + `\System32\drivers\etc\hosts`
	}
	if h, err := LoadHosts(path); err == nil {
		return h
	}
	return NewHostsFile()
}

// Add inserts one address for name.
func (h *HostsFile) Add(name string, addr netip.Addr) {
	name = dns.CanonicalName(name)
	h.mu.Lock()
	defer h.mu.Unlock()
	if addr.Unmap().Is4() {
		h.v4[name] = append(h.v4[name], addr.Unmap())
	} else {
		h.v6[name] = append(h.v6[name], addr)
	}
}

// LookupAddr returns the addresses of the given family for name.
func (h *HostsFile) LookupAddr(name string, family Family) (addrs []netip.Addr) {
	name = dns.CanonicalName(name)
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch family {
	case FamilyIPv4:
		addrs = h.v4[name]
	case FamilyIPv6:
		addrs = h.v6[name]
	}
	return
}

// LookupFirst returns the first address of the given family for name.
func (h *HostsFile) LookupFirst(name string, family Family) (netip.Addr, bool) {
	if addrs := h.LookupAddr(name, family); len(addrs) > 0 {
		return addrs[0], true
	}
	return netip.Addr{}, false
}
