package stubdns

import (
	"net/netip"
	"sync"
)

type idKey struct {
	server netip.AddrPort
	id     uint16
}

// idManager hands out 16-bit query ids per name server address and holds the
// in-flight query contexts keyed by (server, id). A response matching a key
// settles at most once: take removes the context from the table.
type idManager struct {
	mu       sync.Mutex
	inflight map[idKey]*queryContext
	next     map[netip.AddrPort]uint16
}

func newIDManager() *idManager {
	return &idManager{
		inflight: make(map[idKey]*queryContext),
		next:     make(map[netip.AddrPort]uint16),
	}
}

// add stores qc under an id unused for server and returns the id. The first
// id tried on a fresh server is 1; id 0 is never used. Returns ErrNoMoreIDs
// when all 65535 ids for server are in flight.
func (m *idManager) add(server netip.AddrPort, qc *queryContext) (uint16, error) {
	server = normalizeAddrPort(server)
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next[server]
	if id == 0 {
		id = 1
	}
	for tries := 0; tries < 65535; tries++ {
		key := idKey{server: server, id: id}
		if _, busy := m.inflight[key]; !busy {
			m.inflight[key] = qc
			next := id + 1
			if next == 0 {
				next = 1
			}
			m.next[server] = next
			return id, nil
		}
		id++
		if id == 0 {
			id = 1
		}
	}
	return 0, ErrNoMoreIDs
}

// take removes and returns the context stored under (server, id), or nil.
func (m *idManager) take(server netip.AddrPort, id uint16) *queryContext {
	key := idKey{server: normalizeAddrPort(server), id: id}
	m.mu.Lock()
	defer m.mu.Unlock()
	qc := m.inflight[key]
	if qc != nil {
		delete(m.inflight, key)
	}
	return qc
}

// restore puts a still-pending context back after a response was rejected,
// so the context keeps waiting for the real answer.
func (m *idManager) restore(qc *queryContext) {
	key := idKey{server: normalizeAddrPort(qc.server), id: qc.id}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[key]; !busy && !qc.terminal() {
		m.inflight[key] = qc
	}
}

// remove deletes qc's slot if it is still the stored context. Used by the
// timeout and cancel paths so a late response cannot match a reused id.
func (m *idManager) remove(qc *queryContext) {
	key := idKey{server: normalizeAddrPort(qc.server), id: qc.id}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[key] == qc {
		delete(m.inflight, key)
	}
}

// size returns the number of in-flight contexts.
func (m *idManager) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// drain removes and returns every in-flight context.
func (m *idManager) drain() []*queryContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	qcs := make([]*queryContext, 0, len(m.inflight))
	for key, qc := range m.inflight {
		qcs = append(qcs, qc)
		delete(m.inflight, key)
	}
	return qcs
}
