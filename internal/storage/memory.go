package storage

import (
	"sync"

	"github.com/senutpal/quorum/internal/paxos"
)

// Memory is a Log backed by a plain Go map. Nothing is persisted across
// process restarts; it exists for tests and demos where durability is not
// under test.
type Memory struct {
	mu      sync.RWMutex
	entries map[paxos.Slot][]byte
	last    paxos.Slot
	hasLast bool
}

// NewMemory creates an empty in-memory log.
func NewMemory() *Memory {
	return &Memory{entries: make(map[paxos.Slot][]byte)}
}

func (m *Memory) Put(slot paxos.Slot, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(val))
	copy(cp, val)
	m.entries[slot] = cp
	if !m.hasLast || slot > m.last {
		m.last = slot
		m.hasLast = true
	}
	return nil
}

func (m *Memory) Get(slot paxos.Slot) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.entries[slot]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, true
}

func (m *Memory) LastSlot() (paxos.Slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.hasLast
}

func (m *Memory) Close() error { return nil }
