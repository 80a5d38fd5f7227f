package transport

import (
	"sync"

	"github.com/senutpal/quorum/internal/paxos"
)

// LoopbackBus fans SendTo calls out to in-process peers. It is the
// in-memory counterpart of Network: useful for unit tests and single-
// process demos that want every node's Replica wired together without any
// real serialization or sockets.
type LoopbackBus struct {
	mu         sync.Mutex
	commanders map[paxos.NodeId]paxos.Commander
	states     map[paxos.NodeId]paxos.ReplicatedState
}

// NewLoopbackBus creates an empty bus. Call Register for each node before
// using Bound.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{
		commanders: make(map[paxos.NodeId]paxos.Commander),
		states:     make(map[paxos.NodeId]paxos.ReplicatedState),
	}
}

// Register associates node with the Commander (typically its Replica) and
// ReplicatedState that should receive traffic addressed to it.
func (b *LoopbackBus) Register(node paxos.NodeId, c paxos.Commander, sm paxos.ReplicatedState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commanders[node] = c
	b.states[node] = sm
}

// Bound returns a paxos.Sender that dispatches as node self, for use by
// self's Replica.
func (b *LoopbackBus) Bound(self paxos.NodeId) paxos.Sender {
	return &boundBus{bus: b, self: self}
}

type boundBus struct {
	bus  *LoopbackBus
	self paxos.NodeId
}

// SendTo invokes f against node's Commander synchronously, in the calling
// goroutine. Delivery to an unregistered node is silently dropped, the
// same way a real transport drops traffic to an unreachable peer.
func (s *boundBus) SendTo(node paxos.NodeId, f func(paxos.Commander)) {
	s.bus.mu.Lock()
	c, ok := s.bus.commanders[node]
	s.bus.mu.Unlock()
	if !ok {
		return
	}
	f(c)
}

func (s *boundBus) StateMachine() paxos.ReplicatedState {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.bus.states[s.self]
}
