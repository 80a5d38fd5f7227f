package paxos

import "fmt"

// NodeId identifies a peer in the cluster configuration.
type NodeId uint32

// Slot is a monotonically increasing position in the replicated log.
type Slot uint64

// Ballot totally orders proposals as (Round, Node): higher round wins,
// ties are broken by higher node. A proposer only ever mints ballots
// carrying its own Node, which makes ballots unique across the cluster.
type Ballot struct {
	Round uint64
	Node  NodeId
}

// Less reports whether b is ordered strictly before other.
func (b Ballot) Less(other Ballot) bool {
	if b.Round != other.Round {
		return b.Round < other.Round
	}
	return b.Node < other.Node
}

// GreaterThan reports whether b is ordered strictly after other.
func (b Ballot) GreaterThan(other Ballot) bool {
	return other.Less(b)
}

// GreaterOrEqual reports whether b is ordered at or after other.
func (b Ballot) GreaterOrEqual(other Ballot) bool {
	return !b.Less(other)
}

func (b Ballot) String() string {
	return fmt.Sprintf("(%d,%d)", b.Round, b.Node)
}

// SlottedValue is a decision or a recovered phase-1 value bound to a slot.
type SlottedValue struct {
	Slot   Slot
	Ballot Ballot
	Value  []byte
}

// Configuration is the immutable cluster membership and quorum sizing for
// the lifetime of a Replica.
type Configuration struct {
	self  NodeId
	peers []NodeId
	q1    int
	q2    int
}

// NewConfiguration builds a Configuration for the local node against the
// given peer set (excluding self) with explicit phase-1/phase-2 quorum
// sizes. Callers wanting the standard majority quorum should use
// MajorityConfiguration.
func NewConfiguration(self NodeId, peers []NodeId, q1, q2 int) Configuration {
	cp := make([]NodeId, len(peers))
	copy(cp, peers)
	return Configuration{self: self, peers: cp, q1: q1, q2: q2}
}

// MajorityConfiguration builds a Configuration sized for the standard
// Paxos majority quorum ceil((N+1)/2) over a cluster of self plus peers.
func MajorityConfiguration(self NodeId, peers []NodeId) Configuration {
	n := len(peers) + 1
	q := (n + 2) / 2
	return NewConfiguration(self, peers, q, q)
}

// Current returns the local node id.
func (c Configuration) Current() NodeId { return c.self }

// Peers returns the peer node ids, excluding the local node.
func (c Configuration) Peers() []NodeId {
	out := make([]NodeId, len(c.peers))
	copy(out, c.peers)
	return out
}

// QuorumSize returns the phase-1 and phase-2 quorum sizes.
func (c Configuration) QuorumSize() (q1, q2 int) { return c.q1, c.q2 }
