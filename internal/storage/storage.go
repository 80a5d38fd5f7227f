// Package storage persists decided log entries so a node can recover its
// state machine's progress across a restart. It knows nothing about the
// Paxos protocol itself: it only ever sees slots that have already been
// resolved, in the order Replica.executeDecisions drains them.
package storage

import "github.com/senutpal/quorum/internal/paxos"

// Log is durable storage for the decided (slot, value) sequence. Put must
// be safe to call with a slot that has already been stored (idempotent
// overwrite with the same value); Replica never resolves a slot twice with
// conflicting values, so implementations are not required to detect that.
type Log interface {
	// Put persists val as the decision for slot.
	Put(slot paxos.Slot, val []byte) error

	// Get returns the decision for slot, or ok=false if none is stored.
	Get(slot paxos.Slot) (val []byte, ok bool)

	// LastSlot returns the highest slot stored, or ok=false if the log is
	// empty.
	LastSlot() (slot paxos.Slot, ok bool)

	// Close releases any resources held by the log.
	Close() error
}
