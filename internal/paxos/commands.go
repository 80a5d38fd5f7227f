package paxos

// Commander is both the inbound surface a Replica implements to receive
// peer/client messages, and the outbound surface a Sender invokes to
// deliver them to a specific destination.
type Commander interface {
	// Proposal delivers a client value to be replicated, or forwards it
	// to the node believed to be the current leader.
	Proposal(val []byte)

	// Prepare delivers a Phase 1a message carrying the proposed ballot.
	Prepare(bal Ballot)

	// Promise delivers a Phase 1b message: the node that promised, the
	// ballot promised, and every accepted (or resolved) value the
	// promising replica knows about within its open range.
	Promise(node NodeId, bal Ballot, accepted []SlottedValue)

	// Accept delivers a Phase 2a message binding slot to (bal, val). The
	// node component of bal identifies the slot's leader.
	Accept(slot Slot, bal Ballot, val []byte)

	// Reject delivers a negative acknowledgment carrying the ballot that
	// was proposed and the ballot that preempted it.
	Reject(node NodeId, proposed Ballot, preempted Ballot)

	// Accepted delivers a Phase 2b acknowledgment: the acceptor that
	// voted, the slot, and the ballot it voted for.
	Accepted(node NodeId, slot Slot, bal Ballot)

	// Resolution delivers the broadcast decision for slot: it was
	// resolved at bal with val. Resolutions may arrive out of order; no
	// guarantee is made on slot ordering.
	Resolution(slot Slot, bal Ballot, val []byte)
}

// ReplicatedState is the application state machine a Replica drives.
// Execute is called once per decided slot, in strictly ascending slot
// order; no-op (empty) values are never delivered.
type ReplicatedState interface {
	Execute(slot Slot, val []byte)
}

// Sender routes outbound traffic on behalf of a Replica: SendTo invokes f
// against the Commander that targets node, and StateMachine exposes the
// application state machine for decision application. A single call to
// SendTo's f may emit more than one message; the Sender groups them as it
// sees fit (e.g. one network frame per call, or many).
type Sender interface {
	SendTo(node NodeId, f func(Commander))
	StateMachine() ReplicatedState
}
