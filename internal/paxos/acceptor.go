package paxos

import "sync"

// PrepareResponse is the result of Acceptor.ReceivePrepare: either a
// Promise carrying any value already accepted for the slot, or a Reject
// carrying the ballot that preempted the proposal.
type PrepareResponse struct {
	Promised        bool
	HighestAccepted *SlottedValue
	ProposedBallot  Ballot
	PreemptedBallot Ballot
}

// AcceptResponse is the result of Acceptor.ReceiveAccept.
type AcceptResponse struct {
	// exactly one of Accepted, Rejected, NoChange is true
	Accepted        bool
	Rejected        bool
	NoChange        bool
	ProposedBallot  Ballot
	PreemptedBallot Ballot
}

type acceptedPair struct {
	ballot Ballot
	value  []byte
}

// Acceptor holds the Paxos acceptor state for a single slot: the highest
// promised ballot, the highest accepted (ballot, value) pair, the set of
// nodes that have voted for that pair, and the terminal resolution.
//
// Acceptor is not safe for use by multiple slots; SlotWindow owns one
// Acceptor per slot.
type Acceptor struct {
	mu sync.Mutex

	q2 int

	promised *Ballot
	accepted *acceptedPair
	voters   map[NodeId]struct{}
	resolved *acceptedPair
}

// NewAcceptor creates an empty acceptor requiring q2 votes to resolve.
func NewAcceptor(q2 int) *Acceptor {
	return &Acceptor{q2: q2}
}

// ReceivePrepare implements Phase 1a/1b. If the slot is already resolved,
// the resolved value is returned as though accepted at the resolved
// ballot, so a new leader can recover it. Otherwise the acceptor promises
// b when b is at least as high as anything previously promised.
func (a *Acceptor) ReceivePrepare(b Ballot) PrepareResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolved != nil {
		return PrepareResponse{
			Promised:        true,
			HighestAccepted: &SlottedValue{Ballot: a.resolved.ballot, Value: a.resolved.value},
		}
	}

	if a.promised != nil && b.Less(*a.promised) {
		return PrepareResponse{ProposedBallot: b, PreemptedBallot: *a.promised}
	}

	a.promised = &b
	resp := PrepareResponse{Promised: true}
	if a.accepted != nil {
		resp.HighestAccepted = &SlottedValue{Ballot: a.accepted.ballot, Value: a.accepted.value}
	}
	return resp
}

// ReceiveAccept implements Phase 2a/2b.
func (a *Acceptor) ReceiveAccept(b Ballot, v []byte) AcceptResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolved != nil {
		return AcceptResponse{NoChange: true}
	}

	if a.promised != nil && b.Less(*a.promised) {
		return AcceptResponse{Rejected: true, ProposedBallot: b, PreemptedBallot: *a.promised}
	}

	a.promised = &b
	a.accepted = &acceptedPair{ballot: b, value: v}
	return AcceptResponse{Accepted: true, ProposedBallot: b}
}

// NoticeValue unconditionally records (b, v) as the accepted pair iff b is
// strictly greater than the currently accepted ballot, or nothing is
// accepted yet. It does not touch promised. Used to seed recovered values
// during phase 1 and to bind a slot to the leader's ballot before
// broadcasting Accept.
func (a *Acceptor) NoticeValue(b Ballot, v []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accepted == nil || b.GreaterThan(a.accepted.ballot) {
		a.accepted = &acceptedPair{ballot: b, value: v}
	}
}

// ReceiveAccepted records a Phase 2b vote from node for ballot b. If
// resolved, the vote is ignored. A vote for a ballot higher than the
// currently accepted one resets the voter set to start fresh at the new
// ballot; conservative, but preserves safety when a peer's Accepted races
// ahead of what the local replica has seen.
func (a *Acceptor) ReceiveAccepted(node NodeId, b Ballot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolved != nil {
		return
	}
	if a.accepted == nil {
		return
	}

	switch {
	case b.GreaterThan(a.accepted.ballot):
		a.accepted = &acceptedPair{ballot: b, value: a.accepted.value}
		a.voters = map[NodeId]struct{}{node: {}}
	case b.Less(a.accepted.ballot):
		// stale vote, ignore
	default:
		if a.voters == nil {
			a.voters = make(map[NodeId]struct{})
		}
		a.voters[node] = struct{}{}
	}
}

// Resolution returns the resolved (ballot, value) once a quorum of voters
// has accumulated for the accepted ballot, transitioning to resolved on
// the first such call. Returns ok=false otherwise.
func (a *Acceptor) Resolution() (b Ballot, v []byte, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolved != nil {
		return a.resolved.ballot, a.resolved.value, true
	}
	if a.accepted == nil || len(a.voters) < a.q2 {
		return Ballot{}, nil, false
	}

	a.resolved = &acceptedPair{ballot: a.accepted.ballot, value: a.accepted.value}
	return a.resolved.ballot, a.resolved.value, true
}

// Resolve authoritatively decides the slot from an external Resolution
// broadcast. Idempotent: a second call with any ballot/value is a no-op.
func (a *Acceptor) Resolve(b Ballot, v []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolved != nil {
		return
	}
	a.resolved = &acceptedPair{ballot: b, value: v}
	a.accepted = &acceptedPair{ballot: b, value: v}
}

// HighestValue returns the highest-ballot known value for this slot,
// whichever of accepted/resolved it is, or ok=false if nothing is known.
func (a *Acceptor) HighestValue() (b Ballot, v []byte, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolved != nil {
		return a.resolved.ballot, a.resolved.value, true
	}
	if a.accepted != nil {
		return a.accepted.ballot, a.accepted.value, true
	}
	return Ballot{}, nil, false
}

// IsResolved reports whether this slot has reached a terminal decision.
func (a *Acceptor) IsResolved() (b Ballot, v []byte, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolved == nil {
		return Ballot{}, nil, false
	}
	return a.resolved.ballot, a.resolved.value, true
}
