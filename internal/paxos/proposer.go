package paxos

import "sync"

// ProposerStatus is the role a Proposer currently holds.
type ProposerStatus int

const (
	// Follower is the default role, and the role after being preempted
	// by a higher ballot from another node.
	Follower ProposerStatus = iota
	// Candidate means a Prepare for HighestObservedBallot() is in flight.
	Candidate
	// Leader means phase 1 quorum was reached at HighestObservedBallot(),
	// whose node is this proposer's own node.
	Leader
)

func (s ProposerStatus) String() string {
	switch s {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// Proposer owns ballot acquisition and phase-1 quorum tracking for one
// replica. It never mints a ballot carrying another node's id, and its
// highest-observed ballot only ever increases.
type Proposer struct {
	mu sync.Mutex

	node NodeId
	q1   int

	status           ProposerStatus
	highestObserved  *Ballot
	promises         map[NodeId]struct{}
}

// NewProposer creates a Proposer for node, requiring q1 promises
// (including the local node's implicit promise) to become Leader.
func NewProposer(node NodeId, q1 int) *Proposer {
	return &Proposer{node: node, q1: q1, status: Follower}
}

// Status returns the current role.
func (p *Proposer) Status() ProposerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// HighestObservedBallot returns the highest ballot seen so far, or
// ok=false if none has been observed yet.
func (p *Proposer) HighestObservedBallot() (b Ballot, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.highestObserved == nil {
		return Ballot{}, false
	}
	return *p.highestObserved, true
}

// ObserveBallot folds b into the highest-observed ballot, never lowering
// it. If b is from another node and this proposer currently believes
// itself Candidate or Leader, it demotes to Follower and drops any
// in-flight promises, since b proves another node is contending (or has
// already won) at that round.
func (p *Proposer) ObserveBallot(b Ballot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observeBallotLocked(b)
}

func (p *Proposer) observeBallotLocked(b Ballot) {
	if p.highestObserved == nil || b.GreaterThan(*p.highestObserved) {
		p.highestObserved = &b
	}
	if b.Node != p.node && (p.status == Candidate || p.status == Leader) {
		p.status = Follower
		p.promises = nil
	}
}

// Prepare mints a new ballot whose round exceeds the round of the
// currently highest-observed ballot by at least one, transitions to
// Candidate, clears any prior promise set, and returns the new ballot.
func (p *Proposer) Prepare() Ballot {
	p.mu.Lock()
	defer p.mu.Unlock()

	round := uint64(0)
	if p.highestObserved != nil {
		round = p.highestObserved.Round + 1
	}
	b := Ballot{Round: round, Node: p.node}
	p.highestObserved = &b
	p.status = Candidate
	p.promises = nil
	return b
}

// ReceivePromise records a Phase 1b promise from node for ballot b. It is
// ignored unless this proposer is Candidate for exactly b. Once q1-1
// peers (the local node counts implicitly) have promised, the proposer
// becomes Leader.
func (p *Proposer) ReceivePromise(node NodeId, b Ballot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != Candidate || p.highestObserved == nil || b != *p.highestObserved {
		return
	}
	if p.promises == nil {
		p.promises = make(map[NodeId]struct{})
	}
	p.promises[node] = struct{}{}
	if len(p.promises) >= p.q1-1 {
		p.status = Leader
	}
}

// ReceiveReject folds the preempting ballot into the observed ballot; any
// resulting demotion to Follower is handled by ObserveBallot.
func (p *Proposer) ReceiveReject(node NodeId, proposed Ballot, preempted Ballot) {
	p.ObserveBallot(preempted)
}
