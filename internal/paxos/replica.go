package paxos

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Replica is the synchronous, sans-I/O orchestrator that composes a
// Proposer and a SlotWindow behind a Sender. Every inbound Commander
// method runs to completion - mutating proposer/window state, emitting
// zero or more outbound messages through the Sender, and draining any
// newly decided slots into the state machine - before returning.
//
// Replica is not safe for concurrent use; the host must serialize
// inbound calls (an event loop, or a mutex around the Replica).
type Replica struct {
	sender Sender
	config Configuration

	proposer *Proposer
	window   *SlotWindow

	proposalQueue [][]byte
	queueCap      int

	logger log.Logger
}

// defaultQueueCap bounds the proposal queue when NewReplica is called
// without an explicit capacity via ReplicaOption.
const defaultQueueCap = 4096

// ReplicaOption configures optional Replica behavior.
type ReplicaOption func(*Replica)

// WithLogger attaches a go-kit logger used for warn-class anomalies named
// in the protocol's error-handling design (out-of-range or stale
// messages). The zero value logs nothing.
func WithLogger(logger log.Logger) ReplicaOption {
	return func(r *Replica) {
		if logger == nil {
			logger = log.NewNopLogger()
		}
		r.logger = logger
	}
}

// WithQueueCap overrides the bounded proposal queue's capacity.
func WithQueueCap(n int) ReplicaOption {
	return func(r *Replica) { r.queueCap = n }
}

// NewReplica creates a Replica from a Sender and a starting Configuration.
func NewReplica(sender Sender, config Configuration, opts ...ReplicaOption) *Replica {
	q1, q2 := config.QuorumSize()
	r := &Replica{
		sender:   sender,
		config:   config,
		proposer: NewProposer(config.Current(), q1),
		window:   NewSlotWindow(q2),
		queueCap: defaultQueueCap,
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithSender returns a new Replica sharing this one's Proposer and
// SlotWindow, starting from a copy of its current proposal queue, but
// dispatching through a different Sender. Later changes to either
// replica's queue are not seen by the other. Useful for swapping
// transports without losing Paxos state.
func (r *Replica) WithSender(sender Sender) *Replica {
	return &Replica{
		sender:        sender,
		config:        r.config,
		proposer:      r.proposer,
		window:        r.window,
		proposalQueue: r.proposalQueue,
		queueCap:      r.queueCap,
		logger:        r.logger,
	}
}

// Sender returns the replica's current outbound dispatcher.
func (r *Replica) Sender() Sender { return r.sender }

// Config returns the replica's cluster configuration.
func (r *Replica) Config() Configuration { return r.config }

// Status returns the proposer's current role.
func (r *Replica) Status() ProposerStatus { return r.proposer.Status() }

// broadcast invokes f against every peer's Commander, in configuration
// peer order.
func (r *Replica) broadcast(f func(Commander)) {
	for _, node := range r.config.Peers() {
		r.sender.SendTo(node, f)
	}
}

// enqueue appends val to the bounded proposal queue, returning
// ErrQueueFull rather than growing past capacity.
func (r *Replica) enqueue(val []byte) error {
	if len(r.proposalQueue) >= r.queueCap {
		return ErrQueueFull
	}
	r.proposalQueue = append(r.proposalQueue, val)
	return nil
}

// Propose is the client-facing entry point: it is equivalent to calling
// the Proposal Commander method, except it surfaces queue-overflow as an
// error instead of silently dropping the value.
func (r *Replica) Propose(val []byte) error {
	return r.proposalLocked(val)
}

// Proposal implements Commander.
func (r *Replica) Proposal(val []byte) {
	_ = r.proposalLocked(val)
}

func (r *Replica) proposalLocked(val []byte) error {
	switch r.proposer.Status() {
	case Follower:
		if _, ok := r.proposer.HighestObservedBallot(); !ok {
			if err := r.enqueue(val); err != nil {
				return err
			}
			bal := r.proposer.Prepare()
			r.broadcast(func(c Commander) { c.Prepare(bal) })
			return nil
		}
		leaderBal, _ := r.proposer.HighestObservedBallot()
		r.sender.SendTo(leaderBal.Node, func(c Commander) { c.Proposal(val) })
		return nil
	case Candidate:
		return r.enqueue(val)
	case Leader:
		bal, _ := r.proposer.HighestObservedBallot()
		slot, acceptor := r.window.NextSlot()
		acceptor.NoticeValue(bal, val)
		r.broadcast(func(c Commander) { c.Accept(slot, bal, val) })
		return nil
	default:
		return nil
	}
}

// Prepare implements Commander (Phase 1a).
func (r *Replica) Prepare(bal Ballot) {
	local := r.config.Current()

	// A replica rejects a Prepare outright, without consulting any slot,
	// once it has already observed a strictly higher ballot from any
	// source (its own candidacy, an Accept, a Reject). Per-slot acceptors
	// would reach the same conclusion slot by slot once they exist; this
	// short-circuits that for ballots that can never gather quorum.
	if prior, ok := r.proposer.HighestObservedBallot(); ok && bal.Less(prior) {
		r.proposer.ObserveBallot(bal)
		r.sender.SendTo(bal.Node, func(c Commander) { c.Reject(local, bal, prior) })
		return
	}
	r.proposer.ObserveBallot(bal)

	lo, hi := r.window.OpenRange()

	var accepted []SlottedValue
	for s := lo; s < hi; s++ {
		variant, acceptor, rbal, rval := r.window.SlotMut(s)
		switch variant {
		case VariantOpen:
			resp := acceptor.ReceivePrepare(bal)
			if !resp.Promised {
				r.sender.SendTo(bal.Node, func(c Commander) {
					c.Reject(local, resp.ProposedBallot, resp.PreemptedBallot)
				})
				return
			}
			if resp.HighestAccepted != nil {
				accepted = append(accepted, SlottedValue{Slot: s, Ballot: resp.HighestAccepted.Ballot, Value: resp.HighestAccepted.Value})
			}
		case VariantResolved:
			accepted = append(accepted, SlottedValue{Slot: s, Ballot: rbal, Value: rval})
		case VariantEmpty:
			level.Warn(r.logger).Log("event", "empty_slot_in_open_range", "slot", s)
		case VariantTruncated:
			// unreachable: OpenRange never returns a slot below lo.
		}
	}

	r.sender.SendTo(bal.Node, func(c Commander) { c.Promise(local, bal, accepted) })
}

// Promise implements Commander (Phase 1b).
func (r *Replica) Promise(node NodeId, bal Ballot, accepted []SlottedValue) {
	if r.proposer.Status() != Candidate {
		return
	}
	r.proposer.ReceivePromise(node, bal)

	for _, sv := range accepted {
		variant, acceptor, _, _ := r.window.SlotMut(sv.Slot)
		switch variant {
		case VariantOpen:
			acceptor.NoticeValue(sv.Ballot, sv.Value)
		case VariantEmpty:
			r.window.Fill(sv.Slot).NoticeValue(sv.Ballot, sv.Value)
		}
	}

	r.driveAccept()
}

// Accept implements Commander (Phase 2a).
func (r *Replica) Accept(slot Slot, bal Ballot, val []byte) {
	r.proposer.ObserveBallot(bal)

	local := r.config.Current()
	variant, acceptor, _, _ := r.window.SlotMut(slot)
	switch variant {
	case VariantEmpty:
		acceptor = r.window.Fill(slot)
	case VariantOpen:
		// acceptor already set
	default:
		return
	}

	resp := acceptor.ReceiveAccept(bal, val)
	switch {
	case resp.Accepted:
		r.sender.SendTo(bal.Node, func(c Commander) { c.Accepted(local, slot, bal) })
	case resp.Rejected:
		r.sender.SendTo(bal.Node, func(c Commander) {
			c.Reject(local, resp.ProposedBallot, resp.PreemptedBallot)
		})
	}
}

// Reject implements Commander.
func (r *Replica) Reject(node NodeId, proposed Ballot, preempted Ballot) {
	r.proposer.ReceiveReject(node, proposed, preempted)
	r.forward()
}

// Accepted implements Commander (Phase 2b).
func (r *Replica) Accepted(node NodeId, slot Slot, bal Ballot) {
	r.proposer.ObserveBallot(bal)

	variant, acceptor, _, _ := r.window.SlotMut(slot)
	switch variant {
	case VariantOpen:
		acceptor.ReceiveAccepted(node, bal)
		if rbal, rval, ok := acceptor.Resolution(); ok {
			r.window.markResolved(slot, rbal, rval)
			r.broadcast(func(c Commander) { c.Resolution(slot, rbal, rval) })
		}
	case VariantEmpty:
		level.Warn(r.logger).Log("event", "accepted_for_unknown_slot", "slot", slot)
		return
	default:
		return
	}

	r.executeDecisions()
}

// Resolution implements Commander.
func (r *Replica) Resolution(slot Slot, bal Ballot, val []byte) {
	r.proposer.ObserveBallot(bal)

	variant, acceptor, _, _ := r.window.SlotMut(slot)
	switch variant {
	case VariantEmpty:
		acceptor = r.window.Fill(slot)
		acceptor.Resolve(bal, val)
		r.window.markResolved(slot, bal, val)
	case VariantOpen:
		acceptor.Resolve(bal, val)
		r.window.markResolved(slot, bal, val)
	default:
		// already resolved or truncated: idempotent no-op
	}

	r.executeDecisions()
}

// driveAccept is invoked once phase 1 quorum may have just been reached:
// if the proposer is Leader, it binds every queued proposal to a new
// slot, rebinds every open slot (filling holes with no-ops) to the
// leader's ballot, and broadcasts the resulting Accept messages.
func (r *Replica) driveAccept() {
	if r.proposer.Status() != Leader {
		return
	}
	bal, _ := r.proposer.HighestObservedBallot()

	queued := r.proposalQueue
	r.proposalQueue = nil
	for _, val := range queued {
		slot, acceptor := r.window.NextSlot()
		acceptor.NoticeValue(bal, val)
		_ = slot
	}

	local := r.config.Current()
	lo, hi := r.window.OpenRange()
	type accept struct {
		slot Slot
		val  []byte
	}
	var accepts []accept
	for s := lo; s < hi; s++ {
		variant, acceptor, _, _ := r.window.SlotMut(s)
		switch variant {
		case VariantOpen:
			if _, val, ok := acceptor.HighestValue(); ok {
				acceptor.NoticeValue(bal, val)
				accepts = append(accepts, accept{s, val})
			} else {
				acceptor.NoticeValue(bal, nil)
				accepts = append(accepts, accept{s, nil})
			}
		case VariantEmpty:
			acceptor = r.window.Fill(s)
			acceptor.NoticeValue(bal, nil)
			accepts = append(accepts, accept{s, nil})
		default:
			continue
		}
		// The leader implicitly accepts its own bound value: it plays
		// acceptor for its own slots too, just never routes an Accept
		// message to itself (broadcast skips self). Counting that
		// implicit vote here is what lets resolution()'s literal
		// voters-quorum check resolve with only q2-1 peer Accepteds.
		acceptor.ReceiveAccepted(local, bal)
	}

	for _, a := range accepts {
		slot, val := a.slot, a.val
		r.broadcast(func(c Commander) { c.Accept(slot, bal, val) })
	}
}

// forward drains the proposal queue and forwards it, as a single batch,
// to the node the proposer now believes is the leader.
func (r *Replica) forward() {
	if r.proposer.Status() != Follower || len(r.proposalQueue) == 0 {
		return
	}
	bal, ok := r.proposer.HighestObservedBallot()
	if !ok {
		return
	}

	proposals := r.proposalQueue
	r.proposalQueue = nil
	leader := bal.Node
	r.sender.SendTo(leader, func(c Commander) {
		for _, p := range proposals {
			c.Proposal(p)
		}
	})
}

// executeDecisions drains every newly resolved, in-order slot and
// applies non-empty values to the state machine.
func (r *Replica) executeDecisions() {
	for _, sv := range r.window.DrainDecisions() {
		if len(sv.Value) > 0 {
			r.sender.StateMachine().Execute(sv.Slot, sv.Value)
		}
	}
}
