package paxos

import (
	"bytes"
	"testing"
)

// outboundCall records one invocation made against a recordedCommander,
// i.e. one message a Replica under test sent to one destination.
type outboundCall struct {
	to        NodeId
	kind      string
	val       []byte
	bal       Ballot
	node      NodeId
	accepted  []SlottedValue
	slot      Slot
	proposed  Ballot
	preempted Ballot
}

type recordedCommander struct {
	to    NodeId
	calls *[]outboundCall
}

func (c *recordedCommander) Proposal(val []byte) {
	*c.calls = append(*c.calls, outboundCall{to: c.to, kind: "Proposal", val: val})
}
func (c *recordedCommander) Prepare(bal Ballot) {
	*c.calls = append(*c.calls, outboundCall{to: c.to, kind: "Prepare", bal: bal})
}
func (c *recordedCommander) Promise(node NodeId, bal Ballot, accepted []SlottedValue) {
	*c.calls = append(*c.calls, outboundCall{to: c.to, kind: "Promise", node: node, bal: bal, accepted: accepted})
}
func (c *recordedCommander) Accept(slot Slot, bal Ballot, val []byte) {
	*c.calls = append(*c.calls, outboundCall{to: c.to, kind: "Accept", slot: slot, bal: bal, val: val})
}
func (c *recordedCommander) Reject(node NodeId, proposed, preempted Ballot) {
	*c.calls = append(*c.calls, outboundCall{to: c.to, kind: "Reject", node: node, proposed: proposed, preempted: preempted})
}
func (c *recordedCommander) Accepted(node NodeId, slot Slot, bal Ballot) {
	*c.calls = append(*c.calls, outboundCall{to: c.to, kind: "Accepted", node: node, slot: slot, bal: bal})
}
func (c *recordedCommander) Resolution(slot Slot, bal Ballot, val []byte) {
	*c.calls = append(*c.calls, outboundCall{to: c.to, kind: "Resolution", slot: slot, bal: bal, val: val})
}

type fakeStateMachine struct {
	executed []SlottedValue
}

func (f *fakeStateMachine) Execute(slot Slot, val []byte) {
	f.executed = append(f.executed, SlottedValue{Slot: slot, Value: val})
}

type fakeSender struct {
	calls []outboundCall
	sm    *fakeStateMachine
}

func newFakeSender() *fakeSender {
	return &fakeSender{sm: &fakeStateMachine{}}
}

func (s *fakeSender) SendTo(node NodeId, f func(Commander)) {
	f(&recordedCommander{to: node, calls: &s.calls})
}

func (s *fakeSender) StateMachine() ReplicatedState { return s.sm }

// since returns s.calls[from:], for asserting only what happened after a
// given point in the test.
func (s *fakeSender) since(from int) []outboundCall { return s.calls[from:] }

func newTestReplica() (*Replica, *fakeSender) {
	cfg := NewConfiguration(4, []NodeId{0, 1, 2, 3}, 3, 3)
	s := newFakeSender()
	return NewReplica(s, cfg), s
}

func findCalls(calls []outboundCall, kind string) []outboundCall {
	var out []outboundCall
	for _, c := range calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestScenario1ColdProposal(t *testing.T) {
	r, s := newTestReplica()
	r.Proposal([]byte("123"))

	prepares := findCalls(s.calls, "Prepare")
	if len(prepares) != 4 {
		t.Fatalf("got %d Prepare calls, want 4", len(prepares))
	}
	wantDests := map[NodeId]bool{0: true, 1: true, 2: true, 3: true}
	for _, c := range prepares {
		if c.bal != (Ballot{0, 4}) {
			t.Errorf("Prepare to %d carried %v, want (0,4)", c.to, c.bal)
		}
		delete(wantDests, c.to)
	}
	if len(wantDests) != 0 {
		t.Errorf("missing Prepare to nodes %v", wantDests)
	}
	if r.Status() != Candidate {
		t.Fatalf("status = %v, want Candidate", r.Status())
	}
}

func TestScenario2ProposalForwarding(t *testing.T) {
	r, s := newTestReplica()
	r.Prepare(Ballot{0, 3})

	mark := len(s.calls)
	r.Proposal([]byte("123"))

	calls := s.since(mark)
	proposals := findCalls(calls, "Proposal")
	if len(proposals) != 1 || proposals[0].to != 3 || !bytes.Equal(proposals[0].val, []byte("123")) {
		t.Fatalf("expected exactly one Proposal(\"123\") to node 3, got %+v", proposals)
	}
	for _, c := range calls {
		if c.kind == "Proposal" && c.to != 3 {
			t.Errorf("unexpected Proposal forwarded to node %d", c.to)
		}
	}
}

func TestScenario3PrepareAtHigherBallot(t *testing.T) {
	r, s := newTestReplica()
	r.Prepare(Ballot{1, 0})

	promises := findCalls(s.calls, "Promise")
	if len(promises) != 1 {
		t.Fatalf("got %d Promise calls, want 1", len(promises))
	}
	p := promises[0]
	if p.to != 0 || p.node != 4 || p.bal != (Ballot{1, 0}) || len(p.accepted) != 0 {
		t.Fatalf("Promise = %+v, want {to:0 node:4 bal:(1,0) accepted:[]}", p)
	}
}

func TestScenario4PrepareAtLowerBallotAfterHigher(t *testing.T) {
	r, s := newTestReplica()
	r.Prepare(Ballot{1, 0})

	mark := len(s.calls)
	r.Prepare(Ballot{0, 2})

	rejects := findCalls(s.since(mark), "Reject")
	if len(rejects) != 1 {
		t.Fatalf("got %d Reject calls, want 1", len(rejects))
	}
	rj := rejects[0]
	if rj.to != 2 || rj.node != 4 || rj.proposed != (Ballot{0, 2}) || rj.preempted != (Ballot{1, 0}) {
		t.Fatalf("Reject = %+v, want {to:2 node:4 proposed:(0,2) preempted:(1,0)}", rj)
	}
}

func TestScenario5PromiseDrivenPhase2WithRecoveredValue(t *testing.T) {
	r, s := newTestReplica()
	r.Proposal([]byte("123"))

	mark := len(s.calls)
	r.Promise(1, Ballot{0, 4}, []SlottedValue{{Slot: 0, Ballot: Ballot{0, 0}, Value: []byte("456")}})
	r.Promise(2, Ballot{0, 4}, nil)

	accepts := findCalls(s.since(mark), "Accept")
	if r.Status() != Leader {
		t.Fatalf("status = %v, want Leader", r.Status())
	}
	want := map[Slot]string{0: "456", 1: "123"}
	got := map[Slot]map[NodeId]bool{0: {}, 1: {}}
	for _, a := range accepts {
		if a.bal != (Ballot{0, 4}) {
			t.Errorf("Accept to %d carried ballot %v, want (0,4)", a.to, a.bal)
		}
		wantVal, ok := want[a.slot]
		if !ok {
			t.Fatalf("unexpected Accept for slot %d", a.slot)
		}
		if string(a.val) != wantVal {
			t.Errorf("Accept for slot %d carried %q, want %q", a.slot, a.val, wantVal)
		}
		got[a.slot][a.to] = true
	}
	for slot, dests := range got {
		if len(dests) != 4 {
			t.Errorf("slot %d Accept reached %d peers, want 4", slot, len(dests))
		}
	}
}

func TestScenario6HoleFillingDuringRecovery(t *testing.T) {
	r, s := newTestReplica()
	r.Proposal([]byte("123"))

	mark := len(s.calls)
	r.Promise(1, Ballot{0, 4}, []SlottedValue{{Slot: 2, Ballot: Ballot{0, 0}, Value: []byte("456")}})
	r.Promise(2, Ballot{0, 4}, nil)

	accepts := findCalls(s.since(mark), "Accept")
	want := map[Slot]string{0: "", 1: "", 2: "456", 3: "123"}
	seen := map[Slot]int{}
	for _, a := range accepts {
		wantVal, ok := want[a.slot]
		if !ok {
			t.Fatalf("unexpected Accept for slot %d", a.slot)
		}
		if string(a.val) != wantVal {
			t.Errorf("Accept for slot %d carried %q, want %q", a.slot, a.val, wantVal)
		}
		seen[a.slot]++
	}
	for slot, n := range seen {
		if n != 4 {
			t.Errorf("slot %d Accept count = %d, want 4", slot, n)
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected Accepts for 4 slots, got %d", len(seen))
	}
}

func TestScenario7AcceptedQuorumTriggersResolution(t *testing.T) {
	r, s := newTestReplica()
	r.Proposal([]byte("123"))
	r.Promise(1, Ballot{0, 4}, nil)
	r.Promise(2, Ballot{0, 4}, nil)
	if r.Status() != Leader {
		t.Fatal("setup: expected leader established at (0,4) with slot 0 bound")
	}

	mark := len(s.calls)
	r.Accepted(0, 0, Ballot{0, 4})
	if len(findCalls(s.since(mark), "Resolution")) != 0 {
		t.Fatal("one external Accepted plus the leader's own implicit vote is only 2 of 3")
	}
	r.Accepted(2, 0, Ballot{0, 4})

	resolutions := findCalls(s.since(mark), "Resolution")
	if len(resolutions) != 4 {
		t.Fatalf("got %d Resolution broadcasts, want 4", len(resolutions))
	}
	for _, res := range resolutions {
		if res.slot != 0 || res.bal != (Ballot{0, 4}) || string(res.val) != "123" {
			t.Errorf("Resolution = %+v, want {slot:0 bal:(0,4) val:123}", res)
		}
	}
	if len(s.sm.executed) != 1 || s.sm.executed[0].Slot != 0 || string(s.sm.executed[0].Value) != "123" {
		t.Fatalf("state machine executed %+v, want [{0 123}]", s.sm.executed)
	}
}

func TestScenario8OutOfOrderResolutions(t *testing.T) {
	r, s := newTestReplica()

	r.Resolution(4, Ballot{1, 2}, []byte("123"))
	r.Resolution(1, Ballot{1, 2}, nil)
	r.Resolution(0, Ballot{1, 2}, []byte("000"))

	if len(s.sm.executed) != 1 || s.sm.executed[0].Slot != 0 || string(s.sm.executed[0].Value) != "000" {
		t.Fatalf("after first three resolutions, executed = %+v, want only [{0 000}]", s.sm.executed)
	}

	r.Resolution(2, Ballot{1, 2}, nil)
	r.Resolution(3, Ballot{1, 2}, []byte("3"))

	want := []SlottedValue{
		{Slot: 0, Value: []byte("000")},
		{Slot: 3, Value: []byte("3")},
		{Slot: 4, Value: []byte("123")},
	}
	if len(s.sm.executed) != len(want) {
		t.Fatalf("executed %+v, want %+v", s.sm.executed, want)
	}
	for i, w := range want {
		if s.sm.executed[i].Slot != w.Slot || !bytes.Equal(s.sm.executed[i].Value, w.Value) {
			t.Errorf("executed[%d] = %+v, want %+v", i, s.sm.executed[i], w)
		}
	}
}

func TestAcceptOnlyEmittedWhileLeader(t *testing.T) {
	// I5: outbound Accept messages are emitted only while the proposer is
	// Leader. A proposal to a cold Follower makes it a Candidate, which
	// never drives an Accept on its own.
	r, s := newTestReplica()
	r.Proposal([]byte("x"))
	if r.Status() != Candidate {
		t.Fatal("setup: expected candidate")
	}
	if len(findCalls(s.calls, "Accept")) != 0 {
		t.Fatal("a Candidate must never emit Accept")
	}
}

func TestRepeatedAcceptedIsIdempotentAtReplicaLevel(t *testing.T) {
	// R1, at the Replica level: delivering the same Accepted twice yields
	// at most one Resolution broadcast.
	r, s := newTestReplica()
	r.Proposal([]byte("123"))
	r.Promise(1, Ballot{0, 4}, nil)
	r.Promise(2, Ballot{0, 4}, nil)

	r.Accepted(0, 0, Ballot{0, 4})
	r.Accepted(2, 0, Ballot{0, 4})
	mark := len(s.calls)
	r.Accepted(2, 0, Ballot{0, 4})

	if len(findCalls(s.since(mark), "Resolution")) != 0 {
		t.Fatal("a duplicate Accepted must not re-broadcast Resolution")
	}
	if len(s.sm.executed) != 1 {
		t.Fatalf("executed %d times, want exactly once", len(s.sm.executed))
	}
}
