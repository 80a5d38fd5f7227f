package paxos

import "testing"

func TestProposerPrepareAdvancesRound(t *testing.T) {
	p := NewProposer(4, 3)
	b := p.Prepare()
	if b != (Ballot{0, 4}) {
		t.Fatalf("first prepare = %v, want (0,4)", b)
	}
	if p.Status() != Candidate {
		t.Fatalf("status = %v, want Candidate", p.Status())
	}

	p.ObserveBallot(Ballot{3, 9})
	b2 := p.Prepare()
	if b2 != (Ballot{4, 4}) {
		t.Fatalf("second prepare = %v, want (4,4)", b2)
	}
}

func TestProposerReceivePromiseReachesLeader(t *testing.T) {
	p := NewProposer(4, 3)
	b := p.Prepare()

	p.ReceivePromise(0, b)
	if p.Status() != Candidate {
		t.Fatal("one promise (q1-1=2 needed) should not reach leader")
	}
	p.ReceivePromise(1, b)
	if p.Status() != Leader {
		t.Fatalf("status = %v, want Leader after q1-1=2 promises", p.Status())
	}
}

func TestProposerReceivePromiseIgnoredForUnrelatedBallot(t *testing.T) {
	p := NewProposer(4, 3)
	p.Prepare()
	p.ReceivePromise(0, Ballot{99, 99})
	if p.Status() != Candidate {
		t.Fatal("a promise for an unrelated ballot must be ignored")
	}
}

func TestProposerObserveBallotDemotesOnForeignBallot(t *testing.T) {
	p := NewProposer(4, 3)
	b := p.Prepare()
	p.ReceivePromise(0, b)
	p.ReceivePromise(1, b)
	if p.Status() != Leader {
		t.Fatal("setup: expected leader")
	}

	p.ObserveBallot(Ballot{b.Round + 1, 7})
	if p.Status() != Follower {
		t.Fatal("observing a higher foreign ballot must demote to Follower")
	}
	hb, ok := p.HighestObservedBallot()
	if !ok || hb != (Ballot{b.Round + 1, 7}) {
		t.Fatalf("highest observed = %v, want (%d,7)", hb, b.Round+1)
	}
}

func TestProposerObserveBallotNeverLowersHighestObserved(t *testing.T) {
	p := NewProposer(4, 3)
	p.ObserveBallot(Ballot{5, 0})
	p.ObserveBallot(Ballot{2, 0})
	hb, _ := p.HighestObservedBallot()
	if hb != (Ballot{5, 0}) {
		t.Fatalf("highest observed = %v, want (5,0): must be monotone", hb)
	}
}

func TestProposerReceiveRejectFoldsPreemptedBallot(t *testing.T) {
	p := NewProposer(4, 3)
	p.Prepare()
	p.ReceiveReject(2, Ballot{0, 4}, Ballot{1, 0})
	hb, ok := p.HighestObservedBallot()
	if !ok || hb != (Ballot{1, 0}) {
		t.Fatalf("highest observed = %v, want (1,0)", hb)
	}
	if p.Status() != Follower {
		t.Fatal("a reject carrying a foreign preempting ballot must demote to Follower")
	}
}
