package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/senutpal/quorum/internal/paxos"
)

type payloadProposal struct{ Val []byte }
type payloadPrepare struct{ Ballot paxos.Ballot }
type payloadPromise struct {
	Node     paxos.NodeId
	Ballot   paxos.Ballot
	Accepted []paxos.SlottedValue
}
type payloadAccept struct {
	Slot   paxos.Slot
	Ballot paxos.Ballot
	Val    []byte
}
type payloadReject struct {
	Node      paxos.NodeId
	Proposed  paxos.Ballot
	Preempted paxos.Ballot
}
type payloadAccepted struct {
	Node   paxos.NodeId
	Slot   paxos.Slot
	Ballot paxos.Ballot
}
type payloadResolution struct {
	Slot   paxos.Slot
	Ballot paxos.Ballot
	Val    []byte
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Dispatch decodes env.Body according to env.Kind and invokes the matching
// Commander method on c.
func Dispatch(env Envelope, c paxos.Commander) error {
	dec := gob.NewDecoder(bytes.NewReader(env.Body))
	switch env.Kind {
	case KindProposal:
		var p payloadProposal
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.Proposal(p.Val)
	case KindPrepare:
		var p payloadPrepare
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.Prepare(p.Ballot)
	case KindPromise:
		var p payloadPromise
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.Promise(p.Node, p.Ballot, p.Accepted)
	case KindAccept:
		var p payloadAccept
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.Accept(p.Slot, p.Ballot, p.Val)
	case KindReject:
		var p payloadReject
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.Reject(p.Node, p.Proposed, p.Preempted)
	case KindAccepted:
		var p payloadAccepted
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.Accepted(p.Node, p.Slot, p.Ballot)
	case KindResolution:
		var p payloadResolution
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.Resolution(p.Slot, p.Ballot, p.Val)
	default:
		return fmt.Errorf("transport: unknown message kind %d", env.Kind)
	}
	return nil
}

// recorder implements paxos.Commander by capturing every call made against
// it into a slice of Envelopes. A SendTo closure may call more than one
// Commander method against the same destination (Replica.forward batches
// an entire queued-proposal backlog into repeated Proposal calls inside one
// closure); a recorder lets a network Sender turn each of those calls back
// into wire bytes, in order, without the Replica ever knowing its peer is
// remote.
type recorder struct {
	from paxos.NodeId
	to   paxos.NodeId
	envs []Envelope
}

func (r *recorder) capture(kind Kind, payload interface{}) {
	body, err := encode(payload)
	if err != nil {
		return
	}
	r.envs = append(r.envs, Envelope{To: uint32(r.to), From: uint32(r.from), Kind: kind, Body: body})
}

func (r *recorder) Proposal(val []byte) { r.capture(KindProposal, payloadProposal{Val: val}) }
func (r *recorder) Prepare(bal paxos.Ballot) {
	r.capture(KindPrepare, payloadPrepare{Ballot: bal})
}
func (r *recorder) Promise(node paxos.NodeId, bal paxos.Ballot, accepted []paxos.SlottedValue) {
	r.capture(KindPromise, payloadPromise{Node: node, Ballot: bal, Accepted: accepted})
}
func (r *recorder) Accept(slot paxos.Slot, bal paxos.Ballot, val []byte) {
	r.capture(KindAccept, payloadAccept{Slot: slot, Ballot: bal, Val: val})
}
func (r *recorder) Reject(node paxos.NodeId, proposed, preempted paxos.Ballot) {
	r.capture(KindReject, payloadReject{Node: node, Proposed: proposed, Preempted: preempted})
}
func (r *recorder) Accepted(node paxos.NodeId, slot paxos.Slot, bal paxos.Ballot) {
	r.capture(KindAccepted, payloadAccepted{Node: node, Slot: slot, Ballot: bal})
}
func (r *recorder) Resolution(slot paxos.Slot, bal paxos.Ballot, val []byte) {
	r.capture(KindResolution, payloadResolution{Slot: slot, Ballot: bal, Val: val})
}
