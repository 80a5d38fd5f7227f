// Package node wires a paxos.Replica to a transport and a durable log,
// giving it a goroutine that drains inbound Envelopes and a small
// client-facing API (Propose, Status, Last).
package node

import (
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/senutpal/quorum/internal/paxos"
	"github.com/senutpal/quorum/internal/storage"
	"github.com/senutpal/quorum/internal/transport"
)

// Node owns one Replica, its state machine, and the transport goroutine
// that feeds inbound messages to it. All Replica calls happen on that one
// goroutine, so Replica's own no-concurrent-use requirement is satisfied
// without an extra lock.
type Node struct {
	id      paxos.NodeId
	replica *paxos.Replica
	state   *storage.State
	log     storage.Log
	trans   transport.Transport
	logger  log.Logger

	wg      sync.WaitGroup
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// New creates a Node for config's local id, backed by durable log and
// dispatching through trans. bind turns the node's own ReplicatedState
// (backed by durable) into the paxos.Sender the Replica will use -
// typically net.Sender(config.Current(), sm) for a *transport.Network, or
// bus.Bound(config.Current()) for a *transport.LoopbackBus (which ignores
// sm and expects a later bus.Register call instead).
func New(config paxos.Configuration, trans transport.Transport, bind func(paxos.ReplicatedState) paxos.Sender, durable storage.Log, logger log.Logger) *Node {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	state := storage.NewState(durable, logger)
	sender := bind(state)
	replica := paxos.NewReplica(sender, config, paxos.WithLogger(logger))
	return &Node{
		id:      config.Current(),
		replica: replica,
		state:   state,
		log:     durable,
		trans:   trans,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Replica exposes the underlying Replica, e.g. so a LoopbackBus can
// Register it as a Commander.
func (n *Node) Replica() *paxos.Replica { return n.replica }

// StateMachine exposes the node's decided-value sink as a paxos.Sender
// would need it.
func (n *Node) StateMachine() paxos.ReplicatedState { return n.state }

// Start spawns the goroutine that drains trans and feeds it to the
// Replica's Commander methods. It is a no-op if already started.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return nil
	}
	n.started = true
	n.wg.Add(1)
	go n.recvLoop()
	return nil
}

// Stop closes the transport, waits for the receive loop to exit, and
// closes the durable log.
func (n *Node) Stop() error {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = false
	n.mu.Unlock()

	err := n.trans.Close()
	n.wg.Wait()
	if cerr := n.log.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (n *Node) recvLoop() {
	defer n.wg.Done()
	for {
		env, err := n.trans.Recv()
		if err != nil {
			if err != transport.ErrClosed {
				level.Warn(n.logger).Log("event", "recv_error", "err", err)
			}
			return
		}
		if err := transport.Dispatch(env, n.replica); err != nil {
			level.Warn(n.logger).Log("event", "dispatch_error", "from", env.From, "kind", env.Kind, "err", err)
		}
	}
}

// Propose submits val to the cluster. It does not wait for the value to
// be decided; callers that need that should poll Last or read the durable
// log they supplied.
func (n *Node) Propose(val []byte) error {
	if err := n.replica.Propose(val); err != nil {
		return fmt.Errorf("node %d: %w", n.id, err)
	}
	return nil
}

// Status returns the node's current proposer role.
func (n *Node) Status() paxos.ProposerStatus { return n.replica.Status() }

// Last returns the most recently decided (slot, value) this node knows
// about.
func (n *Node) Last() (slot paxos.Slot, val []byte, ok bool) { return n.state.Last() }

// ID returns the node's own id.
func (n *Node) ID() paxos.NodeId { return n.id }
