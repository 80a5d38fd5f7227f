package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/websocket"

	"github.com/senutpal/quorum/internal/paxos"
)

// Network is a Transport over a static cluster of websocket connections,
// one per peer. Dialing and accepting both converge on the same
// connection pool, so it does not matter whether a given peer connects to
// us or we connect to it.
//
// Connection loss is not retried here: Paxos already tolerates dropped
// messages, and a reconnect policy belongs to the host process, not the
// wire format.
type Network struct {
	self NodeUint

	mu    sync.Mutex
	conns map[NodeUint]*websocket.Conn

	incoming chan Envelope
	closed   chan struct{}

	upgrader websocket.Upgrader
	logger   log.Logger
}

// NodeUint is the wire representation of a paxos.NodeId.
type NodeUint = uint32

// NewNetwork creates a Network for node self. Call Listen to accept
// inbound peer connections and Dial for each outbound peer.
func NewNetwork(self paxos.NodeId, logger log.Logger) *Network {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Network{
		self:     uint32(self),
		conns:    make(map[NodeUint]*websocket.Conn),
		incoming: make(chan Envelope, 256),
		closed:   make(chan struct{}),
		logger:   logger,
	}
}

// Listen serves incoming peer connections on addr. Each accepted
// connection is expected to open with a single JSON-encoded NodeUint
// identifying the dialing peer, after which it carries Envelopes.
func (n *Network) Listen(addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paxos", n.handleUpgrade)
	srv := &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			level.Error(n.logger).Log("event", "listen_error", "err", err)
		}
	}()
	return srv, nil
}

func (n *Network) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Error(n.logger).Log("event", "upgrade_error", "err", err)
		return
	}
	var peer NodeUint
	if err := conn.ReadJSON(&peer); err != nil {
		_ = conn.Close()
		return
	}
	n.adopt(peer, conn)
}

// Dial opens an outbound connection to peer at addr.
func (n *Network) Dial(peer paxos.NodeId, addr string) error {
	u := fmt.Sprintf("ws://%s/paxos", addr)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(n.self); err != nil {
		_ = conn.Close()
		return err
	}
	n.adopt(uint32(peer), conn)
	return nil
}

func (n *Network) adopt(peer NodeUint, conn *websocket.Conn) {
	n.mu.Lock()
	n.conns[peer] = conn
	n.mu.Unlock()

	go n.readLoop(peer, conn)
}

func (n *Network) readLoop(peer NodeUint, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			level.Warn(n.logger).Log("event", "peer_disconnected", "peer", peer, "err", err)
			return
		}
		var env Envelope
		if err := gobUnmarshal(data, &env); err != nil {
			level.Warn(n.logger).Log("event", "decode_error", "peer", peer, "err", err)
			continue
		}
		select {
		case n.incoming <- env:
		case <-n.closed:
			return
		}
	}
}

// Send implements Transport.
func (n *Network) Send(env Envelope) error {
	n.mu.Lock()
	conn, ok := n.conns[env.To]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no connection to node %d", env.To)
	}
	data, err := gobMarshal(env)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Recv implements Transport.
func (n *Network) Recv() (Envelope, error) {
	select {
	case env := <-n.incoming:
		return env, nil
	case <-n.closed:
		select {
		case env := <-n.incoming:
			return env, nil
		default:
			return Envelope{}, ErrClosed
		}
	}
}

// Close implements Transport.
func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.closed:
	default:
		close(n.closed)
	}
	for _, c := range n.conns {
		_ = c.Close()
	}
	return nil
}

// Sender adapts a Network into a paxos.Sender for node self: SendTo
// records every Commander call the caller makes, encodes each, and ships
// them as one Envelope per call, in call order.
func (n *Network) Sender(self paxos.NodeId, sm paxos.ReplicatedState) paxos.Sender {
	return &networkSender{net: n, self: self, sm: sm}
}

type networkSender struct {
	net  *Network
	self paxos.NodeId
	sm   paxos.ReplicatedState
}

func (s *networkSender) SendTo(node paxos.NodeId, f func(paxos.Commander)) {
	rec := &recorder{from: s.self, to: node}
	f(rec)
	for _, env := range rec.envs {
		if err := s.net.Send(env); err != nil {
			level.Warn(s.net.logger).Log("event", "send_error", "to", node, "err", err)
		}
	}
}

func (s *networkSender) StateMachine() paxos.ReplicatedState { return s.sm }

func gobMarshal(v interface{}) ([]byte, error) {
	return encode(v)
}

func gobUnmarshal(data []byte, v *Envelope) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}
