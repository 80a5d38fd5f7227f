package node

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"github.com/senutpal/quorum/internal/paxos"
)

// proposeRequest is the wire shape clients of the admin API post to submit
// a value for replication.
type proposeRequest struct {
	Value []byte `json:"value"`
}

type proposeResponse struct {
	Accepted      bool   `json:"accepted"`
	CorrelationID string `json:"correlation_id"`
	Error         string `json:"error,omitempty"`
}

type statusResponse struct {
	ID       uint32 `json:"id"`
	Status   string `json:"status"`
	LastSlot uint64 `json:"last_slot,omitempty"`
	HasLast  bool   `json:"has_last"`
}

// Admin returns an http.Handler exposing a small client-facing API: POST
// /propose submits a value, GET /status reports the node's current role
// and last decided slot. It is separate from the peer-to-peer envelope
// protocol served by transport.Network.
func (n *Node) Admin() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/propose", n.handlePropose)
	mux.HandleFunc("/status", n.handleStatus)
	return mux
}

func (n *Node) handlePropose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cid := uuid.NewString()
	level.Info(n.logger).Log("event", "propose_received", "correlation_id", cid, "bytes", len(req.Value))

	err := n.Propose(req.Value)
	resp := proposeResponse{Accepted: err == nil, CorrelationID: cid}
	if err != nil {
		resp.Error = err.Error()
		if errors.Is(err, paxos.ErrQueueFull) {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{ID: uint32(n.ID()), Status: n.Status().String()}
	if slot, _, ok := n.Last(); ok {
		resp.LastSlot = uint64(slot)
		resp.HasLast = true
	}
	_ = json.NewEncoder(w).Encode(resp)
}
