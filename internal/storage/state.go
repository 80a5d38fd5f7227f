package storage

import (
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/senutpal/quorum/internal/paxos"
)

// State adapts a Log into a paxos.ReplicatedState: every decided,
// non-empty value Replica drains is appended to the log, in order, and
// tracked as the current "chosen value" for callers that only care about
// the latest decision rather than the full sequence.
type State struct {
	mu     sync.RWMutex
	log    Log
	logger log.Logger

	lastSlot  paxos.Slot
	lastValue []byte
	hasValue  bool
}

// NewState wraps backing in a paxos.ReplicatedState. A nil logger
// discards log lines.
func NewState(backing Log, logger log.Logger) *State {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &State{log: backing, logger: logger}
}

// Execute implements paxos.ReplicatedState.
func (s *State) Execute(slot paxos.Slot, val []byte) {
	if err := s.log.Put(slot, val); err != nil {
		level.Warn(s.logger).Log("event", "log_put_failed", "slot", slot, "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSlot = slot
	s.lastValue = val
	s.hasValue = true
}

// Last returns the most recently decided (slot, value), or ok=false if
// nothing has been decided yet.
func (s *State) Last() (slot paxos.Slot, val []byte, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSlot, s.lastValue, s.hasValue
}

// At returns the decided value for slot, or ok=false if it hasn't been
// decided (or has been truncated from the log).
func (s *State) At(slot paxos.Slot) (val []byte, ok bool) {
	return s.log.Get(slot)
}
