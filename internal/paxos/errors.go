package paxos

import "errors"

// ErrQueueFull is returned by Replica.Propose when the bounded proposal
// queue is full and the value was rejected rather than queued. Surfacing
// this to a client is the host's responsibility; the core only refuses to
// grow the queue further.
var ErrQueueFull = errors.New("paxos: proposal queue is full")
