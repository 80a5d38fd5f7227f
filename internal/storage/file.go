package storage

import (
	"encoding/gob"
	"io"
	"os"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/senutpal/quorum/internal/paxos"
)

// record is the on-disk shape of one decided slot, appended in commit
// order. gob is used rather than a schema'd format because this is a
// node-local log with no cross-language wire requirement; a single Go
// process writes it and the same process reads it back.
type record struct {
	Slot paxos.Slot
	Val  []byte
}

// File is a Log backed by an append-only file. The whole file is replayed
// into memory on open; writes append a single gob record and fsync before
// returning, so a decision acknowledged to Replica survives a crash.
type File struct {
	mu  sync.Mutex
	f   *os.File
	enc *gob.Encoder

	mem    *Memory
	logger log.Logger
}

// OpenFile opens (creating if necessary) the log file at path and replays
// its contents. A nil logger discards log lines.
func OpenFile(path string, logger log.Logger) (*File, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	mem := NewMemory()
	dec := gob.NewDecoder(f)
	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if err != io.EOF {
				level.Warn(logger).Log("event", "replay_decode_failed", "path", path, "err", err)
			}
			break
		}
		_ = mem.Put(rec.Slot, rec.Val)
	}

	return &File{f: f, enc: gob.NewEncoder(f), mem: mem, logger: logger}, nil
}

func (fl *File) Put(slot paxos.Slot, val []byte) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if _, ok := fl.mem.Get(slot); ok {
		return nil
	}
	if err := fl.enc.Encode(record{Slot: slot, Val: val}); err != nil {
		level.Warn(fl.logger).Log("event", "encode_failed", "slot", slot, "err", err)
		return err
	}
	if err := fl.f.Sync(); err != nil {
		level.Warn(fl.logger).Log("event", "fsync_failed", "slot", slot, "err", err)
		return err
	}
	return fl.mem.Put(slot, val)
}

func (fl *File) Get(slot paxos.Slot) ([]byte, bool) {
	return fl.mem.Get(slot)
}

func (fl *File) LastSlot() (paxos.Slot, bool) {
	return fl.mem.LastSlot()
}

func (fl *File) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.f.Close()
}
