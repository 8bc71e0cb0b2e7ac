package sync

import (
	stdsync "sync"

	"github.com/NethermindEth/feedermirror/storage"
)

// HeadTracker holds the watermark of one sequential stream: the highest
// sequence number N such that 0..N are all durably stored. The watermark is
// derived state, rebuilt from the store at startup and never persisted.
// Many readers may inspect it concurrently; exactly one pipeline advances
// it, in increasing order only.
type HeadTracker struct {
	mu      stdsync.RWMutex
	height  uint64
	started bool
}

// Head returns the watermark, or false if the stream has never stored
// sequence 0.
func (t *HeadTracker) Head() (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height, t.started
}

// Advance moves the watermark to n. Callers only advance after the write of
// sequence n has been confirmed durable.
func (t *HeadTracker) Advance(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.height = n
	t.started = true
}

// Recover rebuilds the watermark by probing the store: absent sequence 0
// means the stream never started, otherwise the cursor walks forward until
// the first gap. Linear in the stream height, run once per process start.
func (t *HeadTracker) Recover(store *storage.Store, kind storage.StreamKind) error {
	has, err := store.Has(kind.Key(0))
	if err != nil {
		return err
	}
	if !has {
		return nil
	}

	cursor := uint64(0)
	for {
		has, err = store.Has(kind.Key(cursor + 1))
		if err != nil {
			return err
		}
		if !has {
			break
		}
		cursor++
	}

	t.Advance(cursor)
	return nil
}
