// Package sync contains the ingestion pipelines that mirror the feeder
// gateway into local storage: two sequential synchronizers (blocks, state
// updates) sharing one engine, and a dependent class synchronizer that mines
// stored state updates for content-addressed class definitions.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/NethermindEth/feedermirror/service"
	"github.com/NethermindEth/feedermirror/storage"
	"github.com/NethermindEth/feedermirror/utils"
)

// DataSource is the slice of the feeder client the pipelines consume,
// returning verbatim payloads.
type DataSource interface {
	Block(ctx context.Context, blockNumber uint64) ([]byte, error)
	StateUpdate(ctx context.Context, blockNumber uint64) ([]byte, error)
	ClassDefinition(ctx context.Context, classHash string) ([]byte, error)
}

var (
	_ service.Service  = (*Synchronizer)(nil)
	_ service.Reporter = (*Synchronizer)(nil)
)

// Synchronizer resumes and advances one sequential stream. It fetches
// sequence numbers from the watermark forward, writes each payload to the
// store and only then advances the watermark, so a crash at any point
// resumes exactly where the last confirmed write left off.
type Synchronizer struct {
	kind       storage.StreamKind
	fetch      func(ctx context.Context, number uint64) ([]byte, error)
	store      *storage.Store
	head       *HeadTracker
	horizon    uint64
	retryDelay time.Duration
	log        utils.SimpleLogger
	listener   EventListener

	summaryMu stdsync.Mutex
	summary   string
}

func NewBlockSynchronizer(source DataSource, store *storage.Store, head *HeadTracker,
	horizon uint64, log utils.SimpleLogger,
) *Synchronizer {
	return newSynchronizer(storage.BlockStream, source.Block, store, head, horizon, log)
}

func NewStateUpdateSynchronizer(source DataSource, store *storage.Store, head *HeadTracker,
	horizon uint64, log utils.SimpleLogger,
) *Synchronizer {
	return newSynchronizer(storage.StateUpdateStream, source.StateUpdate, store, head, horizon, log)
}

func newSynchronizer(kind storage.StreamKind, fetch func(context.Context, uint64) ([]byte, error),
	store *storage.Store, head *HeadTracker, horizon uint64, log utils.SimpleLogger,
) *Synchronizer {
	return &Synchronizer{
		kind:       kind,
		fetch:      fetch,
		store:      store,
		head:       head,
		horizon:    horizon,
		retryDelay: 5 * time.Second,
		log:        log,
		listener:   &SelectiveListener{},
	}
}

// WithListener registers an EventListener
func (s *Synchronizer) WithListener(listener EventListener) *Synchronizer {
	s.listener = listener
	return s
}

// WithRetryDelay sets how long the pipeline waits before retrying a cursor
// whose fetch failed
func (s *Synchronizer) WithRetryDelay(d time.Duration) *Synchronizer {
	s.retryDelay = d
	return s
}

// Run recovers the stream watermark and syncs from there up to the horizon.
// Fetch failures stall the cursor and are retried forever; a store write
// failure ends the run, since advancing past an unconfirmed write would
// break the watermark contract. The returned summary reports the range
// actually synced.
func (s *Synchronizer) Run(ctx context.Context) error {
	if err := s.head.Recover(s.store, s.kind); err != nil {
		return fmt.Errorf("recover %s watermark: %w", s.kind, err)
	}

	start := uint64(0)
	if head, ok := s.head.Head(); ok {
		start = head + 1
		s.log.Infow("Resuming sync", "stream", s.kind, "watermark", head)
	}

	cursor := start
	defer func() { s.setSummary(start, cursor) }()

	for cursor <= s.horizon {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fetchTimer := time.Now()
		payload, err := s.fetch(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Errorw("Failed fetching from the feeder, will retry",
				"stream", s.kind, "number", cursor, "err", err)
			if !s.sleep(ctx) {
				return nil
			}
			continue
		}

		if err := s.store.Put(s.kind.Key(cursor), payload); err != nil {
			return fmt.Errorf("store %s %d: %w", s.kind, cursor, err)
		}

		s.head.Advance(cursor)
		s.listener.OnSyncStepDone(s.kind, cursor, time.Since(fetchTimer))
		s.log.Infow("Fetched", "stream", s.kind, "number", cursor)
		cursor++
	}

	return nil
}

// Summary describes the range synced by the last Run.
func (s *Synchronizer) Summary() string {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	return s.summary
}

func (s *Synchronizer) setSummary(start, next uint64) {
	var summary string
	switch {
	case start > s.horizon:
		summary = fmt.Sprintf("no %s entries to sync, already at horizon %d", s.kind, s.horizon)
	case next == start:
		summary = fmt.Sprintf("no %s entries synced, stopped at %d", s.kind, start)
	case next > s.horizon:
		summary = fmt.Sprintf("synced %s entries %d to %d, reached horizon", s.kind, start, next-1)
	default:
		summary = fmt.Sprintf("synced %s entries %d to %d, stopped before horizon %d",
			s.kind, start, next-1, s.horizon)
	}

	s.summaryMu.Lock()
	s.summary = summary
	s.summaryMu.Unlock()
}

// sleep waits the retry delay, returning false if ctx was cancelled first.
func (s *Synchronizer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.retryDelay):
		return true
	}
}
