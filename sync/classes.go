package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/NethermindEth/feedermirror/db"
	"github.com/NethermindEth/feedermirror/service"
	"github.com/NethermindEth/feedermirror/starknet"
	"github.com/NethermindEth/feedermirror/storage"
	"github.com/NethermindEth/feedermirror/utils"
)

var (
	_ service.Service  = (*ClassSynchronizer)(nil)
	_ service.Reporter = (*ClassSynchronizer)(nil)
)

// ClassSynchronizer mirrors the class definitions referenced by stored state
// updates. It keeps no watermark of its own: every run re-walks the state
// stream from 0 and relies on the store existence check to skip classes
// already mirrored. A class missed because of a failed fetch is picked up
// by the next process run.
type ClassSynchronizer struct {
	source     DataSource
	store      *storage.Store
	horizon    uint64
	retryDelay time.Duration
	log        utils.SimpleLogger
	listener   EventListener

	summaryMu stdsync.Mutex
	summary   string
}

func NewClassSynchronizer(source DataSource, store *storage.Store, horizon uint64,
	log utils.SimpleLogger,
) *ClassSynchronizer {
	return &ClassSynchronizer{
		source:     source,
		store:      store,
		horizon:    horizon,
		retryDelay: 5 * time.Second,
		log:        log,
		listener:   &SelectiveListener{},
	}
}

// WithListener registers an EventListener
func (s *ClassSynchronizer) WithListener(listener EventListener) *ClassSynchronizer {
	s.listener = listener
	return s
}

// WithRetryDelay sets how long the pipeline waits for a state update the
// producer has not stored yet
func (s *ClassSynchronizer) WithRetryDelay(d time.Duration) *ClassSynchronizer {
	s.retryDelay = d
	return s
}

// Run walks state updates 0..horizon, extracting and mirroring referenced
// classes. An absent state update is a wait on the producing pipeline, not
// a failure. The cursor advances as soon as extraction succeeds; per-class
// failures are logged and never stall the stream.
func (s *ClassSynchronizer) Run(ctx context.Context) error {
	cursor := uint64(0)
	defer func() { s.setSummary(cursor) }()

	for cursor <= s.horizon {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		payload, err := s.store.Get(storage.StateUpdateStream.Key(cursor))
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				s.log.Debugw("State update not stored yet, waiting", "number", cursor)
			} else {
				s.log.Errorw("Failed reading state update, will retry", "number", cursor, "err", err)
			}
			if !s.sleep(ctx) {
				return nil
			}
			continue
		}

		hashes, err := starknet.ExtractClassHashes(payload)
		if err != nil {
			// A malformed payload will not heal itself; skip it.
			s.log.Errorw("Failed extracting class hashes from state update, skipping",
				"number", cursor, "err", err)
			cursor++
			continue
		}

		// The cursor advances regardless of how the per-class work below
		// fares; class fetches never stall the stream.
		cursor++
		s.syncClasses(ctx, cursor-1, hashes)
	}

	return nil
}

func (s *ClassSynchronizer) syncClasses(ctx context.Context, stateNumber uint64, hashes []string) {
	for _, hash := range hashes {
		key := storage.ClassKey(hash)
		present, err := s.store.Has(key)
		if err != nil {
			s.log.Errorw("Failed probing class existence", "classHash", hash, "err", err)
			continue
		}
		if present {
			continue
		}

		fetchTimer := time.Now()
		payload, err := s.source.ClassDefinition(ctx, hash)
		if err != nil {
			s.log.Errorw("Failed fetching class", "classHash", hash, "err", err)
			continue
		}
		if err := s.store.Put(key, payload); err != nil {
			s.log.Errorw("Failed storing class", "classHash", hash, "err", err)
			continue
		}

		s.listener.OnSyncStepDone(storage.ClassStream, stateNumber, time.Since(fetchTimer))
		s.log.Infow("Fetched class", "classHash", hash)
	}
}

// Summary describes the state-update range scanned by the last Run.
func (s *ClassSynchronizer) Summary() string {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	return s.summary
}

func (s *ClassSynchronizer) setSummary(next uint64) {
	var summary string
	switch {
	case next == 0:
		summary = "no state updates scanned for classes"
	case next > s.horizon:
		summary = fmt.Sprintf("scanned state updates 0 to %d for classes, reached horizon", next-1)
	default:
		summary = fmt.Sprintf("scanned state updates 0 to %d for classes, stopped before horizon %d",
			next-1, s.horizon)
	}

	s.summaryMu.Lock()
	s.summary = summary
	s.summaryMu.Unlock()
}

func (s *ClassSynchronizer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.retryDelay):
		return true
	}
}
