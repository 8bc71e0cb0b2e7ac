package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/NethermindEth/feedermirror/db/pebble"
	"github.com/NethermindEth/feedermirror/storage"
	"github.com/NethermindEth/feedermirror/sync"
	"github.com/NethermindEth/feedermirror/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptyDiff = `{"state_diff":{"deployed_contracts":[],"declared_classes":[]}}`

func storeStateUpdates(t *testing.T, store *storage.Store, payloads map[uint64]string, horizon uint64) {
	t.Helper()
	for n := uint64(0); n <= horizon; n++ {
		payload, ok := payloads[n]
		if !ok {
			payload = emptyDiff
		}
		require.NoError(t, store.Put(storage.StateUpdateStream.Key(n), []byte(payload)))
	}
}

func TestClassSyncExtractsAndDeduplicates(t *testing.T) {
	source := newFakeSource()
	source.classes["0xAA"] = []byte(`{"program":"aa"}`)
	source.classes["0xBB"] = []byte(`{"program":"bb"}`)

	store := storage.New(pebble.NewMemTest(t))
	storeStateUpdates(t, store, map[uint64]string{
		5: `{"state_diff":{
			"deployed_contracts":[{"address":"0x1","class_hash":"0xAA"}],
			"declared_classes":[{"class_hash":"0xBB"},{"class_hash":"0xAA"}]
		}}`,
	}, 5)

	s := sync.NewClassSynchronizer(source, store, 5, utils.NewNopZapLogger())
	require.NoError(t, s.Run(context.Background()))

	// the repeated 0xAA was deduplicated by the existence check: two
	// fetches, not three
	assert.Equal(t, []string{"0xAA", "0xBB"}, source.classCalls)

	got, err := store.Get(storage.ClassKey("0xAA"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"program":"aa"}`), got)
	got, err = store.Get(storage.ClassKey("0xBB"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"program":"bb"}`), got)

	assert.Equal(t, "scanned state updates 0 to 5 for classes, reached horizon", s.Summary())
}

func TestClassSyncIdempotentRerun(t *testing.T) {
	source := newFakeSource()
	source.classes["0xAA"] = []byte(`{"program":"aa"}`)

	store := storage.New(pebble.NewMemTest(t))
	storeStateUpdates(t, store, map[uint64]string{
		0: `{"state_diff":{"deployed_contracts":[{"class_hash":"0xAA"}],"declared_classes":[]}}`,
	}, 2)

	first := sync.NewClassSynchronizer(source, store, 2, utils.NewNopZapLogger())
	require.NoError(t, first.Run(context.Background()))
	require.Equal(t, 1, source.classCallCount())

	// a second full run over the unchanged range fetches nothing
	second := sync.NewClassSynchronizer(source, store, 2, utils.NewNopZapLogger())
	require.NoError(t, second.Run(context.Background()))
	assert.Equal(t, 1, source.classCallCount())
}

func TestClassSyncSkipsMalformedStateUpdate(t *testing.T) {
	source := newFakeSource()
	source.classes["0xCC"] = []byte(`{"program":"cc"}`)

	store := storage.New(pebble.NewMemTest(t))
	storeStateUpdates(t, store, map[uint64]string{
		0: `{"state_diff":`,
		1: `{"state_diff":{"deployed_contracts":[{"class_hash":"0xCC"}],"declared_classes":[]}}`,
	}, 1)

	s := sync.NewClassSynchronizer(source, store, 1, utils.NewNopZapLogger())
	require.NoError(t, s.Run(context.Background()))

	// the malformed update was skipped, the stream still advanced
	assert.Equal(t, []string{"0xCC"}, source.classCalls)
}

func TestClassSyncWaitsForProducer(t *testing.T) {
	source := newFakeSource()

	store := storage.New(pebble.NewMemTest(t))
	storeStateUpdates(t, store, nil, 1)

	s := sync.NewClassSynchronizer(source, store, 2, utils.NewNopZapLogger()).
		WithRetryDelay(5 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	// the pipeline is blocked waiting on state update 2
	select {
	case err := <-done:
		t.Fatalf("run returned early: %v", err)
	case <-time.After(25 * time.Millisecond):
	}

	require.NoError(t, store.Put(storage.StateUpdateStream.Key(2), []byte(emptyDiff)))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not finish after the state update appeared")
	}
	assert.Equal(t, "scanned state updates 0 to 2 for classes, reached horizon", s.Summary())
}

func TestClassSyncFetchFailureDoesNotStall(t *testing.T) {
	source := newFakeSource()
	source.classes["0xAA"] = []byte(`{"program":"aa"}`)
	// 0xBB is never available upstream

	store := storage.New(pebble.NewMemTest(t))
	storeStateUpdates(t, store, map[uint64]string{
		0: `{"state_diff":{"deployed_contracts":[],"declared_classes":[{"class_hash":"0xBB"}]}}`,
		1: `{"state_diff":{"deployed_contracts":[],"declared_classes":[{"class_hash":"0xAA"}]}}`,
	}, 1)

	s := sync.NewClassSynchronizer(source, store, 1, utils.NewNopZapLogger())
	require.NoError(t, s.Run(context.Background()))

	has, err := store.Has(storage.ClassKey("0xAA"))
	require.NoError(t, err)
	assert.True(t, has)
	has, err = store.Has(storage.ClassKey("0xBB"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestClassSyncCancelledWhileWaiting(t *testing.T) {
	source := newFakeSource()
	store := storage.New(pebble.NewMemTest(t))

	ctx, cancel := context.WithCancel(context.Background())
	s := sync.NewClassSynchronizer(source, store, 5, utils.NewNopZapLogger()).
		WithRetryDelay(time.Hour)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop on cancellation")
	}
	assert.Equal(t, "no state updates scanned for classes", s.Summary())
}
