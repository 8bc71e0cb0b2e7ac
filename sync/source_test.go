package sync_test

import (
	"context"
	"fmt"
	stdsync "sync"
)

// fakeSource is an in-memory DataSource recording every fetch, so tests can
// assert exactly how often each pipeline hits the upstream.
type fakeSource struct {
	mu stdsync.Mutex

	blocks  map[uint64][]byte
	states  map[uint64][]byte
	classes map[string][]byte

	blockCalls []uint64
	stateCalls []uint64
	classCalls []string

	// failures[key] holds how many times that fetch still fails before
	// succeeding
	failures map[string]int

	onFetch func()
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		blocks:   make(map[uint64][]byte),
		states:   make(map[uint64][]byte),
		classes:  make(map[string][]byte),
		failures: make(map[string]int),
	}
}

func (f *fakeSource) Block(_ context.Context, number uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls = append(f.blockCalls, number)
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.fetch(f.blocks[number], fmt.Sprintf("block_%d", number))
}

func (f *fakeSource) StateUpdate(_ context.Context, number uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls = append(f.stateCalls, number)
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.fetch(f.states[number], fmt.Sprintf("state_%d", number))
}

func (f *fakeSource) ClassDefinition(_ context.Context, hash string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classCalls = append(f.classCalls, hash)
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.fetch(f.classes[hash], "class_"+hash)
}

func (f *fakeSource) fetch(payload []byte, key string) ([]byte, error) {
	if remaining := f.failures[key]; remaining > 0 {
		f.failures[key] = remaining - 1
		return nil, fmt.Errorf("fetch %s: 502 Bad Gateway", key)
	}
	if payload == nil {
		return nil, fmt.Errorf("fetch %s: 500 Internal Server Error", key)
	}
	return payload, nil
}

func (f *fakeSource) blockCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blockCalls)
}

func (f *fakeSource) classCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.classCalls)
}
