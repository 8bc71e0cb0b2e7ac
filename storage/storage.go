// Package storage persists verbatim gateway payloads keyed by stream kind.
// Payloads are gzip-compressed at rest and immutable once written.
package storage

import (
	"fmt"

	"github.com/NethermindEth/feedermirror/db"
	"github.com/NethermindEth/feedermirror/utils"
)

type Store struct {
	db db.KeyValueStore
}

func New(database db.KeyValueStore) *Store {
	return &Store{db: database}
}

// Put durably associates payload with key. Safe to call concurrently from
// multiple pipelines; the underlying store provides the locking.
func (s *Store) Put(key, payload []byte) error {
	compressed, err := utils.Compress(payload)
	if err != nil {
		return fmt.Errorf("compress payload for %s: %w", key, err)
	}
	return s.db.Put(key, compressed)
}

// Get returns the payload stored under key, db.ErrKeyNotFound if absent.
func (s *Store) Get(key []byte) ([]byte, error) {
	compressed, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	payload, err := utils.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress payload for %s: %w", key, err)
	}
	return payload, nil
}

// Has probes key existence without reading the payload.
func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}
