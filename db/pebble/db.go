package pebble

import (
	"errors"
	"testing"
	"time"

	"github.com/NethermindEth/feedermirror/db"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var _ db.KeyValueStore = (*DB)(nil)

type DB struct {
	pebble   *pebble.DB
	listener db.EventListener
}

// New opens a new database at the given path
func New(path string, logger pebble.Logger) (*DB, error) {
	return newPebble(path, &pebble.Options{Logger: logger})
}

// NewMem opens a new in-memory database
func NewMem() (*DB, error) {
	return newPebble("", &pebble.Options{
		FS: vfs.NewMem(),
	})
}

// NewMemTest opens a new in-memory database, fails the test on error
func NewMemTest(t *testing.T) *DB {
	memDB, err := NewMem()
	if err != nil {
		t.Fatalf("create in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if err := memDB.Close(); err != nil {
			t.Errorf("close in-memory db: %v", err)
		}
	})
	return memDB
}

func newPebble(path string, options *pebble.Options) (*DB, error) {
	pDB, err := pebble.Open(path, options)
	if err != nil {
		return nil, err
	}
	return &DB{pebble: pDB, listener: &db.SelectiveListener{}}, nil
}

// WithListener registers an EventListener
func (d *DB) WithListener(listener db.EventListener) *DB {
	d.listener = listener
	return d
}

// Has : see db.KeyValueReader.Has
func (d *DB) Has(key []byte) (bool, error) {
	_, closer, err := d.pebble.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, closer.Close()
}

// Get : see db.KeyValueReader.Get
func (d *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	defer func() { d.listener.OnIO(false, time.Since(start)) }()

	val, closer, err := d.pebble.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, db.ErrKeyNotFound
		}
		return nil, err
	}
	// val is only valid until closer is released
	value := make([]byte, len(val))
	copy(value, val)
	return value, closer.Close()
}

// Put writes synchronously so that a confirmed put survives a crash.
func (d *DB) Put(key, value []byte) error {
	start := time.Now()
	defer func() { d.listener.OnIO(true, time.Since(start)) }()

	return d.pebble.Set(key, value, pebble.Sync)
}

// Close : see io.Closer.Close
func (d *DB) Close() error {
	return d.pebble.Close()
}

// Impl returns the underlying pebble database
func (d *DB) Impl() *pebble.DB {
	return d.pebble
}
