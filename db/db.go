package db

import "io"

// Represents a data store that can read from the database
type KeyValueReader interface {
	// Checks if a key exists in the data store
	Has(key []byte) (bool, error)
	// Retrieves the value for a given key, ErrKeyNotFound if absent
	Get(key []byte) ([]byte, error)
}

// Represents a data store that can write to the database
type KeyValueWriter interface {
	// Durably and atomically associates value with key, overwriting any prior value
	Put(key, value []byte) error
}

// Represents a key-value data store safe for concurrent use by multiple
// readers and writers. Implementations provide their own internal
// concurrency control; callers need no external locking for single-key
// operations.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	io.Closer
}
