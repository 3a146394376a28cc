package kvdb

import "github.com/pkg/errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvdb: not found")

// Database is the minimal kv engine interface used by the substate store.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Close() error
	NewBatch() Batch
	NewIteratorWithPrefix(prefix []byte) Iterator
}

// Batch is a write-only database that commits changes on Write.
type Batch interface {
	ValueSize() int
	Write() error
	Reset()
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Iterator iterates over a database's key/value pairs in ascending key order.
// The first call to Next moves to the first pair. Key and Value are only
// valid until the next call to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}
