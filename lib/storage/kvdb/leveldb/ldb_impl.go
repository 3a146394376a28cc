package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/xuperchain/xkernel/lib/storage/kvdb"
)

const (
	defaultCache = 16
	defaultFds   = 16
)

func init() {
	kvdb.Register(kvdb.KVEngineTypeLDB, NewKVDBInstance)
	kvdb.Register(kvdb.KVEngineTypeMemory, NewMemKVDBInstance)
}

// LDBDatabase define data structure of storage
type LDBDatabase struct {
	fn string
	db *leveldb.DB
}

// NewKVDBInstance opens a file backed leveldb
func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	cache, fds := param.GetMemCacheSize(), param.GetFileHandlersCacheSize()
	if cache < defaultCache {
		cache = defaultCache
	}
	if fds < defaultFds {
		fds = defaultFds
	}

	db, err := leveldb.OpenFile(param.GetDBPath(), &opt.Options{
		OpenFilesCacheCapacity: fds,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(param.GetDBPath(), nil)
	}
	// (Re)check for errors and abort if opening of the db failed
	if err != nil {
		return nil, err
	}

	return &LDBDatabase{fn: param.GetDBPath(), db: db}, nil
}

// NewMemKVDBInstance opens a leveldb over in-memory storage
func NewMemKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LDBDatabase{fn: "memory", db: db}, nil
}

// Path returns the path to the database directory.
func (db *LDBDatabase) Path() string {
	return db.fn
}

// Put puts the given key / value to the queue
func (db *LDBDatabase) Put(key []byte, value []byte) error {
	return db.db.Put(key, value, nil)
}

// Has if the given key exists
func (db *LDBDatabase) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

// Get returns the given key if it's present.
func (db *LDBDatabase) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dat, nil
}

// Delete deletes the key from the queue and database
func (db *LDBDatabase) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

// Close close database instance
func (db *LDBDatabase) Close() error {
	return db.db.Close()
}

// NewIteratorWithPrefix new a iterator with prefix
func (db *LDBDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	return db.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// NewBatch new a batch for leveldb
func (db *LDBDatabase) NewBatch() kvdb.Batch {
	return &LdbBatch{db: db.db, b: new(leveldb.Batch)}
}

// LdbBatch define a batch structure
type LdbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

// Put put a key-value into batch
func (b *LdbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

// Delete delete a key from batch
func (b *LdbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

// Write write batch to db
func (b *LdbBatch) Write() error {
	return b.db.Write(b.b, nil)
}

// ValueSize return value size in batch
func (b *LdbBatch) ValueSize() int {
	return b.size
}

// Reset reset batch
func (b *LdbBatch) Reset() {
	b.b.Reset()
	b.size = 0
}
