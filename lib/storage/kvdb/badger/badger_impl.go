package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/xuperchain/xkernel/lib/storage/kvdb"
)

func init() {
	kvdb.Register(kvdb.KVEngineTypeBadger, NewKVDBInstance)
}

// BadgerDatabase wraps a badger instance as kvdb.Database
type BadgerDatabase struct {
	path string
	db   *badger.DB
}

// NewKVDBInstance opens a badger database at param.DBPath
func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	opts := badger.DefaultOptions(param.GetDBPath()).WithLogger(nil)
	if param.GetMemCacheSize() > 0 {
		opts = opts.WithBlockCacheSize(int64(param.GetMemCacheSize()) << 20)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDatabase{path: param.GetDBPath(), db: db}, nil
}

func (bdb *BadgerDatabase) Put(key []byte, value []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bdb *BadgerDatabase) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, kvdb.ErrNotFound
	}
	return value, err
}

func (bdb *BadgerDatabase) Has(key []byte) (bool, error) {
	_, err := bdb.Get(key)
	if err == kvdb.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (bdb *BadgerDatabase) Delete(key []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bdb *BadgerDatabase) Close() error {
	return bdb.db.Close()
}

func (bdb *BadgerDatabase) NewBatch() kvdb.Batch {
	return &badgerBatch{db: bdb.db, wb: bdb.db.NewWriteBatch()}
}

func (bdb *BadgerDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	txn := bdb.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	return &badgerIterator{
		txn:    txn,
		iter:   txn.NewIterator(opts),
		prefix: prefix,
	}
}

type badgerBatch struct {
	db   *badger.DB
	wb   *badger.WriteBatch
	size int
}

func (b *badgerBatch) Put(key, value []byte) error {
	b.size += len(value)
	return b.wb.Set(key, value)
}

func (b *badgerBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.wb.Delete(key)
}

func (b *badgerBatch) Write() error {
	return b.wb.Flush()
}

func (b *badgerBatch) ValueSize() int {
	return b.size
}

func (b *badgerBatch) Reset() {
	b.wb.Cancel()
	b.wb = b.db.NewWriteBatch()
	b.size = 0
}

type badgerIterator struct {
	txn     *badger.Txn
	iter    *badger.Iterator
	prefix  []byte
	started bool
	key     []byte
	value   []byte
	err     error
}

func (it *badgerIterator) Next() bool {
	if it.iter == nil {
		return false
	}
	if !it.started {
		it.iter.Seek(it.prefix)
		it.started = true
	} else {
		it.iter.Next()
	}
	if !it.iter.ValidForPrefix(it.prefix) {
		return false
	}
	item := it.iter.Item()
	it.key = item.KeyCopy(it.key[:0])
	it.value, it.err = item.ValueCopy(it.value[:0])
	return it.err == nil
}

func (it *badgerIterator) Key() []byte {
	return it.key
}

func (it *badgerIterator) Value() []byte {
	return it.value
}

func (it *badgerIterator) Error() error {
	return it.err
}

func (it *badgerIterator) Release() {
	if it.iter == nil {
		return
	}
	it.iter.Close()
	it.txn.Discard()
	it.iter = nil
}
