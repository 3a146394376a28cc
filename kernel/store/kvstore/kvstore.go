// Package kvstore persists substates in a kvdb engine (leveldb, badger or memory).
package kvstore

import (
	"bytes"

	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru"

	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/lib/logs"
	"github.com/xuperchain/xkernel/lib/metrics"
	"github.com/xuperchain/xkernel/lib/storage/kvdb"
)

const (
	partitionKeyLength = store.NodeKeyLength + 1

	flagPlain  byte = 0
	flagSnappy byte = 1
)

type Options struct {
	// CacheSize is the number of substates kept in the read cache, 0 disables it.
	CacheSize int
	// Compress stores values snappy encoded.
	Compress bool
}

// KVStore lays substates out as NodeKey || PartitionNum || SortKey.
type KVStore struct {
	db    kvdb.Database
	cache *lru.Cache
	opts  Options
	log   logs.Logger
}

var _ store.CommittableSubstateDatabase = (*KVStore)(nil)
var _ store.ListableSubstateDatabase = (*KVStore)(nil)

type cacheItem struct {
	value []byte
	found bool
}

func NewKVStore(db kvdb.Database, opts Options, log logs.Logger) (*KVStore, error) {
	s := &KVStore{db: db, opts: opts, log: log}
	if opts.CacheSize > 0 {
		cache, err := lru.New(opts.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// OpenKVStore creates the kv engine described by param.
func OpenKVStore(param *kvdb.KVParameter, opts Options, log logs.Logger) (*KVStore, error) {
	db, err := kvdb.CreateKVInstance(param)
	if err != nil {
		return nil, store.WrapDbError(err, "open kv engine")
	}
	return NewKVStore(db, opts, log)
}

func (s *KVStore) Close() error {
	return s.db.Close()
}

func makeKey(pk store.DbPartitionKey, sk store.DbSortKey) []byte {
	key := make([]byte, 0, partitionKeyLength+len(sk))
	key = append(key, pk.Bytes()...)
	return append(key, sk...)
}

func (s *KVStore) encode(value []byte) []byte {
	if !s.opts.Compress {
		return append([]byte{flagPlain}, value...)
	}
	return append([]byte{flagSnappy}, snappy.Encode(nil, value)...)
}

func decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, &store.DbError{Err: kvdb.ErrNotFound}
	}
	switch raw[0] {
	case flagPlain:
		return append([]byte(nil), raw[1:]...), nil
	case flagSnappy:
		v, err := snappy.Decode(nil, raw[1:])
		if err != nil {
			return nil, store.WrapDbError(err, "snappy decode")
		}
		return v, nil
	}
	return nil, &store.DbError{Err: errUnknownEncoding}
}

func (s *KVStore) GetSubstate(pk store.DbPartitionKey, sk store.DbSortKey) ([]byte, bool, error) {
	key := makeKey(pk, sk)
	if s.cache != nil {
		if item, ok := s.cache.Get(string(key)); ok {
			metrics.StoreAccessCounter.WithLabelValues("cache_hit").Inc()
			ci := item.(*cacheItem)
			return append([]byte(nil), ci.value...), ci.found, nil
		}
	}
	raw, err := s.db.Get(key)
	if err == kvdb.ErrNotFound {
		s.cachePut(key, nil, false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.WrapDbError(err, "get substate")
	}
	value, err := decode(raw)
	if err != nil {
		return nil, false, err
	}
	s.cachePut(key, value, true)
	return value, true, nil
}

func (s *KVStore) cachePut(key, value []byte, found bool) {
	if s.cache == nil {
		return
	}
	s.cache.Add(string(key), &cacheItem{value: append([]byte(nil), value...), found: found})
}

func (s *KVStore) ListEntries(pk store.DbPartitionKey) ([]store.DbEntry, error) {
	it := s.db.NewIteratorWithPrefix(pk.Bytes())
	defer it.Release()

	var entries []store.DbEntry
	for it.Next() {
		value, err := decode(it.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, store.DbEntry{
			SortKey: store.DbSortKey(append([]byte(nil), it.Key()[partitionKeyLength:]...)),
			Value:   value,
		})
	}
	if err := it.Error(); err != nil {
		return nil, store.WrapDbError(err, "list entries")
	}
	return entries, nil
}

func (s *KVStore) ListPartitionKeys() ([]store.DbPartitionKey, error) {
	it := s.db.NewIteratorWithPrefix(nil)
	defer it.Release()

	var keys []store.DbPartitionKey
	var last []byte
	for it.Next() {
		key := it.Key()
		if len(key) < partitionKeyLength {
			continue
		}
		prefix := key[:partitionKeyLength]
		if last != nil && bytes.Equal(prefix, last) {
			continue
		}
		last = append([]byte(nil), prefix...)
		keys = append(keys, store.DbPartitionKey{
			NodeKey:      append([]byte(nil), prefix[:store.NodeKeyLength]...),
			PartitionNum: prefix[store.NodeKeyLength],
		})
	}
	if err := it.Error(); err != nil {
		return nil, store.WrapDbError(err, "list partitions")
	}
	return keys, nil
}

// Commit writes all updates in one batch.
func (s *KVStore) Commit(updates *store.DatabaseUpdates) error {
	batch := s.db.NewBatch()
	for _, node := range updates.NodeUpdates {
		for _, pu := range node.PartitionUpdates {
			pk := store.DbPartitionKey{NodeKey: node.NodeKey, PartitionNum: pu.PartitionNum}
			if pu.Kind == store.PartitionReset {
				if err := s.resetPartition(batch, pk, pu.NewValues); err != nil {
					return err
				}
				continue
			}
			for _, u := range pu.Updates {
				key := makeKey(pk, u.SortKey)
				var err error
				if u.Delete {
					err = batch.Delete(key)
				} else {
					err = batch.Put(key, s.encode(u.Value))
				}
				if err != nil {
					return store.WrapDbError(err, "batch update")
				}
				s.invalidate(key)
			}
		}
	}
	if err := batch.Write(); err != nil {
		return store.WrapDbError(err, "commit batch")
	}
	if s.log != nil {
		s.log.Debug("substate updates committed", "nodes", len(updates.NodeUpdates), "substates", updates.Len())
	}
	return nil
}

func (s *KVStore) resetPartition(batch kvdb.Batch, pk store.DbPartitionKey, values []store.DbEntry) error {
	keep := make(map[string]struct{}, len(values))
	for _, e := range values {
		keep[string(e.SortKey)] = struct{}{}
	}

	it := s.db.NewIteratorWithPrefix(pk.Bytes())
	var stale [][]byte
	for it.Next() {
		if _, ok := keep[string(it.Key()[partitionKeyLength:])]; !ok {
			stale = append(stale, append([]byte(nil), it.Key()...))
		}
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return store.WrapDbError(err, "scan partition")
	}

	for _, key := range stale {
		if err := batch.Delete(key); err != nil {
			return store.WrapDbError(err, "batch delete")
		}
		s.invalidate(key)
	}
	for _, e := range values {
		key := makeKey(pk, e.SortKey)
		if err := batch.Put(key, s.encode(e.Value)); err != nil {
			return store.WrapDbError(err, "batch put")
		}
		s.invalidate(key)
	}
	return nil
}

func (s *KVStore) invalidate(key []byte) {
	if s.cache != nil {
		s.cache.Remove(string(key))
	}
}
