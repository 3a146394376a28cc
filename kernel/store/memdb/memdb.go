// Package memdb is an in-memory substate database, used by tests and the fuzzer.
package memdb

import (
	"sort"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/xuperchain/xkernel/kernel/store"
)

// MemDatabase keeps each partition in a red-black tree ordered by sort key.
type MemDatabase struct {
	mutex      sync.RWMutex
	partitions map[string]*partition
}

type partition struct {
	key  store.DbPartitionKey
	tree *redblacktree.Tree
}

var _ store.CommittableSubstateDatabase = (*MemDatabase)(nil)
var _ store.ListableSubstateDatabase = (*MemDatabase)(nil)

func NewMemDatabase() *MemDatabase {
	return &MemDatabase{partitions: make(map[string]*partition)}
}

func (db *MemDatabase) GetSubstate(pk store.DbPartitionKey, sk store.DbSortKey) ([]byte, bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	p, ok := db.partitions[string(pk.Bytes())]
	if !ok {
		return nil, false, nil
	}
	v, found := p.tree.Get(string(sk))
	if !found {
		return nil, false, nil
	}
	return append([]byte(nil), v.([]byte)...), true, nil
}

func (db *MemDatabase) ListEntries(pk store.DbPartitionKey) ([]store.DbEntry, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	p, ok := db.partitions[string(pk.Bytes())]
	if !ok {
		return nil, nil
	}
	entries := make([]store.DbEntry, 0, p.tree.Size())
	it := p.tree.Iterator()
	for it.Next() {
		entries = append(entries, store.DbEntry{
			SortKey: store.DbSortKey(it.Key().(string)),
			Value:   append([]byte(nil), it.Value().([]byte)...),
		})
	}
	return entries, nil
}

func (db *MemDatabase) ListPartitionKeys() ([]store.DbPartitionKey, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	keys := make([]store.DbPartitionKey, 0, len(db.partitions))
	for _, p := range db.partitions {
		keys = append(keys, p.key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Compare(keys[j]) < 0
	})
	return keys, nil
}

// Commit applies all updates atomically.
func (db *MemDatabase) Commit(updates *store.DatabaseUpdates) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, node := range updates.NodeUpdates {
		for _, pu := range node.PartitionUpdates {
			pk := store.DbPartitionKey{NodeKey: node.NodeKey, PartitionNum: pu.PartitionNum}
			id := string(pk.Bytes())
			p, ok := db.partitions[id]
			if pu.Kind == store.PartitionReset || !ok {
				p = &partition{
					key:  store.DbPartitionKey{NodeKey: append([]byte(nil), node.NodeKey...), PartitionNum: pu.PartitionNum},
					tree: redblacktree.NewWith(utils.StringComparator),
				}
				db.partitions[id] = p
			}
			for _, e := range pu.NewValues {
				p.tree.Put(string(e.SortKey), append([]byte(nil), e.Value...))
			}
			for _, u := range pu.Updates {
				if u.Delete {
					p.tree.Remove(string(u.SortKey))
					continue
				}
				p.tree.Put(string(u.SortKey), append([]byte(nil), u.Value...))
			}
			if p.tree.Empty() {
				delete(db.partitions, id)
			}
		}
	}
	return nil
}

// Len is the number of non empty partitions.
func (db *MemDatabase) Len() int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return len(db.partitions)
}
