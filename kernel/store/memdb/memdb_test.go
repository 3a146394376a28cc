package memdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/store"
)

func TestMemDatabaseCommit(t *testing.T) {
	db := NewMemDatabase()
	pk := store.DbPartitionKey{NodeKey: []byte("node-a"), PartitionNum: 1}

	updates := store.NewDatabaseUpdates()
	p := updates.Node(pk.NodeKey).Partition(pk.PartitionNum, store.PartitionDelta)
	p.Updates = []store.SubstateUpdate{
		{SortKey: store.DbSortKey("b"), Value: []byte("2")},
		{SortKey: store.DbSortKey("a"), Value: []byte("1")},
	}
	require.NoError(t, db.Commit(updates))

	v, ok, err := db.GetSubstate(pk, store.DbSortKey("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	entries, err := db.ListEntries(pk)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, store.DbSortKey("a"), entries[0].SortKey)

	// delta delete
	updates = store.NewDatabaseUpdates()
	updates.Node(pk.NodeKey).Partition(pk.PartitionNum, store.PartitionDelta).Updates = []store.SubstateUpdate{
		{SortKey: store.DbSortKey("a"), Delete: true},
	}
	require.NoError(t, db.Commit(updates))
	_, ok, err = db.GetSubstate(pk, store.DbSortKey("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	// reset replaces the whole partition
	updates = store.NewDatabaseUpdates()
	updates.Node(pk.NodeKey).Partition(pk.PartitionNum, store.PartitionReset).NewValues = []store.DbEntry{
		{SortKey: store.DbSortKey("c"), Value: []byte("3")},
	}
	require.NoError(t, db.Commit(updates))
	entries, err = db.ListEntries(pk)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("3"), entries[0].Value)

	keys, err := db.ListPartitionKeys()
	require.NoError(t, err)
	assert.Equal(t, []store.DbPartitionKey{pk}, keys)

	// emptied partitions disappear
	updates = store.NewDatabaseUpdates()
	updates.Node(pk.NodeKey).Partition(pk.PartitionNum, store.PartitionReset)
	require.NoError(t, db.Commit(updates))
	assert.Equal(t, 0, db.Len())
}
