package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/store/memdb"
	"github.com/xuperchain/xkernel/kernel/types"
)

func testNodeId(et types.EntityType, b byte) types.NodeId {
	var id types.NodeId
	id[0] = byte(et)
	id[types.NodeIdLength-1] = b
	return id
}

func value(s string) *types.IndexedValue {
	return types.NewIndexedValue([]byte(s), nil, nil)
}

type accessLog []StoreAccess

func (l *accessLog) record(a StoreAccess) error {
	*l = append(*l, a)
	return nil
}

func (l accessLog) kinds() []StoreAccessKind {
	var out []StoreAccessKind
	for _, a := range l {
		out = append(out, a.Kind)
	}
	return out
}

// commit a node through a first track so that it exists in db
func seed(t *testing.T, db *memdb.MemDatabase, id types.NodeId, substates types.NodeSubstates) {
	tr := NewTrack(db, nil)
	require.NoError(t, tr.CreateNode(id, substates, nil))
	updates, _, err := tr.Finalize(true)
	require.NoError(t, err)
	require.NoError(t, db.Commit(updates))
}

func TestTrackCreateAndFinalize(t *testing.T) {
	db := memdb.NewMemDatabase()
	id := testNodeId(types.EntityTypeGlobalAccount, 1)
	substates := types.NodeSubstates{}
	substates.Set(0, types.FieldKey(0), value("a"))
	substates.Set(1, types.MapKey([]byte("k")), value("b"))

	var log accessLog
	tr := NewTrack(db, nil)
	require.NoError(t, tr.CreateNode(id, substates, log.record))
	assert.Equal(t, []StoreAccessKind{NewEntryInTrack, NewEntryInTrack}, log.kinds())
	assert.ErrorIs(t, tr.CreateNode(id, nil, nil), ErrNodeAlreadyExists)
	assert.Equal(t, SubstateNew, tr.GetTrackedSubstateInfo(id, 0, types.FieldKey(0)))

	// reads of a new node never touch the db
	log = nil
	_, ok, err := tr.GetSubstate(id, 0, types.FieldKey(5), log.record)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, log)

	updates, info, err := tr.Finalize(true)
	require.NoError(t, err)
	require.Len(t, updates.NodeUpdates, 1)
	require.Len(t, updates.NodeUpdates[0].PartitionUpdates, 2)
	assert.Equal(t, store.PartitionReset, updates.NodeUpdates[0].PartitionUpdates[0].Kind)
	require.Len(t, info, 2)
	assert.Equal(t, CommitInsert, info[0].Kind)

	_, _, err = tr.Finalize(true)
	assert.ErrorIs(t, err, ErrFinalized)

	require.NoError(t, db.Commit(updates))
	report, err := store.CheckDatabase(db, store.SpreadPrefixKeyMapper{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Nodes)
}

func TestTrackReadWriteExisting(t *testing.T) {
	db := memdb.NewMemDatabase()
	id := testNodeId(types.EntityTypeGlobalAccount, 1)
	substates := types.NodeSubstates{}
	substates.Set(0, types.FieldKey(0), value("a"))
	substates.Set(0, types.FieldKey(1), value("b"))
	seed(t, db, id, substates)

	var log accessLog
	tr := NewTrack(db, nil)
	v, ok, err := tr.GetSubstate(id, 0, types.FieldKey(0), log.record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), v.Data())
	_, ok, err = tr.GetSubstate(id, 0, types.FieldKey(7), log.record)
	require.NoError(t, err)
	assert.False(t, ok)
	// second read is served by the track
	_, _, err = tr.GetSubstate(id, 0, types.FieldKey(0), log.record)
	require.NoError(t, err)
	assert.Equal(t, []StoreAccessKind{ReadFromDb, ReadFromDbNotFound}, log.kinds())
	assert.Equal(t, SubstateUnmodified, tr.GetTrackedSubstateInfo(id, 0, types.FieldKey(0)))

	require.NoError(t, tr.SetSubstate(id, 0, types.FieldKey(0), value("a2"), log.record))
	assert.Equal(t, SubstateUpdated, tr.GetTrackedSubstateInfo(id, 0, types.FieldKey(0)))
	require.NoError(t, tr.SetSubstate(id, 0, types.FieldKey(7), value("new"), log.record))
	assert.Equal(t, SubstateNew, tr.GetTrackedSubstateInfo(id, 0, types.FieldKey(7)))
	old, ok, err := tr.RemoveSubstate(id, 0, types.FieldKey(1), log.record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), old.Data())

	updates, info, err := tr.Finalize(true)
	require.NoError(t, err)
	require.Len(t, updates.NodeUpdates, 1)
	pu := updates.NodeUpdates[0].PartitionUpdates[0]
	assert.Equal(t, store.PartitionDelta, pu.Kind)
	assert.Len(t, pu.Updates, 3)
	kinds := map[StoreCommitKind]int{}
	for _, c := range info {
		kinds[c.Kind]++
	}
	assert.Equal(t, map[StoreCommitKind]int{CommitUpdate: 1, CommitInsert: 1, CommitDelete: 1}, kinds)

	require.NoError(t, db.Commit(updates))
	tr = NewTrack(db, nil)
	keys, err := tr.ScanKeys(id, 0, -1, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.SubstateKey{types.FieldKey(0), types.FieldKey(7)}, keys)
}

func TestTrackScanAndDrain(t *testing.T) {
	db := memdb.NewMemDatabase()
	id := testNodeId(types.EntityTypeInternalSortedIndex, 1)
	substates := types.NodeSubstates{}
	substates.Set(1, types.SortedKey(2, []byte("b")), value("2b"))
	substates.Set(1, types.SortedKey(1, []byte("z")), value("1z"))
	substates.Set(1, types.SortedKey(3, []byte("a")), value("3a"))
	seed(t, db, id, substates)

	tr := NewTrack(db, nil)
	// blind write merged with db entries
	require.NoError(t, tr.SetSubstate(id, 1, types.SortedKey(0, []byte("x")), value("0x"), nil))
	var log accessLog
	entries, err := tr.ScanSortedSubstates(id, 1, 2, log.record)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("0x"), entries[0].Value.Data())
	assert.Equal(t, []byte("1z"), entries[1].Value.Data())
	assert.Len(t, log, 3)

	drained, err := tr.DrainSubstates(id, 1, -1, log.record)
	require.NoError(t, err)
	assert.Len(t, drained, 4)
	assert.Len(t, log, 3)
	keys, err := tr.ScanKeys(id, 1, -1, nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTrackScanSortedSkipsOtherKeys(t *testing.T) {
	db := memdb.NewMemDatabase()
	id := testNodeId(types.EntityTypeInternalSortedIndex, 1)
	substates := types.NodeSubstates{}
	substates.Set(1, types.MapKey([]byte("a")), value("a"))
	substates.Set(1, types.MapKey([]byte("b")), value("b"))
	substates.Set(1, types.SortedKey(2, []byte("y")), value("2y"))
	substates.Set(1, types.SortedKey(1, []byte("z")), value("1z"))
	seed(t, db, id, substates)

	tr := NewTrack(db, nil)
	require.NoError(t, tr.SetSubstate(id, 1, types.MapKey([]byte("c")), value("c"), nil))
	entries, err := tr.ScanSortedSubstates(id, 1, 2, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("1z"), entries[0].Value.Data())
	assert.Equal(t, []byte("2y"), entries[1].Value.Data())

	entries, err = tr.ScanSortedSubstates(id, 1, 1, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.SortedKey(1, []byte("z")), entries[0].Key)

	// ScanKeys still counts every key
	keys, err := tr.ScanKeys(id, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.SubstateKey{types.MapKey([]byte("a")), types.MapKey([]byte("b"))}, keys)
}

func TestTrackForceWriteAndTransient(t *testing.T) {
	db := memdb.NewMemDatabase()
	id := testNodeId(types.EntityTypeInternalFungibleVault, 1)
	substates := types.NodeSubstates{}
	substates.Set(0, types.FieldKey(0), value("fee"))
	substates.Set(0, types.FieldKey(1), value("tmp"))
	seed(t, db, id, substates)

	tr := NewTrack(db, nil)
	require.NoError(t, tr.SetSubstate(id, 0, types.FieldKey(0), value("fee-paid"), nil))
	require.NoError(t, tr.ForceWrite(id, 0, types.FieldKey(0)))
	require.NoError(t, tr.SetSubstate(id, 0, types.FieldKey(1), value("tmp2"), nil))
	require.NoError(t, tr.MarkTransient(id, 0, types.FieldKey(1)))
	assert.ErrorIs(t, tr.ForceWrite(id, 3, types.FieldKey(0)), ErrSubstateNotFound)

	updates, info, err := tr.Finalize(false)
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, 1, updates.Len())
	require.NoError(t, db.Commit(updates))

	tr = NewTrack(db, nil)
	v, _, err := tr.GetSubstate(id, 0, types.FieldKey(0), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("fee-paid"), v.Data())
	v, _, err = tr.GetSubstate(id, 0, types.FieldKey(1), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("tmp"), v.Data())
}
