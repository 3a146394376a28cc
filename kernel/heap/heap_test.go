package heap

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/types"
)

func nodeId(et types.EntityType, b byte) types.NodeId {
	var id types.NodeId
	id[0] = byte(et)
	id[types.NodeIdLength-1] = b
	return id
}

func TestHeapCreateGetRemove(t *testing.T) {
	h := NewHeap()
	id := nodeId(types.EntityTypeInternalKeyValueStore, 1)
	child := nodeId(types.EntityTypeInternalFungibleVault, 2)

	substates := types.NodeSubstates{}
	substates.Set(0, types.FieldKey(0), types.NewIndexedValue([]byte("a"), []types.NodeId{child}, nil))
	substates.Set(1, types.FieldKey(0), types.NewIndexedValue([]byte("b"), nil, nil))
	h.CreateNode(id, substates)

	assert.True(t, h.ContainsNode(id))
	assert.Equal(t, 1, h.Len())
	v, ok := h.GetSubstate(id, 0, types.FieldKey(0))
	require.True(t, ok)
	assert.Equal(t, []byte("a"), v.Data())
	_, ok = h.GetSubstate(id, 2, types.FieldKey(0))
	assert.False(t, ok)
	assert.Equal(t, []types.NodeId{child}, h.OwnedNodes(id))
	assert.True(t, h.GetNode(id).Size() > 0)

	h.SetSubstate(id, 1, types.FieldKey(1), types.EmptyValue())
	removed, ok := h.RemoveSubstate(id, 1, types.FieldKey(1))
	require.True(t, ok)
	assert.True(t, removed.Equal(types.EmptyValue()))

	got, err := h.RemoveNode(id)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []byte("b"), got[1][types.FieldKey(0)].Data())
	assert.False(t, h.ContainsNode(id))

	_, err = h.RemoveNode(id)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestHeapScanAndDrain(t *testing.T) {
	h := NewHeap()
	id := nodeId(types.EntityTypeInternalKeyValueStore, 1)
	for _, k := range []string{"c", "a", "b"} {
		h.SetSubstate(id, 0, types.MapKey([]byte(k)), types.NewIndexedValue([]byte(k), nil, nil))
	}
	h.SetSubstate(id, 0, types.SortedKey(3, []byte("x")), types.EmptyValue())

	keys := h.ScanKeys(id, 0, 2)
	assert.Equal(t, []types.SubstateKey{types.MapKey([]byte("a")), types.MapKey([]byte("b"))}, keys)

	sorted := h.ScanSorted(id, 0, 10)
	require.Len(t, sorted, 1)
	assert.Equal(t, types.SortedKey(3, []byte("x")), sorted[0].Key)
	// map keys ahead of it do not use up the limit
	sorted = h.ScanSorted(id, 0, 1)
	require.Len(t, sorted, 1)
	assert.Equal(t, types.SortedKey(3, []byte("x")), sorted[0].Key)

	drained := h.DrainSubstates(id, 0, 2)
	require.Len(t, drained, 2)
	assert.Equal(t, []types.SubstateKey{types.MapKey([]byte("c")), types.SortedKey(3, []byte("x"))}, h.ScanKeys(id, 0, 10))
}

func TestHeapRemovePartition(t *testing.T) {
	h := NewHeap()
	id := nodeId(types.EntityTypeInternalGenericComponent, 1)
	h.CreateNode(id, types.NodeSubstates{})

	_, err := h.RemovePartition(id, 1)
	assert.True(t, errors.Is(err, ErrPartitionNotFound))
	_, err = h.RemovePartition(nodeId(types.EntityTypeInternalGenericComponent, 9), 1)
	assert.True(t, errors.Is(err, ErrNodeNotFound))

	h.SetSubstate(id, 1, types.FieldKey(0), types.EmptyValue())
	entries, err := h.RemovePartition(id, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, h.ContainsNode(id))
}
