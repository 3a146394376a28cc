package types

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNodeId(et EntityType, b byte) NodeId {
	var id NodeId
	id[0] = byte(et)
	for i := 1; i < NodeIdLength; i++ {
		id[i] = b
	}
	return id
}

func TestEntityType(t *testing.T) {
	testCases := []struct {
		et       EntityType
		global   bool
		internal bool
		virtual  bool
	}{
		{EntityTypeGlobalAccount, true, false, false},
		{EntityTypeGlobalVirtualSecp256k1Account, true, false, true},
		{EntityTypeInternalKeyValueStore, false, true, false},
		{EntityType(0), false, false, false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.global, tc.et.IsGlobal(), tc.et.String())
		assert.Equal(t, tc.internal, tc.et.IsInternal(), tc.et.String())
		assert.Equal(t, tc.virtual, tc.et.IsVirtual(), tc.et.String())
	}

	et, err := ParseEntityType("internalKeyValueStore")
	require.NoError(t, err)
	assert.Equal(t, EntityTypeInternalKeyValueStore, et)
	et, err = ParseEntityType("EntityTypeGlobalAccount")
	require.NoError(t, err)
	assert.Equal(t, EntityTypeGlobalAccount, et)
	_, err = ParseEntityType("Bucket")
	assert.Error(t, err)
}

func TestNodeIdEncoding(t *testing.T) {
	id := testNodeId(EntityTypeGlobalAccount, 7)
	assert.False(t, id.IsZero())
	assert.True(t, NodeId{}.IsZero())
	parsed, err := NodeIdFromHex(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	addr := id.Address()
	assert.NotEmpty(t, addr)
	back, err := NodeIdFromAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, id, back)

	internal := testNodeId(EntityTypeInternalFungibleVault, 1)
	assert.Empty(t, internal.Address())

	_, err = NodeIdFromBytes([]byte{1, 2})
	assert.Error(t, err)
	_, err = NodeIdFromBytes(make([]byte, NodeIdLength))
	assert.Error(t, err)
}

func TestSubstateKeyOrder(t *testing.T) {
	keys := []SubstateKey{
		SortedKey(2, []byte("a")),
		MapKey([]byte("b")),
		FieldKey(3),
		SortedKey(1, []byte("z")),
		MapKey([]byte("a")),
		FieldKey(0),
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].SortBytes(), keys[j].SortBytes()) < 0
	})
	assert.Equal(t, []SubstateKey{
		FieldKey(0),
		FieldKey(3),
		MapKey([]byte("a")),
		MapKey([]byte("b")),
		SortedKey(1, []byte("z")),
		SortedKey(2, []byte("a")),
	}, keys)

	for _, k := range keys {
		back, err := SubstateKeyFromSortBytes(k.SortBytes())
		require.NoError(t, err)
		assert.Equal(t, k, back)
	}
	_, err := SubstateKeyFromSortBytes([]byte{9})
	assert.Error(t, err)
}

func TestIndexedValue(t *testing.T) {
	child := testNodeId(EntityTypeInternalKeyValueStore, 1)
	global := testNodeId(EntityTypeGlobalAccount, 2)

	v := NewIndexedValue([]byte("payload"), []NodeId{child}, []NodeId{global})
	decoded, err := DecodeIndexedValue(v.Bytes())
	require.NoError(t, err)
	assert.True(t, v.Equal(decoded))
	assert.Equal(t, v.Bytes(), decoded.Bytes())
	assert.Equal(t, []byte("payload"), decoded.Data())
	assert.Equal(t, []NodeId{child}, decoded.OwnedNodes())
	assert.Equal(t, []NodeId{global}, decoded.References())
	assert.Equal(t, len(v.Bytes()), v.Len())

	empty := EmptyValue()
	assert.Empty(t, empty.OwnedNodes())
	assert.False(t, empty.Equal(v))

	_, err = DecodeIndexedValue([]byte{0xff, 0x01})
	assert.Error(t, err)
}

func TestLockFlags(t *testing.T) {
	flags := LockFlagMutable | LockFlagForceWrite
	assert.True(t, flags.IsMutable())
	assert.False(t, flags.Contains(LockFlagUnmodifiedBase))
	assert.Equal(t, "MUTABLE|FORCE_WRITE", flags.String())
	assert.Equal(t, "READ_ONLY", LockFlagsReadOnly.String())
}

func TestNilIndexedValue(t *testing.T) {
	var v *IndexedValue
	assert.Nil(t, v.OwnedNodes())
	assert.Nil(t, v.References())
	assert.Nil(t, v.Data())
	assert.Nil(t, v.Bytes())
	assert.Equal(t, 0, v.Len())
}
