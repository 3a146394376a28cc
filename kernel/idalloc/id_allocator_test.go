package idalloc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/types"
	"github.com/xuperchain/xkernel/lib/utils"
)

func TestAllocateUnique(t *testing.T) {
	alloc := NewIdAllocator(utils.SeedToTxHash(42))
	entityTypes := []types.EntityType{
		types.EntityTypeGlobalAccount,
		types.EntityTypeInternalKeyValueStore,
		types.EntityTypeInternalFungibleVault,
		types.EntityTypeGlobalPackage,
	}

	seen := make(map[types.NodeId]struct{})
	for i := 0; i < 10000; i++ {
		et := entityTypes[i%len(entityTypes)]
		id, err := alloc.AllocateNodeId(et)
		require.NoError(t, err)
		assert.Equal(t, et, id.EntityType())
		_, dup := seen[id]
		require.False(t, dup, "duplicated id %s", id)
		seen[id] = struct{}{}
	}
	assert.Equal(t, 10000, alloc.Allocated())
}

func TestAllocateDeterministic(t *testing.T) {
	a := NewIdAllocator(utils.SeedToTxHash(7))
	b := NewIdAllocator(utils.SeedToTxHash(7))
	c := NewIdAllocator(utils.SeedToTxHash(8))

	for i := 0; i < 10; i++ {
		idA, err := a.AllocateNodeId(types.EntityTypeGlobalAccount)
		require.NoError(t, err)
		idB, err := b.AllocateNodeId(types.EntityTypeGlobalAccount)
		require.NoError(t, err)
		idC, err := c.AllocateNodeId(types.EntityTypeGlobalAccount)
		require.NoError(t, err)
		assert.Equal(t, idA, idB)
		assert.NotEqual(t, idA, idC)
	}
}

func TestInternalIdsUseEntropy(t *testing.T) {
	a := NewIdAllocator(utils.SeedToTxHash(1))
	b := NewIdAllocator(utils.SeedToTxHash(1)).WithEntropy([]byte("other"))

	ga, _ := a.AllocateNodeId(types.EntityTypeGlobalAccount)
	gb, _ := b.AllocateNodeId(types.EntityTypeGlobalAccount)
	assert.Equal(t, ga, gb)

	ia, _ := a.AllocateNodeId(types.EntityTypeInternalKeyValueStore)
	ib, _ := b.AllocateNodeId(types.EntityTypeInternalKeyValueStore)
	assert.NotEqual(t, ia, ib)
}

func TestAllocateErrors(t *testing.T) {
	alloc := NewIdAllocator(utils.SeedToTxHash(1))
	_, err := alloc.AllocateNodeId(types.EntityType(0))
	assert.True(t, errors.Is(err, ErrInvalidEntityType))

	alloc.next = ^uint32(0)
	_, err = alloc.AllocateNodeId(types.EntityTypeGlobalAccount)
	assert.Equal(t, ErrOutOfId, err)
}

func TestVirtualNodeId(t *testing.T) {
	pkh := PubKeyHash([]byte("public key"))
	id, err := NewVirtualNodeId(types.EntityTypeGlobalVirtualSecp256k1Account, pkh)
	require.NoError(t, err)
	assert.True(t, id.IsGlobal())
	assert.Equal(t, pkh, id[1:])

	again, err := NewVirtualNodeId(types.EntityTypeGlobalVirtualSecp256k1Account, pkh)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = NewVirtualNodeId(types.EntityTypeGlobalAccount, pkh)
	assert.True(t, errors.Is(err, ErrNotVirtualEntity))
	_, err = NewVirtualNodeId(types.EntityTypeGlobalVirtualSecp256k1Account, pkh[:3])
	assert.True(t, errors.Is(err, ErrInvalidPubKeyHash))
}
