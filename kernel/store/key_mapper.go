package store

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuperchain/crypto/core/hash"

	"github.com/xuperchain/xkernel/kernel/types"
)

const (
	// spreadPrefixLength is the hash prefix placed in front of node ids and map keys.
	spreadPrefixLength = 20
	// NodeKeyLength is the length of every DbNodeKey.
	NodeKeyLength = spreadPrefixLength + types.NodeIdLength
)

// DbPartitionKey addresses a partition in the database.
type DbPartitionKey struct {
	NodeKey      []byte
	PartitionNum uint8
}

// Bytes is NodeKey followed by the partition number. All partition keys have the same length.
func (k DbPartitionKey) Bytes() []byte {
	b := make([]byte, 0, len(k.NodeKey)+1)
	b = append(b, k.NodeKey...)
	return append(b, k.PartitionNum)
}

func (k DbPartitionKey) Compare(other DbPartitionKey) int {
	if c := bytes.Compare(k.NodeKey, other.NodeKey); c != 0 {
		return c
	}
	return int(k.PartitionNum) - int(other.PartitionNum)
}

func (k DbPartitionKey) String() string {
	return fmt.Sprintf("%x/%d", k.NodeKey, k.PartitionNum)
}

// DbSortKey orders substates within a partition.
type DbSortKey []byte

// KeyMapper maps kernel addresses to database keys and back.
type KeyMapper interface {
	ToDbPartitionKey(id types.NodeId, p types.PartitionNumber) DbPartitionKey
	FromDbPartitionKey(key DbPartitionKey) (types.NodeId, types.PartitionNumber, error)
	ToDbSortKey(key types.SubstateKey) DbSortKey
	FromDbSortKey(key DbSortKey) (types.SubstateKey, error)
}

// SpreadPrefixKeyMapper prefixes node ids and map keys with a hash so that
// writes spread evenly over the key space.
type SpreadPrefixKeyMapper struct{}

var _ KeyMapper = SpreadPrefixKeyMapper{}

func spreadPrefix(b []byte) []byte {
	return hash.DoubleSha256(b)[:spreadPrefixLength]
}

func (SpreadPrefixKeyMapper) ToDbPartitionKey(id types.NodeId, p types.PartitionNumber) DbPartitionKey {
	nodeKey := make([]byte, 0, NodeKeyLength)
	nodeKey = append(nodeKey, spreadPrefix(id[:])...)
	nodeKey = append(nodeKey, id[:]...)
	return DbPartitionKey{NodeKey: nodeKey, PartitionNum: uint8(p)}
}

func (SpreadPrefixKeyMapper) FromDbPartitionKey(key DbPartitionKey) (types.NodeId, types.PartitionNumber, error) {
	if len(key.NodeKey) != NodeKeyLength {
		return types.NodeId{}, 0, errors.Errorf("invalid node key length %d", len(key.NodeKey))
	}
	id, err := types.NodeIdFromBytes(key.NodeKey[spreadPrefixLength:])
	if err != nil {
		return id, 0, err
	}
	if !bytes.Equal(key.NodeKey[:spreadPrefixLength], spreadPrefix(id[:])) {
		return id, 0, errors.Errorf("node key prefix mismatch for %s", id)
	}
	return id, types.PartitionNumber(key.PartitionNum), nil
}

// ToDbSortKey keeps fields and sorted keys in order and spreads map keys.
func (SpreadPrefixKeyMapper) ToDbSortKey(key types.SubstateKey) DbSortKey {
	if mapKey, ok := key.Map(); ok {
		b := make([]byte, 0, 1+spreadPrefixLength+len(mapKey))
		b = append(b, byte(types.SubstateKeyMap))
		b = append(b, spreadPrefix(mapKey)...)
		return append(b, mapKey...)
	}
	return key.SortBytes()
}

func (SpreadPrefixKeyMapper) FromDbSortKey(key DbSortKey) (types.SubstateKey, error) {
	if len(key) > 0 && types.SubstateKeyKind(key[0]) == types.SubstateKeyMap {
		if len(key) < 1+spreadPrefixLength {
			return types.SubstateKey{}, errors.Errorf("invalid map sort key length %d", len(key))
		}
		return types.MapKey(key[1+spreadPrefixLength:]), nil
	}
	return types.SubstateKeyFromSortBytes(key)
}
