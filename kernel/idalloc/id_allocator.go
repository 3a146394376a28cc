package idalloc

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/xuperchain/crypto/core/hash"
	"golang.org/x/crypto/sha3"

	"github.com/xuperchain/xkernel/kernel/types"
)

var (
	ErrOutOfId           = errors.New("id allocator: out of ids")
	ErrInvalidEntityType = errors.New("id allocator: invalid entity type")
	ErrNotVirtualEntity  = errors.New("id allocator: entity type is not virtual")
	ErrInvalidPubKeyHash = errors.New("id allocator: invalid public key hash")
)

const pubKeyHashLength = types.NodeIdLength - 1

// IdAllocator derives node ids from the transaction hash and a counter.
// Global ids are a pure function of (tx hash, counter); internal ids also mix
// in the transaction entropy.
type IdAllocator struct {
	txHash  []byte
	entropy []byte
	next    uint32
	issued  map[types.NodeId]struct{}
}

func NewIdAllocator(txHash []byte) *IdAllocator {
	entropy := sha3.Sum256(txHash)
	return &IdAllocator{
		txHash:  append([]byte(nil), txHash...),
		entropy: entropy[:],
		issued:  make(map[types.NodeId]struct{}),
	}
}

// WithEntropy replaces the entropy mixed into internal ids.
func (a *IdAllocator) WithEntropy(entropy []byte) *IdAllocator {
	a.entropy = append([]byte(nil), entropy...)
	return a
}

// Allocated returns the number of ids handed out so far.
func (a *IdAllocator) Allocated() int {
	return len(a.issued)
}

// AllocateNodeId returns an id never returned before by this allocator.
func (a *IdAllocator) AllocateNodeId(entityType types.EntityType) (types.NodeId, error) {
	if !entityType.Valid() {
		return types.NodeId{}, errors.Wrapf(ErrInvalidEntityType, "%#02x", uint8(entityType))
	}

	for {
		if a.next == math.MaxUint32 {
			return types.NodeId{}, ErrOutOfId
		}
		id := a.derive(entityType, a.next)
		a.next++
		if _, dup := a.issued[id]; dup {
			continue
		}
		a.issued[id] = struct{}{}
		return id, nil
	}
}

func (a *IdAllocator) derive(entityType types.EntityType, counter uint32) types.NodeId {
	buf := make([]byte, len(a.txHash)+4)
	copy(buf, a.txHash)
	binary.BigEndian.PutUint32(buf[len(a.txHash):], counter)
	digest := hash.DoubleSha256(buf)

	if entityType.IsInternal() {
		mixed := sha3.Sum256(append(append([]byte(nil), a.entropy...), digest...))
		digest = mixed[:]
	}

	var id types.NodeId
	id[0] = byte(entityType)
	copy(id[1:], digest)
	return id
}

// NewVirtualNodeId derives the id of a virtual global node from a public key hash.
func NewVirtualNodeId(entityType types.EntityType, pubKeyHash []byte) (types.NodeId, error) {
	if !entityType.IsVirtual() {
		return types.NodeId{}, errors.Wrap(ErrNotVirtualEntity, entityType.String())
	}
	if len(pubKeyHash) != pubKeyHashLength {
		return types.NodeId{}, errors.Wrapf(ErrInvalidPubKeyHash, "length %d", len(pubKeyHash))
	}

	var id types.NodeId
	id[0] = byte(entityType)
	copy(id[1:], pubKeyHash)
	return id, nil
}

// PubKeyHash hashes a public key to the length used by virtual node ids.
func PubKeyHash(pubKey []byte) []byte {
	return hash.DoubleSha256(pubKey)[:pubKeyHashLength]
}
