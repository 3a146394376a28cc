package types

import (
	"bytes"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	hex "github.com/tmthrgd/go-hex"
)

// NodeIdLength is the byte length of a NodeId, entity byte included.
const NodeIdLength = 30

// NodeId identifies a node. Byte 0 is the EntityType.
type NodeId [NodeIdLength]byte

// NodeIdFromBytes copies b into a NodeId.
func NodeIdFromBytes(b []byte) (NodeId, error) {
	var id NodeId
	if len(b) != NodeIdLength {
		return id, errors.Errorf("invalid node id length %d", len(b))
	}
	copy(id[:], b)
	if !id.EntityType().Valid() {
		return id, errors.Errorf("invalid entity type %#02x", b[0])
	}
	return id, nil
}

// NodeIdFromHex parses the String form of a NodeId.
func NodeIdFromHex(s string) (NodeId, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return NodeId{}, err
	}
	return NodeIdFromBytes(raw)
}

func (id NodeId) EntityType() EntityType {
	return EntityType(id[0])
}

func (id NodeId) IsGlobal() bool {
	return id.EntityType().IsGlobal()
}

func (id NodeId) IsInternal() bool {
	return id.EntityType().IsInternal()
}

func (id NodeId) Bytes() []byte {
	return id[:]
}

func (id NodeId) IsZero() bool {
	return id == NodeId{}
}

func (id NodeId) Compare(other NodeId) int {
	return bytes.Compare(id[:], other[:])
}

func (id NodeId) String() string {
	return hex.EncodeToString(id[:])
}

// Address renders a global node id for humans. Internal ids have no address.
func (id NodeId) Address() string {
	if !id.IsGlobal() {
		return ""
	}
	return base58.Encode(id[:])
}

// NodeIdFromAddress decodes an Address back into the NodeId.
func NodeIdFromAddress(addr string) (NodeId, error) {
	raw := base58.Decode(addr)
	id, err := NodeIdFromBytes(raw)
	if err != nil {
		return id, err
	}
	if !id.IsGlobal() {
		return id, errors.Errorf("address %s is not a global node", addr)
	}
	return id, nil
}

// PartitionNumber numbers the partitions of a node.
type PartitionNumber uint8
