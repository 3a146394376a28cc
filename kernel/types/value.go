package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

type valuePayload struct {
	Data []byte
	Owns []NodeId
	Refs []NodeId
}

// IndexedValue is an encoded substate payload together with the index of the
// nodes it owns and references. It is immutable.
type IndexedValue struct {
	raw   []byte
	data  []byte
	owned []NodeId
	refs  []NodeId
}

// NewIndexedValue encodes data with its Own and Reference sets.
func NewIndexedValue(data []byte, owns []NodeId, refs []NodeId) *IndexedValue {
	payload := &valuePayload{Data: data, Owns: owns, Refs: refs}
	if payload.Data == nil {
		payload.Data = []byte{}
	}
	raw, err := rlp.EncodeToBytes(payload)
	if err != nil {
		// byte slices and fixed arrays always encode
		panic(err)
	}
	return &IndexedValue{
		raw:   raw,
		data:  payload.Data,
		owned: append([]NodeId(nil), owns...),
		refs:  append([]NodeId(nil), refs...),
	}
}

// EmptyValue is a value with no data, owns or references.
func EmptyValue() *IndexedValue {
	return NewIndexedValue(nil, nil, nil)
}

// DecodeIndexedValue parses raw bytes produced by Bytes.
func DecodeIndexedValue(raw []byte) (*IndexedValue, error) {
	payload := new(valuePayload)
	if err := rlp.DecodeBytes(raw, payload); err != nil {
		return nil, errors.Wrap(err, "decode substate value")
	}
	for _, id := range append(payload.Owns, payload.Refs...) {
		if !id.EntityType().Valid() {
			return nil, errors.Errorf("decode substate value: invalid node id %s", id)
		}
	}
	return &IndexedValue{
		raw:   append([]byte(nil), raw...),
		data:  payload.Data,
		owned: payload.Owns,
		refs:  payload.Refs,
	}, nil
}

// Bytes returns the encoded value. Callers must not modify it.
// The accessors below treat a nil value as empty.
func (v *IndexedValue) Bytes() []byte {
	if v == nil {
		return nil
	}
	return v.raw
}

func (v *IndexedValue) Data() []byte {
	if v == nil {
		return nil
	}
	return v.data
}

func (v *IndexedValue) OwnedNodes() []NodeId {
	if v == nil {
		return nil
	}
	return v.owned
}

func (v *IndexedValue) References() []NodeId {
	if v == nil {
		return nil
	}
	return v.refs
}

// Len is the encoded size.
func (v *IndexedValue) Len() int {
	if v == nil {
		return 0
	}
	return len(v.raw)
}

func (v *IndexedValue) Equal(other *IndexedValue) bool {
	if v == nil || other == nil {
		return v == other
	}
	return bytes.Equal(v.raw, other.raw)
}

// SubstateEntry is a key with its value, as returned by scans.
type SubstateEntry struct {
	Key   SubstateKey
	Value *IndexedValue
}

// NodeSubstates is the content of a node by partition.
type NodeSubstates map[PartitionNumber]map[SubstateKey]*IndexedValue

// Set inserts value, creating the partition when needed.
func (s NodeSubstates) Set(partition PartitionNumber, key SubstateKey, value *IndexedValue) {
	p, ok := s[partition]
	if !ok {
		p = make(map[SubstateKey]*IndexedValue)
		s[partition] = p
	}
	p[key] = value
}
