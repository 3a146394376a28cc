package types

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// SubstateKeyKind is the shape of a SubstateKey.
type SubstateKeyKind uint8

const (
	SubstateKeyField SubstateKeyKind = iota
	SubstateKeyMap
	SubstateKeySorted
)

// SubstateKey addresses a substate inside a partition. It is comparable and can be used as a map key.
type SubstateKey struct {
	kind   SubstateKeyKind
	field  uint8
	sorted uint16
	key    string
}

func FieldKey(n uint8) SubstateKey {
	return SubstateKey{kind: SubstateKeyField, field: n}
}

func MapKey(key []byte) SubstateKey {
	return SubstateKey{kind: SubstateKeyMap, key: string(key)}
}

func SortedKey(prefix uint16, key []byte) SubstateKey {
	return SubstateKey{kind: SubstateKeySorted, sorted: prefix, key: string(key)}
}

func (k SubstateKey) Kind() SubstateKeyKind {
	return k.kind
}

func (k SubstateKey) Field() (uint8, bool) {
	return k.field, k.kind == SubstateKeyField
}

func (k SubstateKey) Map() ([]byte, bool) {
	return []byte(k.key), k.kind == SubstateKeyMap
}

func (k SubstateKey) Sorted() (uint16, []byte, bool) {
	return k.sorted, []byte(k.key), k.kind == SubstateKeySorted
}

// SortBytes orders keys: fields first, then map keys, then sorted keys by u16 prefix.
func (k SubstateKey) SortBytes() []byte {
	switch k.kind {
	case SubstateKeyField:
		return []byte{byte(SubstateKeyField), k.field}
	case SubstateKeyMap:
		return append([]byte{byte(SubstateKeyMap)}, k.key...)
	default:
		b := make([]byte, 3, 3+len(k.key))
		b[0] = byte(SubstateKeySorted)
		binary.BigEndian.PutUint16(b[1:], k.sorted)
		return append(b, k.key...)
	}
}

// SubstateKeyFromSortBytes is the inverse of SortBytes.
func SubstateKeyFromSortBytes(b []byte) (SubstateKey, error) {
	if len(b) == 0 {
		return SubstateKey{}, errors.Errorf("empty substate key")
	}
	switch SubstateKeyKind(b[0]) {
	case SubstateKeyField:
		if len(b) != 2 {
			return SubstateKey{}, errors.Errorf("invalid field key length %d", len(b))
		}
		return FieldKey(b[1]), nil
	case SubstateKeyMap:
		return MapKey(b[1:]), nil
	case SubstateKeySorted:
		if len(b) < 3 {
			return SubstateKey{}, errors.Errorf("invalid sorted key length %d", len(b))
		}
		return SortedKey(binary.BigEndian.Uint16(b[1:3]), b[3:]), nil
	}
	return SubstateKey{}, errors.Errorf("invalid substate key kind %d", b[0])
}

func (k SubstateKey) String() string {
	switch k.kind {
	case SubstateKeyField:
		return fmt.Sprintf("Field(%d)", k.field)
	case SubstateKeyMap:
		return fmt.Sprintf("Map(%x)", k.key)
	default:
		return fmt.Sprintf("Sorted(%d,%x)", k.sorted, k.key)
	}
}
