package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// EntityType is the first byte of every NodeId.
type EntityType uint8

const (
	EntityTypeGlobalPackage                 EntityType = 0x0d
	EntityTypeGlobalFungibleResource        EntityType = 0x5d
	EntityTypeGlobalNonFungibleResource     EntityType = 0x9a
	EntityTypeGlobalConsensusManager        EntityType = 0x86
	EntityTypeGlobalGenericComponent        EntityType = 0xc0
	EntityTypeGlobalAccount                 EntityType = 0xc1
	EntityTypeGlobalIdentity                EntityType = 0xc2
	EntityTypeGlobalVirtualSecp256k1Account EntityType = 0xd1
	EntityTypeGlobalVirtualEd25519Account   EntityType = 0x51
	EntityTypeInternalFungibleVault         EntityType = 0x58
	EntityTypeInternalNonFungibleVault      EntityType = 0x98
	EntityTypeInternalGenericComponent      EntityType = 0xf8
	EntityTypeInternalKeyValueStore         EntityType = 0xb0
	EntityTypeInternalIndex                 EntityType = 0x80
	EntityTypeInternalSortedIndex           EntityType = 0x82
)

type entityInfo struct {
	name    string
	global  bool
	virtual bool
}

var entityInfos = map[EntityType]entityInfo{
	EntityTypeGlobalPackage:                 {"GlobalPackage", true, false},
	EntityTypeGlobalFungibleResource:        {"GlobalFungibleResource", true, false},
	EntityTypeGlobalNonFungibleResource:     {"GlobalNonFungibleResource", true, false},
	EntityTypeGlobalConsensusManager:        {"GlobalConsensusManager", true, false},
	EntityTypeGlobalGenericComponent:        {"GlobalGenericComponent", true, false},
	EntityTypeGlobalAccount:                 {"GlobalAccount", true, false},
	EntityTypeGlobalIdentity:                {"GlobalIdentity", true, false},
	EntityTypeGlobalVirtualSecp256k1Account: {"GlobalVirtualSecp256k1Account", true, true},
	EntityTypeGlobalVirtualEd25519Account:   {"GlobalVirtualEd25519Account", true, true},
	EntityTypeInternalFungibleVault:         {"InternalFungibleVault", false, false},
	EntityTypeInternalNonFungibleVault:      {"InternalNonFungibleVault", false, false},
	EntityTypeInternalGenericComponent:      {"InternalGenericComponent", false, false},
	EntityTypeInternalKeyValueStore:         {"InternalKeyValueStore", false, false},
	EntityTypeInternalIndex:                 {"InternalIndex", false, false},
	EntityTypeInternalSortedIndex:           {"InternalSortedIndex", false, false},
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	_, ok := entityInfos[t]
	return ok
}

func (t EntityType) IsGlobal() bool {
	return entityInfos[t].global
}

func (t EntityType) IsInternal() bool {
	info, ok := entityInfos[t]
	return ok && !info.global
}

// IsVirtual reports whether nodes of this type may exist before they are created.
func (t EntityType) IsVirtual() bool {
	return entityInfos[t].virtual
}

func (t EntityType) String() string {
	if info, ok := entityInfos[t]; ok {
		return info.name
	}
	return fmt.Sprintf("EntityType(%#02x)", uint8(t))
}

// ParseEntityType accepts the full name, with or without the EntityType prefix, case insensitive.
func ParseEntityType(name string) (EntityType, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "entitytype")
	for t, info := range entityInfos {
		if strings.ToLower(info.name) == name {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown entity type %q", name)
}
