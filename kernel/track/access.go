package track

import (
	"fmt"

	"github.com/xuperchain/xkernel/kernel/types"
)

// StoreAccessKind classifies a store access for costing.
type StoreAccessKind uint8

const (
	// ReadFromDb is a first read of a substate which exists in the database.
	ReadFromDb StoreAccessKind = iota
	// ReadFromDbNotFound is a first read of a substate which does not exist.
	ReadFromDbNotFound
	// NewEntryInTrack is a substate entry added to the track without reading the database.
	NewEntryInTrack
)

func (k StoreAccessKind) String() string {
	switch k {
	case ReadFromDb:
		return "read_from_db"
	case ReadFromDbNotFound:
		return "read_from_db_not_found"
	case NewEntryInTrack:
		return "new_entry_in_track"
	}
	return fmt.Sprintf("StoreAccessKind(%d)", uint8(k))
}

type StoreAccess struct {
	Kind      StoreAccessKind
	NodeId    types.NodeId
	Partition types.PartitionNumber
	Key       types.SubstateKey
	Size      int
}

// OnStoreAccess is called for every access which reaches past the track.
// An error aborts the operation.
type OnStoreAccess func(StoreAccess) error

func (f OnStoreAccess) emit(access StoreAccess) error {
	if f == nil {
		return nil
	}
	return f(access)
}

// TrackedSubstateInfo tells how a substate differs from the database.
type TrackedSubstateInfo uint8

const (
	SubstateUnmodified TrackedSubstateInfo = iota
	SubstateUpdated
	SubstateNew
)

// StoreCommitKind is the effect of a committed substate write.
type StoreCommitKind uint8

const (
	CommitInsert StoreCommitKind = iota
	CommitUpdate
	// CommitUpsert is a write over a substate whose previous state was never read.
	CommitUpsert
	CommitDelete
)

func (k StoreCommitKind) String() string {
	switch k {
	case CommitInsert:
		return "insert"
	case CommitUpdate:
		return "update"
	case CommitUpsert:
		return "upsert"
	case CommitDelete:
		return "delete"
	}
	return fmt.Sprintf("StoreCommitKind(%d)", uint8(k))
}

// StoreCommit describes one substate write sent to the database.
type StoreCommit struct {
	Kind      StoreCommitKind
	NodeId    types.NodeId
	Partition types.PartitionNumber
	Key       types.SubstateKey
	Size      int
	OldSize   int
}

// StoreCommitInfo is consumed by costing to charge for persisted bytes.
type StoreCommitInfo []StoreCommit

// WrittenBytes is the total size of inserted and updated values.
func (info StoreCommitInfo) WrittenBytes() int {
	n := 0
	for _, c := range info {
		n += c.Size
	}
	return n
}
