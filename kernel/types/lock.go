package types

import "strings"

// LockFlags control how a substate is opened.
type LockFlags uint32

const (
	// LockFlagMutable allows the holder to write the substate.
	LockFlagMutable LockFlags = 1 << iota
	// LockFlagUnmodifiedBase requires the substate to be unchanged within the transaction.
	LockFlagUnmodifiedBase
	// LockFlagForceWrite keeps the write even if the transaction fails.
	LockFlagForceWrite
)

// LockFlagsReadOnly opens a substate for reading.
const LockFlagsReadOnly LockFlags = 0

func (f LockFlags) Contains(other LockFlags) bool {
	return f&other == other
}

func (f LockFlags) IsMutable() bool {
	return f.Contains(LockFlagMutable)
}

func (f LockFlags) String() string {
	var parts []string
	if f.Contains(LockFlagMutable) {
		parts = append(parts, "MUTABLE")
	}
	if f.Contains(LockFlagUnmodifiedBase) {
		parts = append(parts, "UNMODIFIED_BASE")
	}
	if f.Contains(LockFlagForceWrite) {
		parts = append(parts, "FORCE_WRITE")
	}
	if len(parts) == 0 {
		return "READ_ONLY"
	}
	return strings.Join(parts, "|")
}

// LockHandle identifies an open substate. Handles are unique within a kernel.
type LockHandle uint32
