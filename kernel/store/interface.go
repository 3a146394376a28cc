package store

import (
	"github.com/pkg/errors"
)

// DbEntry is one substate of a partition.
type DbEntry struct {
	SortKey DbSortKey
	Value   []byte
}

// SubstateDatabase is the read side of the persisted substate store.
type SubstateDatabase interface {
	// GetSubstate returns the stored value and whether it exists.
	GetSubstate(pk DbPartitionKey, sk DbSortKey) ([]byte, bool, error)
	// ListEntries returns all entries of a partition ordered by sort key.
	ListEntries(pk DbPartitionKey) ([]DbEntry, error)
}

// CommittableSubstateDatabase applies batches of updates.
type CommittableSubstateDatabase interface {
	SubstateDatabase
	Commit(updates *DatabaseUpdates) error
}

// ListableSubstateDatabase enumerates partitions, for checking and tooling.
type ListableSubstateDatabase interface {
	SubstateDatabase
	ListPartitionKeys() ([]DbPartitionKey, error)
}

// DbError wraps failures of the underlying database. They are fatal to the transaction.
type DbError struct {
	Err error
}

func (e *DbError) Error() string {
	return "substate database: " + e.Err.Error()
}

func (e *DbError) Unwrap() error {
	return e.Err
}

// WrapDbError annotates err with msg and marks it as a database failure.
func WrapDbError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &DbError{Err: errors.WithMessage(err, msg)}
}
