package callframe

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/types"
)

// reasons
var (
	ErrOwnNotFound            = errors.New("own not found")
	ErrOwnLocked              = errors.New("own locked")
	ErrSubstateBorrowed       = errors.New("substate borrowed")
	ErrNodeBorrowed           = errors.New("node borrowed")
	ErrNodePinned             = errors.New("node pinned")
	ErrNodeNotVisible         = errors.New("node not visible")
	ErrNodeNotInHeap          = errors.New("node not in heap")
	ErrNodeAlreadyExists      = errors.New("node already exists")
	ErrNonGlobalRefNotAllowed = errors.New("non global reference not allowed")
	ErrContainsDuplicatedOwns = errors.New("contains duplicated owns")
	ErrLockNotFound           = errors.New("lock not found")
	ErrNoWritePermission      = errors.New("no write permission")
	ErrSubstateLocked         = errors.New("substate locked")
	ErrSubstateFault          = errors.New("substate not found")
	ErrInvalidDefaultValue    = errors.New("invalid default value")
	ErrTooManyOpenSubstates   = errors.New("too many open substates")
	ErrPartitionNotFound      = errors.New("partition not found")
	ErrStoredNodeRemoved      = errors.New("stored node removed")
	ErrKeyedSubstateOwnsNode  = errors.New("keyed substate cannot own nodes")
	ErrNilValue               = errors.New("nil substate value")

	ErrLockUnmodifiedBaseOnHeapNode        = errors.New("unmodified base lock on heap node")
	ErrLockUnmodifiedBaseOnNewSubstate     = errors.New("unmodified base lock on new substate")
	ErrLockUnmodifiedBaseOnUpdatedSubstate = errors.New("unmodified base lock on updated substate")

	ErrCannotPersistPinnedNode = errors.New("cannot persist pinned node")
	ErrContainsNonGlobalRef    = errors.New("contains non global reference")
)

// Op names the call frame operation which failed.
type Op string

const (
	OpCreateNode     Op = "create_node"
	OpCreateFrame    Op = "create_frame"
	OpPassMessage    Op = "pass_message"
	OpOpenSubstate   Op = "open_substate"
	OpReadSubstate   Op = "read_substate"
	OpWriteSubstate  Op = "write_substate"
	OpCloseSubstate  Op = "close_substate"
	OpDropNode       Op = "drop_node"
	OpMovePartition  Op = "move_partition"
	OpPinNode        Op = "pin_node"
	OpMarkTransient  Op = "mark_substate_as_transient"
	OpSetSubstate    Op = "set_substate"
	OpRemoveSubstate Op = "remove_substate"
	OpScanKeys       Op = "scan_keys"
	OpDrainSubstates Op = "drain_substates"
	OpScanSorted     Op = "scan_sorted_substates"
)

// CallFrameError is returned by every failing call frame operation.
type CallFrameError struct {
	Op  Op
	Err error
}

func (e *CallFrameError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallFrameError) Unwrap() error {
	return e.Err
}

// Typed errors of the node, substate and frame operations. Each one wraps the
// CallFrameError carrying its reason, so errors.As matches either.
type (
	CreateNodeError    struct{ *CallFrameError }
	CreateFrameError   struct{ *CallFrameError }
	PassMessageError   struct{ *CallFrameError }
	OpenSubstateError  struct{ *CallFrameError }
	ReadSubstateError  struct{ *CallFrameError }
	WriteSubstateError struct{ *CallFrameError }
	CloseSubstateError struct{ *CallFrameError }
	DropNodeError      struct{ *CallFrameError }
	MovePartitionError struct{ *CallFrameError }
	KeyedSubstateError struct{ *CallFrameError }
)

func (e *CreateNodeError) Unwrap() error    { return e.CallFrameError }
func (e *CreateFrameError) Unwrap() error   { return e.CallFrameError }
func (e *PassMessageError) Unwrap() error   { return e.CallFrameError }
func (e *OpenSubstateError) Unwrap() error  { return e.CallFrameError }
func (e *ReadSubstateError) Unwrap() error  { return e.CallFrameError }
func (e *WriteSubstateError) Unwrap() error { return e.CallFrameError }
func (e *CloseSubstateError) Unwrap() error { return e.CallFrameError }
func (e *DropNodeError) Unwrap() error      { return e.CallFrameError }
func (e *MovePartitionError) Unwrap() error { return e.CallFrameError }
func (e *KeyedSubstateError) Unwrap() error { return e.CallFrameError }

func opError(op Op, err error) error {
	if err == nil {
		return nil
	}
	e := &CallFrameError{Op: op, Err: err}
	switch op {
	case OpCreateNode:
		return &CreateNodeError{e}
	case OpCreateFrame:
		return &CreateFrameError{e}
	case OpPassMessage:
		return &PassMessageError{e}
	case OpOpenSubstate:
		return &OpenSubstateError{e}
	case OpReadSubstate:
		return &ReadSubstateError{e}
	case OpWriteSubstate:
		return &WriteSubstateError{e}
	case OpCloseSubstate:
		return &CloseSubstateError{e}
	case OpDropNode:
		return &DropNodeError{e}
	case OpMovePartition:
		return &MovePartitionError{e}
	case OpSetSubstate, OpRemoveSubstate, OpScanKeys, OpScanSorted, OpDrainSubstates:
		return &KeyedSubstateError{e}
	}
	return e
}

// NodeError is a reason concerning a node.
type NodeError struct {
	Reason error
	Node   types.NodeId
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%v: %s", e.Reason, e.Node)
}

func (e *NodeError) Unwrap() error {
	return e.Reason
}

func nodeError(reason error, id types.NodeId) error {
	return &NodeError{Reason: reason, Node: id}
}

// SubstateError is a reason concerning a substate.
type SubstateError struct {
	Reason    error
	Node      types.NodeId
	Partition types.PartitionNumber
	Key       types.SubstateKey
}

func (e *SubstateError) Error() string {
	return fmt.Sprintf("%v: %s/%d/%s", e.Reason, e.Node, e.Partition, e.Key)
}

func (e *SubstateError) Unwrap() error {
	return e.Reason
}

func substateError(reason error, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error {
	return &SubstateError{Reason: reason, Node: id, Partition: p, Key: k}
}

// TakeNodeError is a failure to take ownership of a node out of a frame.
type TakeNodeError struct {
	Err error
}

func (e *TakeNodeError) Error() string {
	return "take node: " + e.Err.Error()
}

func (e *TakeNodeError) Unwrap() error {
	return e.Err
}

// ProcessSubstateError is a failure to process the owns and references of a substate value.
type ProcessSubstateError struct {
	Err error
}

func (e *ProcessSubstateError) Error() string {
	return "process substate: " + e.Err.Error()
}

func (e *ProcessSubstateError) Unwrap() error {
	return e.Err
}

// PersistNodeError is a failure to move a node tree from the heap to the store.
type PersistNodeError struct {
	Err error
}

func (e *PersistNodeError) Error() string {
	return "persist node: " + e.Err.Error()
}

func (e *PersistNodeError) Unwrap() error {
	return e.Err
}

// CallbackError carries an error returned by a store access handler.
type CallbackError struct {
	Err error
}

func (e *CallbackError) Error() string {
	return "callback: " + e.Err.Error()
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func processError(err error) error {
	switch err.(type) {
	case *ProcessSubstateError, *CallbackError:
		return err
	}
	return &ProcessSubstateError{Err: err}
}

// LockNotFoundError is returned for a handle which is closed or was opened by another frame.
type LockNotFoundError struct {
	Handle types.LockHandle
}

func (e *LockNotFoundError) Error() string {
	return fmt.Sprintf("%v: %d", ErrLockNotFound, e.Handle)
}

func (e *LockNotFoundError) Unwrap() error {
	return ErrLockNotFound
}
