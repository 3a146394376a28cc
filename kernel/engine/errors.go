package engine

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/types"
)

var (
	ErrMaxCallDepthExceeded = errors.New("max call depth exceeded")
	ErrOrphanedNodes        = errors.New("orphaned nodes")
	ErrNotInitialized       = errors.New("kernel not initialized")
	ErrAlreadyTornDown      = errors.New("kernel already torn down")
)

// ErrorKind is the origin of a RuntimeError.
type ErrorKind uint8

const (
	// KernelError is a violation of the kernel rules by the caller.
	KernelError ErrorKind = iota
	// CallbackError is returned by a kernel callback hook.
	CallbackError
	// StoreError is a fatal failure of the substate database.
	StoreError
)

func (k ErrorKind) String() string {
	switch k {
	case KernelError:
		return "kernel"
	case CallbackError:
		return "callback"
	case StoreError:
		return "store"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// RuntimeError is the only error type returned by the kernel api.
type RuntimeError struct {
	Kind ErrorKind
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// OrphanedNodesError lists the nodes left in a frame when it returned.
type OrphanedNodesError struct {
	Nodes []types.NodeId
}

func (e *OrphanedNodesError) Error() string {
	return fmt.Sprintf("%v: %v", ErrOrphanedNodes, e.Nodes)
}

func (e *OrphanedNodesError) Unwrap() error {
	return ErrOrphanedNodes
}

// toRuntimeError classifies err. A RuntimeError found in the chain keeps its kind.
func toRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return &RuntimeError{Kind: re.Kind, Err: err}
	}
	var cbErr *callframe.CallbackError
	if errors.As(err, &cbErr) {
		return &RuntimeError{Kind: CallbackError, Err: err}
	}
	var dbErr *store.DbError
	if errors.As(err, &dbErr) {
		return &RuntimeError{Kind: StoreError, Err: err}
	}
	return &RuntimeError{Kind: KernelError, Err: err}
}

// callbackError wraps an error returned by a hook.
func callbackError(err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return &RuntimeError{Kind: re.Kind, Err: err}
	}
	return &RuntimeError{Kind: CallbackError, Err: err}
}

// IsKind reports whether err is a RuntimeError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Kind == kind
}
