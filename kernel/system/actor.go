package system

import (
	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/types"
)

// TransactionBlueprint names the actor of the root frame.
const TransactionBlueprint = "Transaction"

// Actor is the call frame data of the system layer: which native method
// runs in the frame and on which receiver.
type Actor struct {
	Blueprint string
	Method    string
	// Receiver is nil for functions.
	Receiver *types.NodeId
	// Globals are extra global references the frame starts with.
	Globals []types.NodeId
}

var _ callframe.CallFrameReferences = (*Actor)(nil)

func FunctionActor(blueprint, method string) *Actor {
	return &Actor{Blueprint: blueprint, Method: method}
}

func MethodActor(receiver types.NodeId, blueprint, method string) *Actor {
	return &Actor{Blueprint: blueprint, Method: method, Receiver: &receiver}
}

func (a *Actor) GlobalReferences() []types.NodeId {
	refs := append([]types.NodeId(nil), a.Globals...)
	if a.Receiver != nil && a.Receiver.IsGlobal() {
		refs = append(refs, *a.Receiver)
	}
	return refs
}

func (a *Actor) DirectAccessReferences() []types.NodeId {
	return nil
}

// StableTransientReferences borrows an internal receiver for the frame.
func (a *Actor) StableTransientReferences() []types.NodeId {
	if a.Receiver != nil && !a.Receiver.IsGlobal() {
		return []types.NodeId{*a.Receiver}
	}
	return nil
}

func (a *Actor) Len() int {
	n := len(a.Blueprint) + len(a.Method) + len(a.Globals)*types.NodeIdLength
	if a.Receiver != nil {
		n += types.NodeIdLength
	}
	return n
}

func (a *Actor) String() string {
	if a.Receiver != nil {
		return a.Blueprint + "::" + a.Method + "@" + a.Receiver.String()
	}
	return a.Blueprint + "::" + a.Method
}
