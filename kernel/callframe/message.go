package callframe

import (
	"github.com/xuperchain/xkernel/kernel/types"
)

// CallFrameReferences are the references an actor brings into the frame it
// runs in, e.g. its receiver.
type CallFrameReferences interface {
	GlobalReferences() []types.NodeId
	DirectAccessReferences() []types.NodeId
	StableTransientReferences() []types.NodeId
	// Len is the encoded size, for costing.
	Len() int
}

// CallFrameMessage is what moves between frames when one is pushed or popped.
type CallFrameMessage struct {
	MoveNodes                     []types.NodeId
	CopyGlobalReferences          []types.NodeId
	CopyDirectAccessReferences    []types.NodeId
	CopyStableTransientReferences []types.NodeId
}

// MessageFromInput builds the message pushing a frame. Owned nodes of the
// arguments are moved, references are copied. Internal references are
// borrowed by the callee until it returns.
func MessageFromInput(args *types.IndexedValue, refs CallFrameReferences) *CallFrameMessage {
	msg := &CallFrameMessage{}
	if args != nil {
		msg.MoveNodes = append(msg.MoveNodes, args.OwnedNodes()...)
		for _, ref := range args.References() {
			if ref.IsGlobal() {
				msg.CopyGlobalReferences = append(msg.CopyGlobalReferences, ref)
			} else {
				msg.CopyStableTransientReferences = append(msg.CopyStableTransientReferences, ref)
			}
		}
	}
	if refs != nil {
		msg.CopyGlobalReferences = append(msg.CopyGlobalReferences, refs.GlobalReferences()...)
		msg.CopyDirectAccessReferences = append(msg.CopyDirectAccessReferences, refs.DirectAccessReferences()...)
		msg.CopyStableTransientReferences = append(msg.CopyStableTransientReferences, refs.StableTransientReferences()...)
	}
	return msg
}

// MessageFromOutput builds the message popping a frame.
func MessageFromOutput(output *types.IndexedValue) *CallFrameMessage {
	msg := &CallFrameMessage{}
	if output == nil {
		return msg
	}
	msg.MoveNodes = append(msg.MoveNodes, output.OwnedNodes()...)
	for _, ref := range output.References() {
		if ref.IsGlobal() {
			msg.CopyGlobalReferences = append(msg.CopyGlobalReferences, ref)
		} else {
			msg.CopyStableTransientReferences = append(msg.CopyStableTransientReferences, ref)
		}
	}
	return msg
}

// PassMessage moves nodes and copies references from one frame to the other.
// from and to must be adjacent on the stack.
func PassMessage(io *SubstateIO, from, to *CallFrame, msg *CallFrameMessage) error {
	if err := checkDuplicatedOwns(msg.MoveNodes); err != nil {
		return opError(OpPassMessage, err)
	}
	for _, ref := range msg.CopyGlobalReferences {
		if !ref.IsGlobal() || !from.isVisible(ref) {
			return opError(OpPassMessage, nodeError(ErrNodeNotVisible, ref))
		}
	}
	for _, ref := range msg.CopyDirectAccessReferences {
		if !from.isVisible(ref) {
			return opError(OpPassMessage, nodeError(ErrNodeNotVisible, ref))
		}
	}
	down := to.depth > from.depth
	for _, ref := range msg.CopyStableTransientReferences {
		if !from.isVisible(ref) {
			return opError(OpPassMessage, nodeError(ErrNodeNotVisible, ref))
		}
		if !down && !ref.IsGlobal() && !to.isVisible(ref) {
			return opError(OpPassMessage, nodeError(ErrNonGlobalRefNotAllowed, ref))
		}
	}
	if err := from.takeNodes(io, msg.MoveNodes); err != nil {
		return opError(OpPassMessage, err)
	}

	for _, id := range msg.MoveNodes {
		to.addOwnedRoot(id)
	}
	for _, ref := range msg.CopyGlobalReferences {
		to.AddGlobalReference(ref)
	}
	for _, ref := range msg.CopyDirectAccessReferences {
		to.AddDirectAccessReference(ref)
	}
	if down {
		for _, ref := range msg.CopyStableTransientReferences {
			to.stableTransient[ref]++
			io.addNonGlobalRef(ref)
		}
	}
	return nil
}

// ReleaseReferences returns the borrows a frame received when it was pushed.
// Called when the frame is popped.
func (f *CallFrame) ReleaseReferences(io *SubstateIO) {
	for ref, n := range f.stableTransient {
		for i := 0; i < n; i++ {
			io.releaseNonGlobalRef(ref)
		}
	}
	f.stableTransient = make(map[types.NodeId]int)
}
