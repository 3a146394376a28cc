package engine

import (
	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
)

// Phase tells where in a kernel operation an event is emitted.
type Phase uint8

const (
	PhaseStart Phase = iota
	// PhaseStoreAccess is emitted once per access which reached the store.
	PhaseStoreAccess
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseStoreAccess:
		return "store_access"
	default:
		return "end"
	}
}

type CreateNodeEvent struct {
	Phase       Phase
	NodeId      types.NodeId
	Substates   types.NodeSubstates
	StoreAccess *track.StoreAccess
}

// TotalSize is the encoded size of all substates.
func (e *CreateNodeEvent) TotalSize() int {
	n := 0
	for _, sub := range e.Substates {
		for _, v := range sub {
			n += v.Len()
		}
	}
	return n
}

type DropNodeEvent struct {
	Phase     Phase
	NodeId    types.NodeId
	Substates types.NodeSubstates
}

type MoveModuleEvent struct {
	Phase         Phase
	Src           types.NodeId
	SrcPartition  types.PartitionNumber
	Dest          types.NodeId
	DestPartition types.PartitionNumber
	StoreAccess   *track.StoreAccess
}

type OpenSubstateEvent struct {
	Phase       Phase
	NodeId      types.NodeId
	Partition   types.PartitionNumber
	Key         types.SubstateKey
	Flags       types.LockFlags
	Handle      types.LockHandle
	Size        int
	StoreAccess *track.StoreAccess
}

type ReadSubstateEvent struct {
	Handle types.LockHandle
	Value  *types.IndexedValue
	Device callframe.SubstateDevice
}

type WriteSubstateEvent struct {
	Phase  Phase
	Handle types.LockHandle
	Value  *types.IndexedValue
}

type CloseSubstateEvent struct {
	Phase       Phase
	Handle      types.LockHandle
	StoreAccess *track.StoreAccess
}

// SubstateEvent is emitted around set and remove of keyed substates.
type SubstateEvent struct {
	Phase       Phase
	NodeId      types.NodeId
	Partition   types.PartitionNumber
	Key         types.SubstateKey
	Value       *types.IndexedValue
	StoreAccess *track.StoreAccess
}

// ScanEvent is emitted around scans and drains of a partition.
type ScanEvent struct {
	Phase       Phase
	NodeId      types.NodeId
	Partition   types.PartitionNumber
	Limit       uint32
	Count       int
	StoreAccess *track.StoreAccess
}

// KernelCallbackObject is notified at every step of the kernel and runs the
// code of invoked actors. An error aborts the kernel operation.
type KernelCallbackObject interface {
	OnInit(api KernelApi) error
	OnTeardown(api KernelApi) error

	OnPinNode(api KernelInternalApi, id types.NodeId) error
	OnCreateNode(api KernelInternalApi, ev *CreateNodeEvent) error
	OnDropNode(api KernelInternalApi, ev *DropNodeEvent) error
	OnMoveModule(api KernelInternalApi, ev *MoveModuleEvent) error

	OnOpenSubstate(api KernelInternalApi, ev *OpenSubstateEvent) error
	OnCloseSubstate(api KernelInternalApi, ev *CloseSubstateEvent) error
	OnReadSubstate(api KernelInternalApi, ev *ReadSubstateEvent) error
	OnWriteSubstate(api KernelInternalApi, ev *WriteSubstateEvent) error
	OnSetSubstate(api KernelInternalApi, ev *SubstateEvent) error
	OnRemoveSubstate(api KernelInternalApi, ev *SubstateEvent) error
	OnScanKeys(api KernelInternalApi, ev *ScanEvent) error
	OnDrainSubstates(api KernelInternalApi, ev *ScanEvent) error
	OnScanSortedSubstates(api KernelInternalApi, ev *ScanEvent) error
	OnMarkSubstateAsTransient(api KernelInternalApi, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error

	BeforeInvoke(api KernelInternalApi, inv *Invocation) error
	AfterInvoke(api KernelInternalApi, outputSize int) error
	OnExecutionStart(api KernelInternalApi) error
	OnExecutionFinish(api KernelInternalApi, msg *callframe.CallFrameMessage) error
	OnAllocateNodeId(api KernelInternalApi, entityType types.EntityType) error

	// InvokeUpstream runs the actor of the current frame.
	InvokeUpstream(api KernelApi, args *types.IndexedValue) (*types.IndexedValue, error)
	// AutoDrop disposes of the nodes a frame still owns when it returns.
	AutoDrop(api KernelApi, nodes []types.NodeId) error
	// OnSubstateLockFault may create a missing substate, returning true to retry the open.
	OnSubstateLockFault(api KernelApi, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) (bool, error)
}

// NopCallback implements every hook as a no-op. Embed it to override a few.
type NopCallback struct{}

var _ KernelCallbackObject = NopCallback{}

func (NopCallback) OnInit(KernelApi) error                                     { return nil }
func (NopCallback) OnTeardown(KernelApi) error                                 { return nil }
func (NopCallback) OnPinNode(KernelInternalApi, types.NodeId) error            { return nil }
func (NopCallback) OnCreateNode(KernelInternalApi, *CreateNodeEvent) error     { return nil }
func (NopCallback) OnDropNode(KernelInternalApi, *DropNodeEvent) error         { return nil }
func (NopCallback) OnMoveModule(KernelInternalApi, *MoveModuleEvent) error     { return nil }
func (NopCallback) OnOpenSubstate(KernelInternalApi, *OpenSubstateEvent) error { return nil }
func (NopCallback) OnCloseSubstate(KernelInternalApi, *CloseSubstateEvent) error {
	return nil
}
func (NopCallback) OnReadSubstate(KernelInternalApi, *ReadSubstateEvent) error   { return nil }
func (NopCallback) OnWriteSubstate(KernelInternalApi, *WriteSubstateEvent) error { return nil }
func (NopCallback) OnSetSubstate(KernelInternalApi, *SubstateEvent) error        { return nil }
func (NopCallback) OnRemoveSubstate(KernelInternalApi, *SubstateEvent) error     { return nil }
func (NopCallback) OnScanKeys(KernelInternalApi, *ScanEvent) error               { return nil }
func (NopCallback) OnDrainSubstates(KernelInternalApi, *ScanEvent) error         { return nil }
func (NopCallback) OnScanSortedSubstates(KernelInternalApi, *ScanEvent) error    { return nil }
func (NopCallback) OnMarkSubstateAsTransient(KernelInternalApi, types.NodeId, types.PartitionNumber, types.SubstateKey) error {
	return nil
}
func (NopCallback) BeforeInvoke(KernelInternalApi, *Invocation) error { return nil }
func (NopCallback) AfterInvoke(KernelInternalApi, int) error          { return nil }
func (NopCallback) OnExecutionStart(KernelInternalApi) error          { return nil }
func (NopCallback) OnExecutionFinish(KernelInternalApi, *callframe.CallFrameMessage) error {
	return nil
}
func (NopCallback) OnAllocateNodeId(KernelInternalApi, types.EntityType) error { return nil }

// InvokeUpstream returns the arguments unchanged.
func (NopCallback) InvokeUpstream(_ KernelApi, args *types.IndexedValue) (*types.IndexedValue, error) {
	return args, nil
}

// AutoDrop drops every node.
func (NopCallback) AutoDrop(api KernelApi, nodes []types.NodeId) error {
	for _, id := range nodes {
		if _, err := api.KernelDropNode(id); err != nil {
			return err
		}
	}
	return nil
}

func (NopCallback) OnSubstateLockFault(KernelApi, types.NodeId, types.PartitionNumber, types.SubstateKey) (bool, error) {
	return false, nil
}
