package engine

import (
	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/types"
)

// PartitionSource names a partition of an existing node.
type PartitionSource struct {
	Node      types.NodeId
	Partition types.PartitionNumber
}

type KernelNodeApi interface {
	KernelAllocateNodeId(entityType types.EntityType) (types.NodeId, error)
	KernelCreateNode(id types.NodeId, substates types.NodeSubstates) error
	// KernelCreateNodeFrom creates a node whose partitions are moved out of other nodes.
	KernelCreateNodeFrom(id types.NodeId, partitions map[types.PartitionNumber]PartitionSource) error
	KernelPinNode(id types.NodeId) error
	KernelDropNode(id types.NodeId) (types.NodeSubstates, error)
	KernelMovePartition(src types.NodeId, srcPartition types.PartitionNumber, dest types.NodeId, destPartition types.PartitionNumber) error
	KernelMarkSubstateAsTransient(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error
}

type KernelSubstateApi interface {
	KernelOpenSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, flags types.LockFlags, data interface{}) (types.LockHandle, error)
	KernelOpenSubstateWithDefault(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, flags types.LockFlags,
		defaultValue func() *types.IndexedValue, data interface{}) (types.LockHandle, error)
	KernelGetLockData(handle types.LockHandle) (*callframe.LockData, error)
	KernelReadSubstate(handle types.LockHandle) (*types.IndexedValue, error)
	KernelWriteSubstate(handle types.LockHandle, value *types.IndexedValue) error
	KernelCloseSubstate(handle types.LockHandle) error

	KernelSetSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, value *types.IndexedValue) error
	KernelRemoveSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) (*types.IndexedValue, error)
	KernelScanKeys(id types.NodeId, p types.PartitionNumber, limit uint32) ([]types.SubstateKey, error)
	KernelDrainSubstates(id types.NodeId, p types.PartitionNumber, limit uint32) ([]types.SubstateEntry, error)
	KernelScanSortedSubstates(id types.NodeId, p types.PartitionNumber, limit uint32) ([]types.SubstateEntry, error)
}

// Invocation is a call into a new frame. CallFrameData identifies the
// actor and carries the references it brings along.
type Invocation struct {
	CallFrameData callframe.CallFrameReferences
	Args          *types.IndexedValue
}

// Len is the size charged for the invocation.
func (inv *Invocation) Len() int {
	n := 0
	if inv.CallFrameData != nil {
		n += inv.CallFrameData.Len()
	}
	if inv.Args != nil {
		n += inv.Args.Len()
	}
	return n
}

type KernelInvokeApi interface {
	KernelInvoke(inv *Invocation) (*types.IndexedValue, error)
}

// KernelInternalApi exposes kernel state to callbacks.
type KernelInternalApi interface {
	KernelGetCurrentDepth() int
	KernelGetCallFrameData() callframe.CallFrameReferences
	KernelGetNodeVisibility(id types.NodeId) callframe.NodeVisibility
	KernelGetOwnedNodes() []types.NodeId
}

type KernelApi interface {
	KernelNodeApi
	KernelSubstateApi
	KernelInvokeApi
	KernelInternalApi
}
