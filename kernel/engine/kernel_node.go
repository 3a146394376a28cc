package engine

import (
	"sort"

	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
)

func (k *Kernel) KernelCreateNode(id types.NodeId, substates types.NodeSubstates) error {
	if err := k.callback.OnCreateNode(k, &CreateNodeEvent{Phase: PhaseStart, NodeId: id, Substates: substates}); err != nil {
		return callbackError(err)
	}
	onAccess := func(a track.StoreAccess) error {
		return k.callback.OnCreateNode(k, &CreateNodeEvent{Phase: PhaseStoreAccess, NodeId: id, StoreAccess: &a})
	}
	if err := k.current.CreateNode(k.io, id, substates, onAccess); err != nil {
		return toRuntimeError(err)
	}
	return callbackError(k.callback.OnCreateNode(k, &CreateNodeEvent{Phase: PhaseEnd, NodeId: id, Substates: substates}))
}

// KernelCreateNodeFrom creates an empty node and moves the given partitions into it.
func (k *Kernel) KernelCreateNodeFrom(id types.NodeId, partitions map[types.PartitionNumber]PartitionSource) error {
	if err := k.KernelCreateNode(id, types.NodeSubstates{}); err != nil {
		return err
	}
	dests := make([]types.PartitionNumber, 0, len(partitions))
	for p := range partitions {
		dests = append(dests, p)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })
	for _, dest := range dests {
		src := partitions[dest]
		if err := k.KernelMovePartition(src.Node, src.Partition, id, dest); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) KernelPinNode(id types.NodeId) error {
	if err := k.current.PinNode(k.io, id); err != nil {
		return toRuntimeError(err)
	}
	return callbackError(k.callback.OnPinNode(k, id))
}

func (k *Kernel) KernelDropNode(id types.NodeId) (types.NodeSubstates, error) {
	if err := k.callback.OnDropNode(k, &DropNodeEvent{Phase: PhaseStart, NodeId: id}); err != nil {
		return nil, callbackError(err)
	}
	substates, err := k.current.DropNode(k.io, id)
	if err != nil {
		return nil, toRuntimeError(err)
	}
	if err := k.callback.OnDropNode(k, &DropNodeEvent{Phase: PhaseEnd, NodeId: id, Substates: substates}); err != nil {
		return nil, callbackError(err)
	}
	return substates, nil
}

func (k *Kernel) KernelMovePartition(src types.NodeId, srcPartition types.PartitionNumber, dest types.NodeId, destPartition types.PartitionNumber) error {
	ev := MoveModuleEvent{Src: src, SrcPartition: srcPartition, Dest: dest, DestPartition: destPartition}
	start := ev
	if err := k.callback.OnMoveModule(k, &start); err != nil {
		return callbackError(err)
	}
	onAccess := func(a track.StoreAccess) error {
		access := ev
		access.Phase, access.StoreAccess = PhaseStoreAccess, &a
		return k.callback.OnMoveModule(k, &access)
	}
	if err := k.current.MovePartition(k.io, src, srcPartition, dest, destPartition, onAccess); err != nil {
		return toRuntimeError(err)
	}
	end := ev
	end.Phase = PhaseEnd
	return callbackError(k.callback.OnMoveModule(k, &end))
}

func (k *Kernel) KernelMarkSubstateAsTransient(id types.NodeId, p types.PartitionNumber, key types.SubstateKey) error {
	if err := k.callback.OnMarkSubstateAsTransient(k, id, p, key); err != nil {
		return callbackError(err)
	}
	return toRuntimeError(k.current.MarkSubstateAsTransient(k.io, id, p, key))
}
