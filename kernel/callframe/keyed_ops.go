package callframe

import (
	"math"

	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
)

// The operations below address substates of map and index partitions
// directly, without a lock. They never add owned nodes to a substate, and
// nodes owned by a removed heap substate become owned roots of the frame.

func (f *CallFrame) checkUnlocked(io *SubstateIO, op Op, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error {
	if !f.isVisible(id) {
		return opError(op, nodeError(ErrNodeNotVisible, id))
	}
	if _, ok := io.locks.substates[substateAddr{id, p, k}]; ok {
		return opError(op, substateError(ErrSubstateLocked, id, p, k))
	}
	return nil
}

func (f *CallFrame) SetSubstate(io *SubstateIO, id types.NodeId, p types.PartitionNumber, k types.SubstateKey,
	value *types.IndexedValue, onAccess track.OnStoreAccess) error {
	if err := f.checkUnlocked(io, OpSetSubstate, id, p, k); err != nil {
		return err
	}
	if value == nil {
		return opError(OpSetSubstate, processError(ErrNilValue))
	}
	if owns := value.OwnedNodes(); len(owns) > 0 {
		return opError(OpSetSubstate, processError(nodeError(ErrKeyedSubstateOwnsNode, owns[0])))
	}
	device := io.device(id)
	if err := f.checkReferences(value.References(), device); err != nil {
		return opError(OpSetSubstate, processError(err))
	}
	if device == DeviceHeap {
		// overwriting hands the old owns back to the frame
		old, _ := io.Heap.GetSubstate(id, p, k)
		if err := f.checkReleasable(io, id, old); err != nil {
			return opError(OpSetSubstate, err)
		}
		io.Heap.SetSubstate(id, p, k, value)
		f.releaseOwned(old)
		return nil
	}
	return opError(OpSetSubstate, io.setSubstate(device, substateAddr{id, p, k}, value, onAccess))
}

func (f *CallFrame) RemoveSubstate(io *SubstateIO, id types.NodeId, p types.PartitionNumber, k types.SubstateKey,
	onAccess track.OnStoreAccess) (*types.IndexedValue, error) {
	if err := f.checkUnlocked(io, OpRemoveSubstate, id, p, k); err != nil {
		return nil, err
	}
	if io.device(id) == DeviceHeap {
		v, ok := io.Heap.GetSubstate(id, p, k)
		if !ok {
			return nil, nil
		}
		if err := f.checkReleasable(io, id, v); err != nil {
			return nil, opError(OpRemoveSubstate, err)
		}
		io.Heap.RemoveSubstate(id, p, k)
		delete(io.heapTransient, substateAddr{id, p, k})
		f.releaseOwned(v)
		return v, nil
	}
	v, found, err := io.Store.GetSubstate(id, p, k, wrapAccess(onAccess))
	if err != nil {
		return nil, opError(OpRemoveSubstate, err)
	}
	if !found {
		return nil, nil
	}
	if err := f.checkReleasable(io, id, v); err != nil {
		return nil, opError(OpRemoveSubstate, err)
	}
	v, found, err = io.Store.RemoveSubstate(id, p, k, wrapAccess(onAccess))
	if err != nil {
		return nil, opError(OpRemoveSubstate, err)
	}
	if !found {
		return nil, nil
	}
	return v, nil
}

func (f *CallFrame) checkPartition(io *SubstateIO, op Op, id types.NodeId, p types.PartitionNumber) error {
	if !f.isVisible(id) {
		return opError(op, nodeError(ErrNodeNotVisible, id))
	}
	if io.locks.partitionLocked(id, p) {
		return opError(op, substateError(ErrSubstateLocked, id, p, types.FieldKey(0)))
	}
	return nil
}

func scanLimit(limit uint32) int {
	if limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(limit)
}

func (f *CallFrame) ScanKeys(io *SubstateIO, id types.NodeId, p types.PartitionNumber, limit uint32,
	onAccess track.OnStoreAccess) ([]types.SubstateKey, error) {
	if err := f.checkPartition(io, OpScanKeys, id, p); err != nil {
		return nil, err
	}
	if io.device(id) == DeviceHeap {
		return io.Heap.ScanKeys(id, p, scanLimit(limit)), nil
	}
	keys, err := io.Store.ScanKeys(id, p, scanLimit(limit), wrapAccess(onAccess))
	return keys, opError(OpScanKeys, err)
}

func (f *CallFrame) ScanSortedSubstates(io *SubstateIO, id types.NodeId, p types.PartitionNumber, limit uint32,
	onAccess track.OnStoreAccess) ([]types.SubstateEntry, error) {
	if err := f.checkPartition(io, OpScanSorted, id, p); err != nil {
		return nil, err
	}
	if io.device(id) == DeviceHeap {
		return io.Heap.ScanSorted(id, p, scanLimit(limit)), nil
	}
	entries, err := io.Store.ScanSortedSubstates(id, p, scanLimit(limit), wrapAccess(onAccess))
	return entries, opError(OpScanSorted, err)
}

// DrainSubstates removes up to limit substates. Nodes owned by drained heap
// substates become owned roots of the frame.
func (f *CallFrame) DrainSubstates(io *SubstateIO, id types.NodeId, p types.PartitionNumber, limit uint32,
	onAccess track.OnStoreAccess) ([]types.SubstateEntry, error) {
	if err := f.checkPartition(io, OpDrainSubstates, id, p); err != nil {
		return nil, err
	}
	if io.device(id) == DeviceHeap {
		entries := io.Heap.Entries(id, p)
		if n := scanLimit(limit); len(entries) > n {
			entries = entries[:n]
		}
		values := make([]*types.IndexedValue, 0, len(entries))
		for _, e := range entries {
			values = append(values, e.Value)
		}
		if err := f.checkReleasable(io, id, values...); err != nil {
			return nil, opError(OpDrainSubstates, err)
		}
		drained := io.Heap.DrainSubstates(id, p, scanLimit(limit))
		for _, e := range drained {
			delete(io.heapTransient, substateAddr{id, p, e.Key})
			f.releaseOwned(e.Value)
		}
		return drained, nil
	}
	keys, err := io.Store.ScanKeys(id, p, scanLimit(limit), wrapAccess(onAccess))
	if err != nil {
		return nil, opError(OpDrainSubstates, err)
	}
	for _, k := range keys {
		// loaded by the scan, no further store access
		v, _, err := io.Store.GetSubstate(id, p, k, nil)
		if err != nil {
			return nil, opError(OpDrainSubstates, err)
		}
		if owns := v.OwnedNodes(); len(owns) > 0 {
			return nil, opError(OpDrainSubstates, nodeError(ErrStoredNodeRemoved, owns[0]))
		}
	}
	drained, err := io.Store.DrainSubstates(id, p, scanLimit(limit), wrapAccess(onAccess))
	return drained, opError(OpDrainSubstates, err)
}
