package callframe

import (
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
)

// OpenSubstate locks a substate of a visible node and returns its value.
// When the substate is missing, defaultValue (if any) provides it.
func (f *CallFrame) OpenSubstate(io *SubstateIO, id types.NodeId, p types.PartitionNumber, k types.SubstateKey,
	flags types.LockFlags, defaultValue func() *types.IndexedValue, onAccess track.OnStoreAccess, data interface{}) (types.LockHandle, *types.IndexedValue, error) {
	if io.MaxOpenSubstates > 0 && len(f.openSubstates) >= io.MaxOpenSubstates {
		return 0, nil, opError(OpOpenSubstate, substateError(ErrTooManyOpenSubstates, id, p, k))
	}
	if !f.isVisible(id) {
		return 0, nil, opError(OpOpenSubstate, nodeError(ErrNodeNotVisible, id))
	}
	addr := substateAddr{id, p, k}
	device := io.device(id)
	if flags.Contains(types.LockFlagUnmodifiedBase) {
		if device == DeviceHeap {
			return 0, nil, opError(OpOpenSubstate, substateError(ErrLockUnmodifiedBaseOnHeapNode, id, p, k))
		}
		switch io.Store.GetTrackedSubstateInfo(id, p, k) {
		case track.SubstateNew:
			return 0, nil, opError(OpOpenSubstate, substateError(ErrLockUnmodifiedBaseOnNewSubstate, id, p, k))
		case track.SubstateUpdated:
			return 0, nil, opError(OpOpenSubstate, substateError(ErrLockUnmodifiedBaseOnUpdatedSubstate, id, p, k))
		}
	}
	if !io.locks.canLock(addr, flags) {
		return 0, nil, opError(OpOpenSubstate, substateError(ErrSubstateLocked, id, p, k))
	}

	value, found, err := io.getSubstate(device, addr, onAccess)
	if err != nil {
		return 0, nil, opError(OpOpenSubstate, err)
	}
	virtualized := false
	if !found {
		if defaultValue == nil {
			return 0, nil, opError(OpOpenSubstate, substateError(ErrSubstateFault, id, p, k))
		}
		value = defaultValue()
		if len(value.OwnedNodes()) > 0 {
			return 0, nil, opError(OpOpenSubstate, substateError(ErrInvalidDefaultValue, id, p, k))
		}
		if err := f.checkReferences(value.References(), device); err != nil {
			return 0, nil, opError(OpOpenSubstate, processError(err))
		}
		if err := io.setSubstate(device, addr, value, onAccess); err != nil {
			return 0, nil, opError(OpOpenSubstate, err)
		}
		virtualized = true
	}

	lockData := &LockData{
		Flags:       flags,
		Device:      device,
		Virtualized: virtualized,
		Staged:      value,
		Data:        data,
	}
	handle := io.locks.lock(addr, lockData)
	open := &openSubstate{addr: addr, flags: flags}
	f.openSubstates[handle] = open
	f.exposeValue(io, open, value)
	return handle, value, nil
}

// exposeValue makes the owns and references of an open substate visible.
func (f *CallFrame) exposeValue(io *SubstateIO, open *openSubstate, value *types.IndexedValue) {
	for _, owned := range value.OwnedNodes() {
		f.transientRefs[owned]++
		open.ownedNodes = append(open.ownedNodes, owned)
	}
	for _, ref := range value.References() {
		if ref.IsGlobal() {
			f.AddGlobalReference(ref)
			continue
		}
		f.transientRefs[ref]++
		io.addNonGlobalRef(ref)
		open.nonGlobalRefs = append(open.nonGlobalRefs, ref)
	}
}

func (f *CallFrame) releaseValue(io *SubstateIO, open *openSubstate) {
	for _, owned := range open.ownedNodes {
		f.releaseTransient(owned)
	}
	for _, ref := range open.nonGlobalRefs {
		f.releaseTransient(ref)
		io.releaseNonGlobalRef(ref)
	}
	open.ownedNodes, open.nonGlobalRefs = nil, nil
}

func (f *CallFrame) releaseTransient(id types.NodeId) {
	if f.transientRefs[id]--; f.transientRefs[id] <= 0 {
		delete(f.transientRefs, id)
	}
}

func (f *CallFrame) openSubstate(handle types.LockHandle) (*openSubstate, error) {
	open, ok := f.openSubstates[handle]
	if !ok {
		return nil, &LockNotFoundError{Handle: handle}
	}
	return open, nil
}

// GetLockData returns the lock state of a handle opened by this frame.
func (f *CallFrame) GetLockData(io *SubstateIO, handle types.LockHandle) (*LockData, error) {
	if _, err := f.openSubstate(handle); err != nil {
		return nil, err
	}
	data, _ := io.LockData(handle)
	return data, nil
}

// ReadSubstate returns the value seen through handle.
func (f *CallFrame) ReadSubstate(io *SubstateIO, handle types.LockHandle) (*types.IndexedValue, error) {
	if _, err := f.openSubstate(handle); err != nil {
		return nil, opError(OpReadSubstate, err)
	}
	data, _ := io.LockData(handle)
	return data.Staged, nil
}

// WriteSubstate stages value for a mutable lock. Nodes newly owned by value
// are taken from the frame and nodes no longer owned become owned roots again.
func (f *CallFrame) WriteSubstate(io *SubstateIO, handle types.LockHandle, value *types.IndexedValue) error {
	open, err := f.openSubstate(handle)
	if err != nil {
		return opError(OpWriteSubstate, err)
	}
	a := open.addr
	if !open.flags.IsMutable() {
		return opError(OpWriteSubstate, substateError(ErrNoWritePermission, a.node, a.partition, a.key))
	}
	if value == nil {
		return opError(OpWriteSubstate, processError(ErrNilValue))
	}
	data, _ := io.LockData(handle)
	if err := checkDuplicatedOwns(value.OwnedNodes()); err != nil {
		return opError(OpWriteSubstate, processError(err))
	}
	if err := f.checkReferences(value.References(), data.Device); err != nil {
		return opError(OpWriteSubstate, processError(err))
	}

	before := make(map[types.NodeId]struct{}, len(open.ownedNodes))
	for _, id := range open.ownedNodes {
		before[id] = struct{}{}
	}
	after := make(map[types.NodeId]struct{}, len(value.OwnedNodes()))
	var added []types.NodeId
	for _, id := range value.OwnedNodes() {
		after[id] = struct{}{}
		if _, ok := before[id]; !ok {
			added = append(added, id)
		}
	}
	var removed []types.NodeId
	for _, id := range open.ownedNodes {
		if _, ok := after[id]; !ok {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 && data.Device == DeviceStore {
		return opError(OpWriteSubstate, processError(nodeError(ErrStoredNodeRemoved, removed[0])))
	}
	if len(removed) > 0 && !f.ownsNode(a.node) {
		return opError(OpWriteSubstate, processError(&TakeNodeError{Err: nodeError(ErrOwnNotFound, a.node)}))
	}
	for _, id := range removed {
		if io.treeLocked(id) {
			return opError(OpWriteSubstate, processError(&TakeNodeError{Err: nodeError(ErrSubstateBorrowed, id)}))
		}
	}
	if err := f.takeNodes(io, added); err != nil {
		return opError(OpWriteSubstate, processError(err))
	}

	f.releaseValue(io, open)
	for _, id := range removed {
		f.addOwnedRoot(id)
	}
	f.exposeValue(io, open, value)
	data.Staged = value
	data.Dirty = true
	return nil
}

// CloseSubstate flushes staged writes and releases the lock.
func (f *CallFrame) CloseSubstate(io *SubstateIO, handle types.LockHandle, onAccess track.OnStoreAccess) error {
	open, err := f.openSubstate(handle)
	if err != nil {
		return opError(OpCloseSubstate, err)
	}
	a := open.addr
	for _, owned := range open.ownedNodes {
		if io.treeLocked(owned) {
			return opError(OpCloseSubstate, substateError(ErrSubstateBorrowed, a.node, a.partition, a.key))
		}
	}

	data, _ := io.LockData(handle)
	if data.Dirty {
		if data.Device == DeviceStore {
			if err := io.persistNodes(data.Staged.OwnedNodes(), onAccess); err != nil {
				return opError(OpCloseSubstate, err)
			}
		}
		if err := io.setSubstate(data.Device, a, data.Staged, onAccess); err != nil {
			return opError(OpCloseSubstate, err)
		}
		data.Dirty = false
	}
	if open.flags.Contains(types.LockFlagForceWrite) && data.Device == DeviceStore {
		if err := io.Store.ForceWrite(a.node, a.partition, a.key); err != nil {
			return opError(OpCloseSubstate, err)
		}
	}

	f.releaseValue(io, open)
	delete(f.openSubstates, handle)
	io.locks.unlock(handle)
	return nil
}

func (io *SubstateIO) getSubstate(device SubstateDevice, a substateAddr, onAccess track.OnStoreAccess) (*types.IndexedValue, bool, error) {
	if device == DeviceHeap {
		v, ok := io.Heap.GetSubstate(a.node, a.partition, a.key)
		return v, ok, nil
	}
	return io.Store.GetSubstate(a.node, a.partition, a.key, wrapAccess(onAccess))
}

func (io *SubstateIO) setSubstate(device SubstateDevice, a substateAddr, value *types.IndexedValue, onAccess track.OnStoreAccess) error {
	if device == DeviceHeap {
		io.Heap.SetSubstate(a.node, a.partition, a.key, value)
		return nil
	}
	return io.Store.SetSubstate(a.node, a.partition, a.key, value, wrapAccess(onAccess))
}
