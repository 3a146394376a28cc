package engine

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
)

func (k *Kernel) KernelOpenSubstate(id types.NodeId, p types.PartitionNumber, key types.SubstateKey,
	flags types.LockFlags, data interface{}) (types.LockHandle, error) {
	return k.openSubstate(id, p, key, flags, nil, data)
}

func (k *Kernel) KernelOpenSubstateWithDefault(id types.NodeId, p types.PartitionNumber, key types.SubstateKey,
	flags types.LockFlags, defaultValue func() *types.IndexedValue, data interface{}) (types.LockHandle, error) {
	return k.openSubstate(id, p, key, flags, defaultValue, data)
}

func (k *Kernel) openSubstate(id types.NodeId, p types.PartitionNumber, key types.SubstateKey,
	flags types.LockFlags, defaultValue func() *types.IndexedValue, data interface{}) (types.LockHandle, error) {
	ev := OpenSubstateEvent{NodeId: id, Partition: p, Key: key, Flags: flags}
	start := ev
	if err := k.callback.OnOpenSubstate(k, &start); err != nil {
		return 0, callbackError(err)
	}
	onAccess := func(a track.StoreAccess) error {
		access := ev
		access.Phase, access.StoreAccess = PhaseStoreAccess, &a
		return k.callback.OnOpenSubstate(k, &access)
	}

	handle, value, err := k.current.OpenSubstate(k.io, id, p, key, flags, defaultValue, onAccess, data)
	if err != nil && errors.Is(err, callframe.ErrSubstateFault) {
		// the callback may materialize the substate, e.g. a virtual account
		handled, ferr := k.callback.OnSubstateLockFault(k, id, p, key)
		if ferr != nil {
			return 0, callbackError(ferr)
		}
		if handled {
			handle, value, err = k.current.OpenSubstate(k.io, id, p, key, flags, defaultValue, onAccess, data)
		}
	}
	if err != nil {
		return 0, toRuntimeError(err)
	}

	end := ev
	end.Phase, end.Handle, end.Size = PhaseEnd, handle, value.Len()
	if err := k.callback.OnOpenSubstate(k, &end); err != nil {
		return 0, callbackError(err)
	}
	return handle, nil
}

func (k *Kernel) KernelGetLockData(handle types.LockHandle) (*callframe.LockData, error) {
	data, err := k.current.GetLockData(k.io, handle)
	return data, toRuntimeError(err)
}

func (k *Kernel) KernelReadSubstate(handle types.LockHandle) (*types.IndexedValue, error) {
	value, err := k.current.ReadSubstate(k.io, handle)
	if err != nil {
		return nil, toRuntimeError(err)
	}
	data, _ := k.io.LockData(handle)
	if err := k.callback.OnReadSubstate(k, &ReadSubstateEvent{Handle: handle, Value: value, Device: data.Device}); err != nil {
		return nil, callbackError(err)
	}
	return value, nil
}

func (k *Kernel) KernelWriteSubstate(handle types.LockHandle, value *types.IndexedValue) error {
	if err := k.callback.OnWriteSubstate(k, &WriteSubstateEvent{Phase: PhaseStart, Handle: handle, Value: value}); err != nil {
		return callbackError(err)
	}
	if err := k.current.WriteSubstate(k.io, handle, value); err != nil {
		return toRuntimeError(err)
	}
	return callbackError(k.callback.OnWriteSubstate(k, &WriteSubstateEvent{Phase: PhaseEnd, Handle: handle, Value: value}))
}

func (k *Kernel) KernelCloseSubstate(handle types.LockHandle) error {
	if err := k.callback.OnCloseSubstate(k, &CloseSubstateEvent{Phase: PhaseStart, Handle: handle}); err != nil {
		return callbackError(err)
	}
	onAccess := func(a track.StoreAccess) error {
		return k.callback.OnCloseSubstate(k, &CloseSubstateEvent{Phase: PhaseStoreAccess, Handle: handle, StoreAccess: &a})
	}
	if err := k.current.CloseSubstate(k.io, handle, onAccess); err != nil {
		return toRuntimeError(err)
	}
	return callbackError(k.callback.OnCloseSubstate(k, &CloseSubstateEvent{Phase: PhaseEnd, Handle: handle}))
}

func (k *Kernel) KernelSetSubstate(id types.NodeId, p types.PartitionNumber, key types.SubstateKey, value *types.IndexedValue) error {
	ev := SubstateEvent{NodeId: id, Partition: p, Key: key, Value: value}
	start := ev
	if err := k.callback.OnSetSubstate(k, &start); err != nil {
		return callbackError(err)
	}
	onAccess := func(a track.StoreAccess) error {
		access := ev
		access.Phase, access.StoreAccess = PhaseStoreAccess, &a
		return k.callback.OnSetSubstate(k, &access)
	}
	if err := k.current.SetSubstate(k.io, id, p, key, value, onAccess); err != nil {
		return toRuntimeError(err)
	}
	end := ev
	end.Phase = PhaseEnd
	return callbackError(k.callback.OnSetSubstate(k, &end))
}

func (k *Kernel) KernelRemoveSubstate(id types.NodeId, p types.PartitionNumber, key types.SubstateKey) (*types.IndexedValue, error) {
	ev := SubstateEvent{NodeId: id, Partition: p, Key: key}
	start := ev
	if err := k.callback.OnRemoveSubstate(k, &start); err != nil {
		return nil, callbackError(err)
	}
	onAccess := func(a track.StoreAccess) error {
		access := ev
		access.Phase, access.StoreAccess = PhaseStoreAccess, &a
		return k.callback.OnRemoveSubstate(k, &access)
	}
	value, err := k.current.RemoveSubstate(k.io, id, p, key, onAccess)
	if err != nil {
		return nil, toRuntimeError(err)
	}
	end := ev
	end.Phase, end.Value = PhaseEnd, value
	if err := k.callback.OnRemoveSubstate(k, &end); err != nil {
		return nil, callbackError(err)
	}
	return value, nil
}

type scanHook func(api KernelInternalApi, ev *ScanEvent) error

// scan brackets a partition scan with its hook.
func (k *Kernel) scan(hook scanHook, id types.NodeId, p types.PartitionNumber, limit uint32,
	run func(onAccess track.OnStoreAccess) (int, error)) error {
	ev := ScanEvent{NodeId: id, Partition: p, Limit: limit}
	start := ev
	if err := hook(k, &start); err != nil {
		return callbackError(err)
	}
	onAccess := func(a track.StoreAccess) error {
		access := ev
		access.Phase, access.StoreAccess = PhaseStoreAccess, &a
		return hook(k, &access)
	}
	count, err := run(onAccess)
	if err != nil {
		return toRuntimeError(err)
	}
	end := ev
	end.Phase, end.Count = PhaseEnd, count
	return callbackError(hook(k, &end))
}

func (k *Kernel) KernelScanKeys(id types.NodeId, p types.PartitionNumber, limit uint32) ([]types.SubstateKey, error) {
	var keys []types.SubstateKey
	err := k.scan(k.callback.OnScanKeys, id, p, limit, func(onAccess track.OnStoreAccess) (int, error) {
		var err error
		keys, err = k.current.ScanKeys(k.io, id, p, limit, onAccess)
		return len(keys), err
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (k *Kernel) KernelDrainSubstates(id types.NodeId, p types.PartitionNumber, limit uint32) ([]types.SubstateEntry, error) {
	var entries []types.SubstateEntry
	err := k.scan(k.callback.OnDrainSubstates, id, p, limit, func(onAccess track.OnStoreAccess) (int, error) {
		var err error
		entries, err = k.current.DrainSubstates(k.io, id, p, limit, onAccess)
		return len(entries), err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (k *Kernel) KernelScanSortedSubstates(id types.NodeId, p types.PartitionNumber, limit uint32) ([]types.SubstateEntry, error) {
	var entries []types.SubstateEntry
	err := k.scan(k.callback.OnScanSortedSubstates, id, p, limit, func(onAccess track.OnStoreAccess) (int, error) {
		var err error
		entries, err = k.current.ScanSortedSubstates(k.io, id, p, limit, onAccess)
		return len(entries), err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
