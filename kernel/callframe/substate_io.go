package callframe

import (
	"sort"

	"github.com/gammazero/deque"

	"github.com/xuperchain/xkernel/kernel/heap"
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
)

// SubstateDevice is where the substates of a node live.
type SubstateDevice uint8

const (
	DeviceHeap SubstateDevice = iota
	DeviceStore
)

func (d SubstateDevice) String() string {
	if d == DeviceHeap {
		return "heap"
	}
	return "store"
}

// Store is the persisted substate store, implemented by *track.Track.
type Store interface {
	CreateNode(id types.NodeId, substates types.NodeSubstates, onAccess track.OnStoreAccess) error
	GetSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, onAccess track.OnStoreAccess) (*types.IndexedValue, bool, error)
	SetSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, value *types.IndexedValue, onAccess track.OnStoreAccess) error
	RemoveSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, onAccess track.OnStoreAccess) (*types.IndexedValue, bool, error)
	ScanKeys(id types.NodeId, p types.PartitionNumber, limit int, onAccess track.OnStoreAccess) ([]types.SubstateKey, error)
	DrainSubstates(id types.NodeId, p types.PartitionNumber, limit int, onAccess track.OnStoreAccess) ([]types.SubstateEntry, error)
	ScanSortedSubstates(id types.NodeId, p types.PartitionNumber, limit int, onAccess track.OnStoreAccess) ([]types.SubstateEntry, error)
	GetTrackedSubstateInfo(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) track.TrackedSubstateInfo
	ForceWrite(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error
	MarkTransient(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error
}

var _ Store = (*track.Track)(nil)

type substateAddr struct {
	node      types.NodeId
	partition types.PartitionNumber
	key       types.SubstateKey
}

// LockData is the state of an open substate shared by every frame.
type LockData struct {
	Flags  types.LockFlags
	Device SubstateDevice
	// Virtualized is set when the substate was missing and a default value was used.
	Virtualized bool
	// Staged is the value seen through the lock, including unflushed writes.
	Staged *types.IndexedValue
	Dirty  bool
	// Data is owned by the kernel callback.
	Data interface{}
}

type lockEntry struct {
	addr substateAddr
	data *LockData
}

type substateLock struct {
	readers int
	mutable bool
}

// lockTable holds every open substate of the call stack.
type lockTable struct {
	nextHandle types.LockHandle
	handles    map[types.LockHandle]*lockEntry
	substates  map[substateAddr]*substateLock
	nodes      map[types.NodeId]int
}

func newLockTable() *lockTable {
	return &lockTable{
		handles:   make(map[types.LockHandle]*lockEntry),
		substates: make(map[substateAddr]*substateLock),
		nodes:     make(map[types.NodeId]int),
	}
}

func (t *lockTable) canLock(addr substateAddr, flags types.LockFlags) bool {
	l, ok := t.substates[addr]
	if !ok {
		return true
	}
	if flags.IsMutable() {
		return l.readers == 0 && !l.mutable
	}
	return !l.mutable
}

func (t *lockTable) lock(addr substateAddr, data *LockData) types.LockHandle {
	l, ok := t.substates[addr]
	if !ok {
		l = &substateLock{}
		t.substates[addr] = l
	}
	if data.Flags.IsMutable() {
		l.mutable = true
	} else {
		l.readers++
	}
	t.nodes[addr.node]++

	t.nextHandle++
	handle := t.nextHandle
	t.handles[handle] = &lockEntry{addr: addr, data: data}
	return handle
}

func (t *lockTable) unlock(handle types.LockHandle) {
	e, ok := t.handles[handle]
	if !ok {
		return
	}
	delete(t.handles, handle)
	l := t.substates[e.addr]
	if e.data.Flags.IsMutable() {
		l.mutable = false
	} else {
		l.readers--
	}
	if l.readers == 0 && !l.mutable {
		delete(t.substates, e.addr)
	}
	if t.nodes[e.addr.node]--; t.nodes[e.addr.node] == 0 {
		delete(t.nodes, e.addr.node)
	}
}

func (t *lockTable) nodeLocked(id types.NodeId) bool {
	return t.nodes[id] > 0
}

func (t *lockTable) partitionLocked(id types.NodeId, p types.PartitionNumber) bool {
	if !t.nodeLocked(id) {
		return false
	}
	for addr := range t.substates {
		if addr.node == id && addr.partition == p {
			return true
		}
	}
	return false
}

// SubstateIO is the heap, the store and the lock state shared by all frames of a kernel.
type SubstateIO struct {
	Heap  *heap.Heap
	Store Store
	// NonGlobalRefs counts outstanding references to internal nodes.
	NonGlobalRefs map[types.NodeId]int
	// MaxOpenSubstates limits open substates per frame, 0 means no limit.
	MaxOpenSubstates int

	locks         *lockTable
	pinned        map[types.NodeId]struct{}
	heapTransient map[substateAddr]struct{}
}

func NewSubstateIO(h *heap.Heap, store Store) *SubstateIO {
	return &SubstateIO{
		Heap:          h,
		Store:         store,
		NonGlobalRefs: make(map[types.NodeId]int),
		locks:         newLockTable(),
		pinned:        make(map[types.NodeId]struct{}),
		heapTransient: make(map[substateAddr]struct{}),
	}
}

func (io *SubstateIO) device(id types.NodeId) SubstateDevice {
	if io.Heap.ContainsNode(id) {
		return DeviceHeap
	}
	return DeviceStore
}

// LockData returns the state of an open substate of any frame.
func (io *SubstateIO) LockData(handle types.LockHandle) (*LockData, bool) {
	e, ok := io.locks.handles[handle]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// OpenSubstates is the number of open substates over all frames.
func (io *SubstateIO) OpenSubstates() int {
	return len(io.locks.handles)
}

func (io *SubstateIO) IsPinned(id types.NodeId) bool {
	_, ok := io.pinned[id]
	return ok
}

func (io *SubstateIO) addNonGlobalRef(id types.NodeId) {
	io.NonGlobalRefs[id]++
}

func (io *SubstateIO) releaseNonGlobalRef(id types.NodeId) {
	if io.NonGlobalRefs[id]--; io.NonGlobalRefs[id] <= 0 {
		delete(io.NonGlobalRefs, id)
	}
}

// heapTree lists id and every heap node it owns, transitively.
func (io *SubstateIO) heapTree(id types.NodeId) []types.NodeId {
	var q deque.Deque
	q.PushBack(id)
	var out []types.NodeId
	for q.Len() > 0 {
		n := q.PopFront().(types.NodeId)
		out = append(out, n)
		for _, child := range io.Heap.OwnedNodes(n) {
			q.PushBack(child)
		}
	}
	return out
}

func (io *SubstateIO) treeLocked(id types.NodeId) bool {
	for _, n := range io.heapTree(id) {
		if io.locks.nodeLocked(n) {
			return true
		}
	}
	return false
}

func (io *SubstateIO) treeBorrowed(id types.NodeId) bool {
	for _, n := range io.heapTree(id) {
		if io.NonGlobalRefs[n] > 0 {
			return true
		}
	}
	return false
}

func wrapAccess(onAccess track.OnStoreAccess) track.OnStoreAccess {
	if onAccess == nil {
		return nil
	}
	return func(a track.StoreAccess) error {
		if err := onAccess(a); err != nil {
			return &CallbackError{Err: err}
		}
		return nil
	}
}

// persistNodes moves heap nodes and everything they own into the store.
func (io *SubstateIO) persistNodes(ids []types.NodeId, onAccess track.OnStoreAccess) error {
	var q deque.Deque
	for _, id := range ids {
		q.PushBack(id)
	}
	for q.Len() > 0 {
		id := q.PopFront().(types.NodeId)
		if !io.Heap.ContainsNode(id) {
			// already in the store
			continue
		}
		switch {
		case io.IsPinned(id):
			return &PersistNodeError{Err: nodeError(ErrCannotPersistPinnedNode, id)}
		case io.NonGlobalRefs[id] > 0:
			return &PersistNodeError{Err: nodeError(ErrNodeBorrowed, id)}
		case io.locks.nodeLocked(id):
			return &PersistNodeError{Err: nodeError(ErrSubstateBorrowed, id)}
		}

		substates, err := io.Heap.RemoveNode(id)
		if err != nil {
			return err
		}
		for p, sub := range substates {
			for k, v := range sub {
				addr := substateAddr{id, p, k}
				if _, ok := io.heapTransient[addr]; ok {
					delete(io.heapTransient, addr)
					delete(sub, k)
					continue
				}
				for _, ref := range v.References() {
					if !ref.IsGlobal() {
						return &PersistNodeError{Err: nodeError(ErrContainsNonGlobalRef, id)}
					}
				}
				for _, child := range v.OwnedNodes() {
					q.PushBack(child)
				}
			}
		}
		if err := io.Store.CreateNode(id, substates, wrapAccess(onAccess)); err != nil {
			return err
		}
	}
	return nil
}

func sortedHandles(m map[types.LockHandle]*openSubstate) []types.LockHandle {
	handles := make([]types.LockHandle, 0, len(m))
	for h := range m {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}
