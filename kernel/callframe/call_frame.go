package callframe

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
)

// StableReferenceType is the origin of a reference which lives as long as the frame.
type StableReferenceType uint8

const (
	StableRefGlobal StableReferenceType = iota
	StableRefDirectAccess
)

// NodeVisibility lists the ways a node is visible from a frame.
type NodeVisibility struct {
	Owned           bool
	Global          bool
	DirectAccess    bool
	StableTransient bool
	// reachable through an open substate
	Transient bool
}

func (v NodeVisibility) IsVisible() bool {
	return v.Owned || v.Global || v.DirectAccess || v.StableTransient || v.Transient
}

type openSubstate struct {
	addr          substateAddr
	flags         types.LockFlags
	ownedNodes    []types.NodeId
	nonGlobalRefs []types.NodeId
}

// CallFrame is the ownership, visibility and lock bookkeeping of one invocation.
type CallFrame struct {
	depth int
	data  interface{}

	stableRefs      map[types.NodeId]StableReferenceType
	stableTransient map[types.NodeId]int
	transientRefs   map[types.NodeId]int
	// NodeId -> struct{}, in the order nodes were received
	ownedRoots    *linkedhashmap.Map
	openSubstates map[types.LockHandle]*openSubstate
}

func newCallFrame(depth int, data interface{}) *CallFrame {
	return &CallFrame{
		depth:           depth,
		data:            data,
		stableRefs:      make(map[types.NodeId]StableReferenceType),
		stableTransient: make(map[types.NodeId]int),
		transientRefs:   make(map[types.NodeId]int),
		ownedRoots:      linkedhashmap.New(),
		openSubstates:   make(map[types.LockHandle]*openSubstate),
	}
}

// NewRootCallFrame creates the frame at depth 0.
func NewRootCallFrame(data interface{}) *CallFrame {
	return newCallFrame(0, data)
}

// NewChildCallFrame creates a frame below parent and passes msg into it.
func NewChildCallFrame(io *SubstateIO, parent *CallFrame, data interface{}, msg *CallFrameMessage) (*CallFrame, error) {
	child := newCallFrame(parent.depth+1, data)
	if err := PassMessage(io, parent, child, msg); err != nil {
		return nil, opError(OpCreateFrame, err)
	}
	return child, nil
}

func (f *CallFrame) Depth() int {
	return f.depth
}

func (f *CallFrame) Data() interface{} {
	return f.data
}

// AddGlobalReference makes a global node visible, e.g. nodes referenced by the transaction.
func (f *CallFrame) AddGlobalReference(id types.NodeId) {
	f.stableRefs[id] = StableRefGlobal
}

func (f *CallFrame) AddDirectAccessReference(id types.NodeId) {
	if _, ok := f.stableRefs[id]; !ok {
		f.stableRefs[id] = StableRefDirectAccess
	}
}

func (f *CallFrame) GetNodeVisibility(id types.NodeId) NodeVisibility {
	var v NodeVisibility
	_, v.Owned = f.ownedRoots.Get(id)
	if t, ok := f.stableRefs[id]; ok {
		v.Global = t == StableRefGlobal
		v.DirectAccess = t == StableRefDirectAccess
	}
	v.StableTransient = f.stableTransient[id] > 0
	v.Transient = f.transientRefs[id] > 0
	return v
}

func (f *CallFrame) isVisible(id types.NodeId) bool {
	return f.GetNodeVisibility(id).IsVisible()
}

// OwnedNodes lists the owned root nodes.
func (f *CallFrame) OwnedNodes() []types.NodeId {
	keys := f.ownedRoots.Keys()
	out := make([]types.NodeId, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.(types.NodeId))
	}
	return out
}

// OpenHandles lists the handles opened by this frame in opening order.
func (f *CallFrame) OpenHandles() []types.LockHandle {
	return sortedHandles(f.openSubstates)
}

func (f *CallFrame) addOwnedRoot(id types.NodeId) {
	f.ownedRoots.Put(id, struct{}{})
}

// takeNode removes an owned root so that it can be moved elsewhere.
func (f *CallFrame) takeNode(io *SubstateIO, id types.NodeId) error {
	if _, ok := f.ownedRoots.Get(id); !ok {
		return &TakeNodeError{Err: nodeError(ErrOwnNotFound, id)}
	}
	if io.treeLocked(id) {
		return &TakeNodeError{Err: nodeError(ErrSubstateBorrowed, id)}
	}
	if io.treeBorrowed(id) {
		return &TakeNodeError{Err: nodeError(ErrOwnLocked, id)}
	}
	f.ownedRoots.Remove(id)
	return nil
}

// takeNodes takes all ids or none.
func (f *CallFrame) takeNodes(io *SubstateIO, ids []types.NodeId) error {
	for i, id := range ids {
		if err := f.takeNode(io, id); err != nil {
			for _, taken := range ids[:i] {
				f.addOwnedRoot(taken)
			}
			return err
		}
	}
	return nil
}

// ownsNode reports whether id is an owned root, or is owned by a substate this
// frame holds open on a node it owns. Stable transient and direct access
// references do not count.
func (f *CallFrame) ownsNode(id types.NodeId) bool {
	if _, ok := f.ownedRoots.Get(id); ok {
		return true
	}
	for _, s := range f.openSubstates {
		for _, child := range s.ownedNodes {
			if child == id {
				return s.addr.node != id && f.ownsNode(s.addr.node)
			}
		}
	}
	return false
}

// checkReleasable checks that the nodes owned by values leaving a substate of
// id can become owned roots of the frame.
func (f *CallFrame) checkReleasable(io *SubstateIO, id types.NodeId, values ...*types.IndexedValue) error {
	checked := false
	for _, v := range values {
		owns := v.OwnedNodes()
		if len(owns) == 0 {
			continue
		}
		if io.device(id) == DeviceStore {
			return nodeError(ErrStoredNodeRemoved, owns[0])
		}
		if !checked {
			if !f.ownsNode(id) {
				return &TakeNodeError{Err: nodeError(ErrOwnNotFound, id)}
			}
			checked = true
		}
		for _, child := range owns {
			if io.treeLocked(child) {
				return &TakeNodeError{Err: nodeError(ErrSubstateBorrowed, child)}
			}
		}
	}
	return nil
}

func (f *CallFrame) releaseOwned(values ...*types.IndexedValue) {
	for _, v := range values {
		for _, child := range v.OwnedNodes() {
			f.addOwnedRoot(child)
		}
	}
}

func checkDuplicatedOwns(owns []types.NodeId) error {
	seen := make(map[types.NodeId]struct{}, len(owns))
	for _, id := range owns {
		if _, ok := seen[id]; ok {
			return nodeError(ErrContainsDuplicatedOwns, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (f *CallFrame) checkReferences(refs []types.NodeId, device SubstateDevice) error {
	for _, ref := range refs {
		if !f.isVisible(ref) {
			return nodeError(ErrNodeNotVisible, ref)
		}
		if device == DeviceStore && !ref.IsGlobal() {
			return nodeError(ErrNonGlobalRefNotAllowed, ref)
		}
	}
	return nil
}

// CreateNode instantiates a node from substates. Internal nodes go to the
// heap and become owned roots; global nodes are persisted together with
// everything they own, and the frame keeps a global reference.
func (f *CallFrame) CreateNode(io *SubstateIO, id types.NodeId, substates types.NodeSubstates, onAccess track.OnStoreAccess) error {
	device := DeviceHeap
	if id.IsGlobal() {
		device = DeviceStore
	}
	if io.Heap.ContainsNode(id) || (device == DeviceHeap && f.isVisible(id)) {
		return opError(OpCreateNode, nodeError(ErrNodeAlreadyExists, id))
	}

	var owns []types.NodeId
	for _, sub := range substates {
		for _, v := range sub {
			if v == nil {
				return opError(OpCreateNode, processError(ErrNilValue))
			}
			owns = append(owns, v.OwnedNodes()...)
			if err := f.checkReferences(v.References(), device); err != nil {
				return opError(OpCreateNode, processError(err))
			}
		}
	}
	if err := checkDuplicatedOwns(owns); err != nil {
		return opError(OpCreateNode, processError(err))
	}
	if err := f.takeNodes(io, owns); err != nil {
		return opError(OpCreateNode, processError(err))
	}

	if device == DeviceHeap {
		io.Heap.CreateNode(id, substates)
		f.addOwnedRoot(id)
		return nil
	}
	if err := io.Store.CreateNode(id, substates, wrapAccess(onAccess)); err != nil {
		if errors.Is(err, track.ErrNodeAlreadyExists) {
			err = nodeError(ErrNodeAlreadyExists, id)
		}
		for _, taken := range owns {
			f.addOwnedRoot(taken)
		}
		return opError(OpCreateNode, err)
	}
	if err := io.persistNodes(owns, onAccess); err != nil {
		return opError(OpCreateNode, err)
	}
	f.AddGlobalReference(id)
	return nil
}

// DropNode removes an owned root node from the heap and returns its substates.
// Nodes owned by the dropped node become owned roots of the frame.
func (f *CallFrame) DropNode(io *SubstateIO, id types.NodeId) (types.NodeSubstates, error) {
	if _, ok := f.ownedRoots.Get(id); !ok {
		return nil, opError(OpDropNode, &TakeNodeError{Err: nodeError(ErrOwnNotFound, id)})
	}
	switch {
	case io.IsPinned(id):
		return nil, opError(OpDropNode, nodeError(ErrNodePinned, id))
	case io.treeLocked(id):
		return nil, opError(OpDropNode, &TakeNodeError{Err: nodeError(ErrSubstateBorrowed, id)})
	case io.treeBorrowed(id):
		return nil, opError(OpDropNode, &TakeNodeError{Err: nodeError(ErrNodeBorrowed, id)})
	}

	substates, err := io.Heap.RemoveNode(id)
	if err != nil {
		return nil, opError(OpDropNode, err)
	}
	f.ownedRoots.Remove(id)
	for p, sub := range substates {
		for k, v := range sub {
			delete(io.heapTransient, substateAddr{id, p, k})
			for _, child := range v.OwnedNodes() {
				f.addOwnedRoot(child)
			}
			for _, ref := range v.References() {
				if ref.IsGlobal() {
					f.AddGlobalReference(ref)
				}
			}
		}
	}
	return substates, nil
}

// PinNode makes a node impossible to drop or persist.
func (f *CallFrame) PinNode(io *SubstateIO, id types.NodeId) error {
	if !f.isVisible(id) {
		return opError(OpPinNode, nodeError(ErrNodeNotVisible, id))
	}
	io.pinned[id] = struct{}{}
	return nil
}

// MarkSubstateAsTransient keeps a substate out of the database.
func (f *CallFrame) MarkSubstateAsTransient(io *SubstateIO, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error {
	if !f.isVisible(id) {
		return opError(OpMarkTransient, nodeError(ErrNodeNotVisible, id))
	}
	if io.device(id) == DeviceHeap {
		io.heapTransient[substateAddr{id, p, k}] = struct{}{}
		return nil
	}
	return opError(OpMarkTransient, io.Store.MarkTransient(id, p, k))
}

// MovePartition moves every substate of src's partition into dest's partition.
func (f *CallFrame) MovePartition(io *SubstateIO, src types.NodeId, srcP types.PartitionNumber,
	dest types.NodeId, destP types.PartitionNumber, onAccess track.OnStoreAccess) error {
	if !f.isVisible(src) {
		return opError(OpMovePartition, nodeError(ErrNodeNotVisible, src))
	}
	if !f.isVisible(dest) {
		return opError(OpMovePartition, nodeError(ErrNodeNotVisible, dest))
	}
	if io.device(src) != DeviceHeap {
		return opError(OpMovePartition, nodeError(ErrNodeNotInHeap, src))
	}
	if !f.ownsNode(src) {
		return opError(OpMovePartition, &TakeNodeError{Err: nodeError(ErrOwnNotFound, src)})
	}
	if io.locks.partitionLocked(src, srcP) || io.locks.partitionLocked(dest, destP) {
		return opError(OpMovePartition, nodeError(ErrSubstateBorrowed, src))
	}
	entries := io.Heap.Entries(src, srcP)
	if len(entries) == 0 {
		return opError(OpMovePartition, substateError(ErrPartitionNotFound, src, srcP, types.FieldKey(0)))
	}
	destDevice := io.device(dest)
	var owns []types.NodeId
	for _, e := range entries {
		for _, child := range e.Value.OwnedNodes() {
			if io.treeLocked(child) {
				return opError(OpMovePartition, nodeError(ErrSubstateBorrowed, child))
			}
			owns = append(owns, child)
		}
		if destDevice == DeviceStore {
			for _, ref := range e.Value.References() {
				if !ref.IsGlobal() {
					return opError(OpMovePartition, nodeError(ErrNonGlobalRefNotAllowed, ref))
				}
			}
		}
	}

	if _, err := io.Heap.RemovePartition(src, srcP); err != nil {
		return opError(OpMovePartition, err)
	}
	if destDevice == DeviceHeap {
		for _, e := range entries {
			addr := substateAddr{src, srcP, e.Key}
			if _, ok := io.heapTransient[addr]; ok {
				delete(io.heapTransient, addr)
				io.heapTransient[substateAddr{dest, destP, e.Key}] = struct{}{}
			}
			io.Heap.SetSubstate(dest, destP, e.Key, e.Value)
		}
		return nil
	}
	if err := io.persistNodes(owns, onAccess); err != nil {
		return opError(OpMovePartition, err)
	}
	for _, e := range entries {
		addr := substateAddr{src, srcP, e.Key}
		if _, ok := io.heapTransient[addr]; ok {
			delete(io.heapTransient, addr)
			continue
		}
		if err := io.Store.SetSubstate(dest, destP, e.Key, e.Value, wrapAccess(onAccess)); err != nil {
			return opError(OpMovePartition, err)
		}
	}
	return nil
}
