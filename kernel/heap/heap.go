package heap

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/types"
)

var (
	ErrNodeNotFound      = errors.New("heap: node not found")
	ErrPartitionNotFound = errors.New("heap: partition not found")
)

type entry struct {
	key   types.SubstateKey
	value *types.IndexedValue
}

// Node holds the partitions of a volatile node, each ordered by substate sort key.
type Node struct {
	partitions map[types.PartitionNumber]*treemap.Map
}

func newNode() *Node {
	return &Node{partitions: make(map[types.PartitionNumber]*treemap.Map)}
}

func (n *Node) partition(p types.PartitionNumber, create bool) *treemap.Map {
	m, ok := n.partitions[p]
	if !ok && create {
		m = treemap.NewWithStringComparator()
		n.partitions[p] = m
	}
	return m
}

// Size is the total encoded size of the node substates.
func (n *Node) Size() int {
	size := 0
	for _, m := range n.partitions {
		for _, v := range m.Values() {
			size += v.(*entry).value.Len()
		}
	}
	return size
}

func (n *Node) toSubstates() types.NodeSubstates {
	out := make(types.NodeSubstates, len(n.partitions))
	for p, m := range n.partitions {
		sub := make(map[types.SubstateKey]*types.IndexedValue, m.Size())
		it := m.Iterator()
		for it.Next() {
			e := it.Value().(*entry)
			sub[e.key] = e.value
		}
		out[p] = sub
	}
	return out
}

// Heap stores the substates of nodes which have not been persisted.
type Heap struct {
	nodes map[types.NodeId]*Node
}

func NewHeap() *Heap {
	return &Heap{nodes: make(map[types.NodeId]*Node)}
}

func (h *Heap) Len() int {
	return len(h.nodes)
}

func (h *Heap) ContainsNode(id types.NodeId) bool {
	_, ok := h.nodes[id]
	return ok
}

// NodeIds returns the ids of all heap nodes, in no particular order.
func (h *Heap) NodeIds() []types.NodeId {
	ids := make([]types.NodeId, 0, len(h.nodes))
	for id := range h.nodes {
		ids = append(ids, id)
	}
	return ids
}

// GetNode returns the node for size accounting. Nil when absent.
func (h *Heap) GetNode(id types.NodeId) *Node {
	return h.nodes[id]
}

func (h *Heap) CreateNode(id types.NodeId, substates types.NodeSubstates) {
	node := newNode()
	for p, sub := range substates {
		m := node.partition(p, true)
		for k, v := range sub {
			m.Put(string(k.SortBytes()), &entry{key: k, value: v})
		}
	}
	h.nodes[id] = node
}

func (h *Heap) GetSubstate(id types.NodeId, p types.PartitionNumber, key types.SubstateKey) (*types.IndexedValue, bool) {
	node, ok := h.nodes[id]
	if !ok {
		return nil, false
	}
	m := node.partition(p, false)
	if m == nil {
		return nil, false
	}
	v, ok := m.Get(string(key.SortBytes()))
	if !ok {
		return nil, false
	}
	return v.(*entry).value, true
}

// SetSubstate inserts or replaces a substate, creating the node when absent.
func (h *Heap) SetSubstate(id types.NodeId, p types.PartitionNumber, key types.SubstateKey, value *types.IndexedValue) {
	node, ok := h.nodes[id]
	if !ok {
		node = newNode()
		h.nodes[id] = node
	}
	node.partition(p, true).Put(string(key.SortBytes()), &entry{key: key, value: value})
}

func (h *Heap) RemoveSubstate(id types.NodeId, p types.PartitionNumber, key types.SubstateKey) (*types.IndexedValue, bool) {
	node, ok := h.nodes[id]
	if !ok {
		return nil, false
	}
	m := node.partition(p, false)
	if m == nil {
		return nil, false
	}
	sk := string(key.SortBytes())
	v, ok := m.Get(sk)
	if !ok {
		return nil, false
	}
	m.Remove(sk)
	return v.(*entry).value, true
}

// ScanKeys returns up to count keys of the partition in sort order.
func (h *Heap) ScanKeys(id types.NodeId, p types.PartitionNumber, count int) []types.SubstateKey {
	var keys []types.SubstateKey
	h.walk(id, p, func(e *entry) bool {
		if len(keys) >= count {
			return false
		}
		keys = append(keys, e.key)
		return true
	})
	return keys
}

// DrainSubstates removes and returns up to count substates in sort order.
func (h *Heap) DrainSubstates(id types.NodeId, p types.PartitionNumber, count int) []types.SubstateEntry {
	var drained []types.SubstateEntry
	h.walk(id, p, func(e *entry) bool {
		if len(drained) >= count {
			return false
		}
		drained = append(drained, types.SubstateEntry{Key: e.key, Value: e.value})
		return true
	})
	for _, d := range drained {
		h.RemoveSubstate(id, p, d.Key)
	}
	return drained
}

// ScanSorted returns up to count sorted-key substates in sort order.
func (h *Heap) ScanSorted(id types.NodeId, p types.PartitionNumber, count int) []types.SubstateEntry {
	var out []types.SubstateEntry
	h.walk(id, p, func(e *entry) bool {
		if len(out) >= count {
			return false
		}
		if e.key.Kind() == types.SubstateKeySorted {
			out = append(out, types.SubstateEntry{Key: e.key, Value: e.value})
		}
		return true
	})
	return out
}

func (h *Heap) walk(id types.NodeId, p types.PartitionNumber, fn func(*entry) bool) {
	node, ok := h.nodes[id]
	if !ok {
		return
	}
	m := node.partition(p, false)
	if m == nil {
		return
	}
	it := m.Iterator()
	for it.Next() {
		if !fn(it.Value().(*entry)) {
			return
		}
	}
}

// RemovePartition detaches a whole partition of a node.
func (h *Heap) RemovePartition(id types.NodeId, p types.PartitionNumber) ([]types.SubstateEntry, error) {
	node, ok := h.nodes[id]
	if !ok {
		return nil, errors.Wrap(ErrNodeNotFound, id.String())
	}
	m := node.partition(p, false)
	if m == nil {
		return nil, errors.Wrapf(ErrPartitionNotFound, "%s/%d", id, p)
	}
	delete(node.partitions, p)

	out := make([]types.SubstateEntry, 0, m.Size())
	it := m.Iterator()
	for it.Next() {
		e := it.Value().(*entry)
		out = append(out, types.SubstateEntry{Key: e.key, Value: e.value})
	}
	return out, nil
}

// RemoveNode detaches a node and returns its substates.
func (h *Heap) RemoveNode(id types.NodeId) (types.NodeSubstates, error) {
	node, ok := h.nodes[id]
	if !ok {
		return nil, errors.Wrap(ErrNodeNotFound, id.String())
	}
	delete(h.nodes, id)
	return node.toSubstates(), nil
}

// OwnedNodes lists the children owned by the substates of a node.
func (h *Heap) OwnedNodes(id types.NodeId) []types.NodeId {
	node, ok := h.nodes[id]
	if !ok {
		return nil
	}
	var owned []types.NodeId
	for p := range node.partitions {
		owned = append(owned, h.PartitionOwnedNodes(id, p)...)
	}
	return owned
}

// PartitionOwnedNodes lists the children owned by the substates of one partition.
func (h *Heap) PartitionOwnedNodes(id types.NodeId, p types.PartitionNumber) []types.NodeId {
	var owned []types.NodeId
	h.walk(id, p, func(e *entry) bool {
		owned = append(owned, e.value.OwnedNodes()...)
		return true
	})
	return owned
}

// Entries lists the substates of a partition in key order.
func (h *Heap) Entries(id types.NodeId, p types.PartitionNumber) []types.SubstateEntry {
	var out []types.SubstateEntry
	h.walk(id, p, func(e *entry) bool {
		out = append(out, types.SubstateEntry{Key: e.key, Value: e.value})
		return true
	})
	return out
}
