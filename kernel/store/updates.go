package store

import (
	"bytes"
	"sort"
)

// PartitionUpdateKind tells how a partition update applies.
type PartitionUpdateKind uint8

const (
	// PartitionDelta sets or deletes individual substates.
	PartitionDelta PartitionUpdateKind = iota
	// PartitionReset drops everything in the partition, then writes NewValues.
	PartitionReset
)

// SubstateUpdate is a Set, or a Delete when Delete is true.
type SubstateUpdate struct {
	SortKey DbSortKey
	Value   []byte
	Delete  bool
}

type PartitionDatabaseUpdates struct {
	PartitionNum uint8
	Kind         PartitionUpdateKind
	// Delta
	Updates []SubstateUpdate
	// Reset
	NewValues []DbEntry
}

type NodeDatabaseUpdates struct {
	NodeKey          []byte
	PartitionUpdates []*PartitionDatabaseUpdates
}

// DatabaseUpdates is the batched write produced by finalizing a transaction.
// Nodes, partitions and sort keys are kept in ascending order.
type DatabaseUpdates struct {
	NodeUpdates []*NodeDatabaseUpdates
}

func NewDatabaseUpdates() *DatabaseUpdates {
	return &DatabaseUpdates{}
}

// Node returns the updates of a node, adding an empty entry when missing.
func (u *DatabaseUpdates) Node(nodeKey []byte) *NodeDatabaseUpdates {
	i := sort.Search(len(u.NodeUpdates), func(i int) bool {
		return bytes.Compare(u.NodeUpdates[i].NodeKey, nodeKey) >= 0
	})
	if i < len(u.NodeUpdates) && bytes.Equal(u.NodeUpdates[i].NodeKey, nodeKey) {
		return u.NodeUpdates[i]
	}
	n := &NodeDatabaseUpdates{NodeKey: append([]byte(nil), nodeKey...)}
	u.NodeUpdates = append(u.NodeUpdates, nil)
	copy(u.NodeUpdates[i+1:], u.NodeUpdates[i:])
	u.NodeUpdates[i] = n
	return n
}

// Partition returns the updates of a partition, adding an entry of kind when missing.
func (n *NodeDatabaseUpdates) Partition(num uint8, kind PartitionUpdateKind) *PartitionDatabaseUpdates {
	i := sort.Search(len(n.PartitionUpdates), func(i int) bool {
		return n.PartitionUpdates[i].PartitionNum >= num
	})
	if i < len(n.PartitionUpdates) && n.PartitionUpdates[i].PartitionNum == num {
		return n.PartitionUpdates[i]
	}
	p := &PartitionDatabaseUpdates{PartitionNum: num, Kind: kind}
	n.PartitionUpdates = append(n.PartitionUpdates, nil)
	copy(n.PartitionUpdates[i+1:], n.PartitionUpdates[i:])
	n.PartitionUpdates[i] = p
	return p
}

// Sort orders the substate updates of every partition by sort key.
func (u *DatabaseUpdates) Sort() {
	for _, n := range u.NodeUpdates {
		for _, p := range n.PartitionUpdates {
			sort.Slice(p.Updates, func(i, j int) bool {
				return bytes.Compare(p.Updates[i].SortKey, p.Updates[j].SortKey) < 0
			})
			sort.Slice(p.NewValues, func(i, j int) bool {
				return bytes.Compare(p.NewValues[i].SortKey, p.NewValues[j].SortKey) < 0
			})
		}
	}
}

// Len counts the substate level operations.
func (u *DatabaseUpdates) Len() int {
	n := 0
	for _, node := range u.NodeUpdates {
		for _, p := range node.PartitionUpdates {
			n += len(p.Updates) + len(p.NewValues)
		}
	}
	return n
}
