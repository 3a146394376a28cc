package track

import (
	"sort"

	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/types"
)

// Finalize turns the tracked writes into database updates. When the
// transaction failed only the force written substates are kept.
// The track cannot be used afterwards.
func (t *Track) Finalize(success bool) (*store.DatabaseUpdates, StoreCommitInfo, error) {
	if err := t.checkOpen(); err != nil {
		return nil, nil, err
	}
	t.finalized = true

	updates := store.NewDatabaseUpdates()
	var info StoreCommitInfo
	if !success {
		for _, addr := range t.sortedForceWrites() {
			value := t.forceWrites[addr]
			if t.isTransient(addr.node, addr.partition, addr.key) {
				continue
			}
			pu := updates.Node(t.nodeKey(addr.node)).Partition(uint8(addr.partition), store.PartitionDelta)
			update := store.SubstateUpdate{SortKey: t.mapper.ToDbSortKey(addr.key), Delete: value == nil}
			commit := StoreCommit{Kind: CommitUpsert, NodeId: addr.node, Partition: addr.partition, Key: addr.key}
			if value == nil {
				commit.Kind = CommitDelete
			} else {
				update.Value = value.Bytes()
				commit.Size = value.Len()
			}
			pu.Updates = append(pu.Updates, update)
			info = append(info, commit)
		}
		updates.Sort()
		return updates, info, nil
	}

	for _, id := range t.sortedNodeIds() {
		n := t.nodes[id]
		for _, p := range sortedPartitions(n) {
			tp := n.partitions[p]
			var pu *store.PartitionDatabaseUpdates
			it := tp.substates.Iterator()
			for it.Next() {
				s := it.Value().(*TrackedSubstate)
				if !s.hasWrite || t.isTransient(id, p, s.key) {
					continue
				}
				commit, ok := s.commit(id, p)
				if !ok {
					continue
				}
				if pu == nil {
					kind := store.PartitionDelta
					if n.isNew {
						kind = store.PartitionReset
					}
					pu = updates.Node(t.nodeKey(id)).Partition(uint8(p), kind)
				}
				sk := t.mapper.ToDbSortKey(s.key)
				switch {
				case n.isNew:
					pu.NewValues = append(pu.NewValues, store.DbEntry{SortKey: sk, Value: s.write.Bytes()})
				case s.write == nil:
					pu.Updates = append(pu.Updates, store.SubstateUpdate{SortKey: sk, Delete: true})
				default:
					pu.Updates = append(pu.Updates, store.SubstateUpdate{SortKey: sk, Value: s.write.Bytes()})
				}
				info = append(info, commit)
			}
		}
	}
	updates.Sort()
	return updates, info, nil
}

// commit describes the write of s, false when it changes nothing.
func (s *TrackedSubstate) commit(id types.NodeId, p types.PartitionNumber) (StoreCommit, bool) {
	c := StoreCommit{NodeId: id, Partition: p, Key: s.key}
	if s.base != nil {
		c.OldSize = s.base.Len()
	}
	switch {
	case s.write == nil && s.baseKnown && s.base == nil:
		return c, false
	case s.write == nil:
		c.Kind = CommitDelete
	case !s.baseKnown:
		c.Kind, c.Size = CommitUpsert, s.write.Len()
	case s.base == nil:
		c.Kind, c.Size = CommitInsert, s.write.Len()
	default:
		c.Kind, c.Size = CommitUpdate, s.write.Len()
	}
	return c, true
}

func (t *Track) nodeKey(id types.NodeId) []byte {
	return t.mapper.ToDbPartitionKey(id, 0).NodeKey
}

func (t *Track) sortedNodeIds() []types.NodeId {
	ids := make([]types.NodeId, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}

func sortedPartitions(n *trackedNode) []types.PartitionNumber {
	ps := make([]types.PartitionNumber, 0, len(n.partitions))
	for p := range n.partitions {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

func (t *Track) sortedForceWrites() []substateAddr {
	addrs := make([]substateAddr, 0, len(t.forceWrites))
	for addr := range t.forceWrites {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		a, b := addrs[i], addrs[j]
		if c := a.node.Compare(b.node); c != 0 {
			return c < 0
		}
		if a.partition != b.partition {
			return a.partition < b.partition
		}
		return string(a.key.SortBytes()) < string(b.key.SortBytes())
	})
	return addrs
}
