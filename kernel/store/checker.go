package store

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/types"
)

// CheckReport summarises a consistency check of a database.
type CheckReport struct {
	Nodes      int
	Partitions int
	Substates  int
	RootNodes  int
}

// CheckDatabase verifies the ownership tree of a committed database:
// every owned node exists, no global node is owned, and every internal
// node is owned exactly once.
func CheckDatabase(db ListableSubstateDatabase, mapper KeyMapper) (*CheckReport, error) {
	pks, err := db.ListPartitionKeys()
	if err != nil {
		return nil, err
	}

	report := &CheckReport{}
	nodes := make(map[types.NodeId]struct{})
	owners := make(map[types.NodeId]types.NodeId)
	for _, pk := range pks {
		id, _, err := mapper.FromDbPartitionKey(pk)
		if err != nil {
			return nil, err
		}
		if _, ok := nodes[id]; !ok {
			nodes[id] = struct{}{}
			report.Nodes++
		}
		report.Partitions++

		entries, err := db.ListEntries(pk)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			report.Substates++
			value, err := types.DecodeIndexedValue(e.Value)
			if err != nil {
				return nil, err
			}
			for _, owned := range value.OwnedNodes() {
				if owned.IsGlobal() {
					return nil, errors.Errorf("global node %s owned by %s", owned, id)
				}
				if prev, ok := owners[owned]; ok {
					return nil, errors.Errorf("node %s owned by both %s and %s", owned, prev, id)
				}
				owners[owned] = id
			}
		}
	}

	for owned, owner := range owners {
		if _, ok := nodes[owned]; !ok {
			return nil, errors.Errorf("node %s owned by %s does not exist", owned, owner)
		}
	}
	for id := range nodes {
		if id.IsGlobal() {
			report.RootNodes++
			continue
		}
		if _, ok := owners[id]; !ok {
			return nil, errors.Errorf("internal node %s has no owner", id)
		}
		// walk up to a global root
		cur, steps := id, 0
		for !cur.IsGlobal() {
			next, ok := owners[cur]
			if !ok {
				return nil, errors.Errorf("internal node %s is not reachable from a global node", id)
			}
			if steps++; steps > len(owners) {
				return nil, errors.Errorf("ownership cycle through %s", id)
			}
			cur = next
		}
	}
	return report, nil
}
