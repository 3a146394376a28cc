package system

import (
	"sort"

	"github.com/xuperchain/xkernel/kernel/common/xconfig"
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/track"
)

// CostingModule charges cost units for every kernel operation and fails the
// operation which pushes the total over the limit.
type CostingModule struct {
	BaseModule
	conf      xconfig.CostingConf
	consumed  uint64
	breakdown map[string]uint64
}

func NewCostingModule(conf xconfig.CostingConf) *CostingModule {
	return &CostingModule{conf: conf, breakdown: make(map[string]uint64)}
}

func (m *CostingModule) Consumed() uint64 {
	return m.consumed
}

// CostEntry is the total charged for one reason.
type CostEntry struct {
	Reason string
	Units  uint64
}

// Breakdown lists the charges by reason, most expensive first.
func (m *CostingModule) Breakdown() []CostEntry {
	entries := make([]CostEntry, 0, len(m.breakdown))
	for reason, units := range m.breakdown {
		entries = append(entries, CostEntry{Reason: reason, Units: units})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Units != entries[j].Units {
			return entries[i].Units > entries[j].Units
		}
		return entries[i].Reason < entries[j].Reason
	})
	return entries
}

func (m *CostingModule) consume(reason string, units uint64) error {
	if units == 0 {
		return nil
	}
	m.consumed += units
	m.breakdown[reason] += units
	if m.conf.ExecutionCostLimit > 0 && m.consumed > m.conf.ExecutionCostLimit {
		return &CostLimitError{Limit: m.conf.ExecutionCostLimit, Consumed: m.consumed, Reason: reason}
	}
	return nil
}

func (m *CostingModule) storeAccess(a *track.StoreAccess) error {
	switch a.Kind {
	case track.ReadFromDb:
		return m.consume("store_read", m.conf.StoreReadBase+m.conf.StoreReadPerByte*uint64(a.Size))
	case track.ReadFromDbNotFound:
		return m.consume("store_read", m.conf.StoreReadBase)
	default:
		return m.consume("store_new", m.conf.StoreNewPerByte*uint64(a.Size))
	}
}

func (m *CostingModule) OnEvent(_ engine.KernelInternalApi, ev interface{}) error {
	c := m.conf
	switch e := ev.(type) {
	case *InvokeEvent:
		if e.Phase == engine.PhaseStart {
			return m.consume("invoke", c.InvokeBase+c.InvokePerByte*uint64(e.Invocation.Len()))
		}
	case *AllocateNodeIdEvent:
		return m.consume("allocate_node_id", c.AllocateNodeId)
	case *engine.CreateNodeEvent:
		switch e.Phase {
		case engine.PhaseStart:
			return m.consume("create_node", c.CreateNodeBase+c.CreateNodePerByte*uint64(e.TotalSize()))
		case engine.PhaseStoreAccess:
			return m.storeAccess(e.StoreAccess)
		}
	case *engine.DropNodeEvent:
		if e.Phase == engine.PhaseStart {
			return m.consume("drop_node", c.DropNodeBase)
		}
	case *engine.MoveModuleEvent:
		switch e.Phase {
		case engine.PhaseStart:
			return m.consume("move_partition", c.MovePartition)
		case engine.PhaseStoreAccess:
			return m.storeAccess(e.StoreAccess)
		}
	case *engine.OpenSubstateEvent:
		switch e.Phase {
		case engine.PhaseStart:
			return m.consume("open_substate", c.OpenSubstateBase)
		case engine.PhaseStoreAccess:
			return m.storeAccess(e.StoreAccess)
		}
	case *engine.ReadSubstateEvent:
		return m.consume("read_substate", c.ReadPerByte*uint64(e.Value.Len()))
	case *engine.WriteSubstateEvent:
		if e.Phase == engine.PhaseStart {
			return m.consume("write_substate", c.WritePerByte*uint64(e.Value.Len()))
		}
	case *engine.CloseSubstateEvent:
		switch e.Phase {
		case engine.PhaseStart:
			return m.consume("close_substate", c.CloseSubstateBase)
		case engine.PhaseStoreAccess:
			return m.storeAccess(e.StoreAccess)
		}
	case *engine.SubstateEvent:
		switch e.Phase {
		case engine.PhaseStart:
			size := 0
			if e.Value != nil {
				size = e.Value.Len()
			}
			return m.consume("set_substate", c.OpenSubstateBase+c.WritePerByte*uint64(size))
		case engine.PhaseStoreAccess:
			return m.storeAccess(e.StoreAccess)
		}
	case *engine.ScanEvent:
		switch e.Phase {
		case engine.PhaseStart:
			return m.consume("scan", c.ScanBase)
		case engine.PhaseStoreAccess:
			return m.storeAccess(e.StoreAccess)
		case engine.PhaseEnd:
			return m.consume("scan", c.ScanPerItem*uint64(e.Count))
		}
	}
	return nil
}
