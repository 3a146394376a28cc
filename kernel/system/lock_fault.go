package system

import (
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/types"
)

// VirtualAccountPolicy creates virtual accounts the first time their state
// field is opened. Any other missing substate stays a fault.
type VirtualAccountPolicy struct {
	entityTypes map[types.EntityType]struct{}
}

var _ LockFaultPolicy = (*VirtualAccountPolicy)(nil)

func NewVirtualAccountPolicy(entityTypes []types.EntityType) *VirtualAccountPolicy {
	p := &VirtualAccountPolicy{entityTypes: make(map[types.EntityType]struct{}, len(entityTypes))}
	for _, et := range entityTypes {
		if et.IsGlobal() {
			p.entityTypes[et] = struct{}{}
		}
	}
	return p
}

func (p *VirtualAccountPolicy) HandleLockFault(api engine.KernelApi, id types.NodeId, part types.PartitionNumber, k types.SubstateKey) (bool, error) {
	if _, ok := p.entityTypes[id.EntityType()]; !ok {
		return false, nil
	}
	// an existing account always has its state field
	if part != PartitionMain || k != types.FieldKey(0) {
		return false, nil
	}
	if !api.KernelGetNodeVisibility(id).Global {
		return false, nil
	}
	if err := createAccount(api, id, id.Bytes()[1:]); err != nil {
		return false, err
	}
	return true, nil
}
