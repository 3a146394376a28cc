package system

import (
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/lib/logs"
)

// LoggingModule writes node lifecycle and invocations to the log.
type LoggingModule struct {
	BaseModule
	log logs.Logger
}

func NewLoggingModule(log logs.Logger) *LoggingModule {
	if log == nil {
		log = logs.DiscardLogger()
	}
	return &LoggingModule{log: log}
}

func (m *LoggingModule) OnTeardown(api engine.KernelApi) error {
	m.log.Debug("kernel teardown", "owned", len(api.KernelGetOwnedNodes()))
	return nil
}

func (m *LoggingModule) OnEvent(api engine.KernelInternalApi, ev interface{}) error {
	switch e := ev.(type) {
	case *InvokeEvent:
		if e.Phase == engine.PhaseStart {
			m.log.Debug("invoke", "depth", api.KernelGetCurrentDepth(), "actor", e.Invocation.CallFrameData,
				"args_size", e.Invocation.Len())
		} else {
			m.log.Debug("invoke returned", "depth", api.KernelGetCurrentDepth(), "output_size", e.OutputSize)
		}
	case *engine.CreateNodeEvent:
		if e.Phase == engine.PhaseEnd {
			m.log.Debug("node created", "node", e.NodeId, "size", e.TotalSize())
		}
	case *engine.DropNodeEvent:
		if e.Phase == engine.PhaseEnd {
			m.log.Debug("node dropped", "node", e.NodeId)
		}
	case *engine.MoveModuleEvent:
		if e.Phase == engine.PhaseEnd {
			m.log.Debug("partition moved", "src", e.Src, "src_partition", e.SrcPartition,
				"dest", e.Dest, "dest_partition", e.DestPartition)
		}
	case *PinNodeEvent:
		m.log.Debug("node pinned", "node", e.NodeId)
	case *engine.OpenSubstateEvent:
		if e.Phase == engine.PhaseStoreAccess {
			m.log.Trace("store access", "kind", e.StoreAccess.Kind, "node", e.NodeId, "size", e.StoreAccess.Size)
		}
	}
	return nil
}
