package system

import (
	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/types"
)

// Module observes kernel events. ev is one of the engine events or one of
// the events declared in this package, always a pointer.
type Module interface {
	OnInit(api engine.KernelApi) error
	OnTeardown(api engine.KernelApi) error
	OnEvent(api engine.KernelInternalApi, ev interface{}) error
}

// InvokeEvent brackets an invocation, PhaseStart before the frame is pushed
// and PhaseEnd after it returned successfully.
type InvokeEvent struct {
	Phase      engine.Phase
	Invocation *engine.Invocation
	OutputSize int
}

// ExecutionEvent brackets the run of an actor inside its own frame.
type ExecutionEvent struct {
	Phase   engine.Phase
	Message *callframe.CallFrameMessage
}

type AllocateNodeIdEvent struct {
	EntityType types.EntityType
}

type PinNodeEvent struct {
	NodeId types.NodeId
}

type MarkTransientEvent struct {
	NodeId    types.NodeId
	Partition types.PartitionNumber
	Key       types.SubstateKey
}

// BaseModule ignores everything.
type BaseModule struct{}

func (BaseModule) OnInit(engine.KernelApi) error                       { return nil }
func (BaseModule) OnTeardown(engine.KernelApi) error                   { return nil }
func (BaseModule) OnEvent(engine.KernelInternalApi, interface{}) error { return nil }
