package system

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/types"
	"github.com/xuperchain/xkernel/lib/logs"
)

// LockFaultPolicy decides whether a missing substate may be created on the fly.
type LockFaultPolicy interface {
	HandleLockFault(api engine.KernelApi, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) (bool, error)
}

// System is the kernel callback object. It dispatches invocations to native
// methods and feeds every kernel event to its modules in order.
type System struct {
	registry        Registry
	faultPolicy     LockFaultPolicy
	modules         []Module
	maxSubstateSize int
	log             logs.Logger
}

var _ engine.KernelCallbackObject = (*System)(nil)

type Option func(s *System)

func WithModules(modules ...Module) Option {
	return func(s *System) {
		s.modules = append(s.modules, modules...)
	}
}

func WithLockFaultPolicy(policy LockFaultPolicy) Option {
	return func(s *System) {
		s.faultPolicy = policy
	}
}

// WithMaxSubstateSize rejects substates larger than size bytes, 0 means no limit.
func WithMaxSubstateSize(size int) Option {
	return func(s *System) {
		s.maxSubstateSize = size
	}
}

func WithLogger(log logs.Logger) Option {
	return func(s *System) {
		s.log = log
	}
}

func NewSystem(registry Registry, opts ...Option) *System {
	if registry == nil {
		registry = DefaultRegistry
	}
	s := &System{registry: registry, log: logs.DiscardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *System) emit(api engine.KernelInternalApi, ev interface{}) error {
	for _, m := range s.modules {
		if err := m.OnEvent(api, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) checkSize(v *types.IndexedValue) error {
	if s.maxSubstateSize > 0 && v != nil && v.Len() > s.maxSubstateSize {
		return errors.WithMessagef(ErrSubstateTooLarge, "%d > %d", v.Len(), s.maxSubstateSize)
	}
	return nil
}

func (s *System) OnInit(api engine.KernelApi) error {
	for _, m := range s.modules {
		if err := m.OnInit(api); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) OnTeardown(api engine.KernelApi) error {
	for _, m := range s.modules {
		if err := m.OnTeardown(api); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) OnPinNode(api engine.KernelInternalApi, id types.NodeId) error {
	return s.emit(api, &PinNodeEvent{NodeId: id})
}

func (s *System) OnCreateNode(api engine.KernelInternalApi, ev *engine.CreateNodeEvent) error {
	if ev.Phase == engine.PhaseStart {
		for _, sub := range ev.Substates {
			for _, v := range sub {
				if err := s.checkSize(v); err != nil {
					return err
				}
			}
		}
	}
	return s.emit(api, ev)
}

func (s *System) OnDropNode(api engine.KernelInternalApi, ev *engine.DropNodeEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnMoveModule(api engine.KernelInternalApi, ev *engine.MoveModuleEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnOpenSubstate(api engine.KernelInternalApi, ev *engine.OpenSubstateEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnCloseSubstate(api engine.KernelInternalApi, ev *engine.CloseSubstateEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnReadSubstate(api engine.KernelInternalApi, ev *engine.ReadSubstateEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnWriteSubstate(api engine.KernelInternalApi, ev *engine.WriteSubstateEvent) error {
	if ev.Phase == engine.PhaseStart {
		if err := s.checkSize(ev.Value); err != nil {
			return err
		}
	}
	return s.emit(api, ev)
}

func (s *System) OnSetSubstate(api engine.KernelInternalApi, ev *engine.SubstateEvent) error {
	if ev.Phase == engine.PhaseStart {
		if err := s.checkSize(ev.Value); err != nil {
			return err
		}
	}
	return s.emit(api, ev)
}

func (s *System) OnRemoveSubstate(api engine.KernelInternalApi, ev *engine.SubstateEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnScanKeys(api engine.KernelInternalApi, ev *engine.ScanEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnDrainSubstates(api engine.KernelInternalApi, ev *engine.ScanEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnScanSortedSubstates(api engine.KernelInternalApi, ev *engine.ScanEvent) error {
	return s.emit(api, ev)
}

func (s *System) OnMarkSubstateAsTransient(api engine.KernelInternalApi, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error {
	return s.emit(api, &MarkTransientEvent{NodeId: id, Partition: p, Key: k})
}

func (s *System) BeforeInvoke(api engine.KernelInternalApi, inv *engine.Invocation) error {
	return s.emit(api, &InvokeEvent{Phase: engine.PhaseStart, Invocation: inv})
}

func (s *System) AfterInvoke(api engine.KernelInternalApi, outputSize int) error {
	return s.emit(api, &InvokeEvent{Phase: engine.PhaseEnd, OutputSize: outputSize})
}

func (s *System) OnExecutionStart(api engine.KernelInternalApi) error {
	return s.emit(api, &ExecutionEvent{Phase: engine.PhaseStart})
}

func (s *System) OnExecutionFinish(api engine.KernelInternalApi, msg *callframe.CallFrameMessage) error {
	return s.emit(api, &ExecutionEvent{Phase: engine.PhaseEnd, Message: msg})
}

func (s *System) OnAllocateNodeId(api engine.KernelInternalApi, entityType types.EntityType) error {
	return s.emit(api, &AllocateNodeIdEvent{EntityType: entityType})
}

// InvokeUpstream runs the native method named by the actor of the current frame.
func (s *System) InvokeUpstream(api engine.KernelApi, args *types.IndexedValue) (*types.IndexedValue, error) {
	actor, ok := api.KernelGetCallFrameData().(*Actor)
	if !ok || actor == nil {
		return nil, ErrNoActor
	}
	method, err := s.registry.GetNativeMethod(actor.Blueprint, actor.Method)
	if err != nil {
		return nil, err
	}
	return method(api, actor, args)
}

// AutoDrop drops the nodes a frame left behind.
func (s *System) AutoDrop(api engine.KernelApi, nodes []types.NodeId) error {
	for _, id := range nodes {
		s.log.Debug("auto drop node", "node", id, "depth", api.KernelGetCurrentDepth())
		if _, err := api.KernelDropNode(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) OnSubstateLockFault(api engine.KernelApi, id types.NodeId, p types.PartitionNumber, k types.SubstateKey) (bool, error) {
	if s.faultPolicy == nil {
		return false, nil
	}
	return s.faultPolicy.HandleLockFault(api, id, p, k)
}

// Call invokes a native method in a new frame.
func Call(api engine.KernelApi, actor *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	if args == nil {
		args = types.EmptyValue()
	}
	return api.KernelInvoke(&engine.Invocation{CallFrameData: actor, Args: args})
}
