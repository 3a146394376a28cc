package engine

import (
	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/heap"
	"github.com/xuperchain/xkernel/kernel/idalloc"
	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
	"github.com/xuperchain/xkernel/lib/logs"
)

const (
	DefaultMaxCallDepth     = 8
	DefaultMaxOpenSubstates = 256
)

type Config struct {
	// MaxCallDepth is the deepest frame an invocation may push, 0 means no limit.
	MaxCallDepth int
	// MaxOpenSubstates limits open substates per frame, 0 means no limit.
	MaxOpenSubstates int
}

func DefaultConfig() *Config {
	return &Config{
		MaxCallDepth:     DefaultMaxCallDepth,
		MaxOpenSubstates: DefaultMaxOpenSubstates,
	}
}

// Kernel executes one transaction. It owns the call frame stack, the heap
// and the track, and is not safe for concurrent use.
type Kernel struct {
	conf        *Config
	idAllocator *idalloc.IdAllocator
	track       *track.Track
	io          *callframe.SubstateIO
	callback    KernelCallbackObject
	log         logs.Logger

	current    *callframe.CallFrame
	prevFrames []*callframe.CallFrame
	tornDown   bool
}

var _ KernelApi = (*Kernel)(nil)

func NewKernel(conf *Config, idAllocator *idalloc.IdAllocator, tr *track.Track, callback KernelCallbackObject, log logs.Logger) *Kernel {
	if conf == nil {
		conf = DefaultConfig()
	}
	if log == nil {
		log = logs.DiscardLogger()
	}
	io := callframe.NewSubstateIO(heap.NewHeap(), tr)
	io.MaxOpenSubstates = conf.MaxOpenSubstates
	return &Kernel{
		conf:        conf,
		idAllocator: idAllocator,
		track:       tr,
		io:          io,
		callback:    callback,
		log:         log,
	}
}

// Init creates the root frame with visibility of globalRefs and runs OnInit.
func (k *Kernel) Init(rootData callframe.CallFrameReferences, globalRefs []types.NodeId) error {
	k.current = callframe.NewRootCallFrame(rootData)
	for _, id := range globalRefs {
		k.current.AddGlobalReference(id)
	}
	return callbackError(k.callback.OnInit(k))
}

// Teardown closes the root frame and finalizes the track. The database
// updates of a failed transaction keep only force written substates.
func (k *Kernel) Teardown(success bool) (*store.DatabaseUpdates, track.StoreCommitInfo, error) {
	if k.current == nil {
		return nil, nil, &RuntimeError{Kind: KernelError, Err: ErrNotInitialized}
	}
	if k.tornDown {
		return nil, nil, &RuntimeError{Kind: KernelError, Err: ErrAlreadyTornDown}
	}
	k.tornDown = true

	var err error
	if success {
		err = k.exitFrame()
		if err == nil {
			err = callbackError(k.callback.OnTeardown(k))
		}
		if err != nil {
			k.log.Warn("kernel teardown failed", "err", err)
			success = false
		}
	}
	updates, info, ferr := k.track.Finalize(success)
	if ferr != nil {
		return nil, nil, toRuntimeError(ferr)
	}
	return updates, info, err
}

// exitFrame closes the open substates of the current frame and drops the
// nodes it still owns.
func (k *Kernel) exitFrame() error {
	if err := k.closeOpenSubstates(); err != nil {
		return err
	}
	return k.dropOwnedNodes()
}

// closeOpenSubstates closes the locks left by the current frame, newest first.
func (k *Kernel) closeOpenSubstates() error {
	handles := k.current.OpenHandles()
	for i := len(handles) - 1; i >= 0; i-- {
		if err := k.KernelCloseSubstate(handles[i]); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) dropOwnedNodes() error {
	if owned := k.current.OwnedNodes(); len(owned) > 0 {
		if err := callbackError(k.callback.AutoDrop(k, owned)); err != nil {
			return err
		}
	}
	if owned := k.current.OwnedNodes(); len(owned) > 0 {
		return &RuntimeError{Kind: KernelError, Err: &OrphanedNodesError{Nodes: owned}}
	}
	return nil
}

// Heap is exposed for inspection in tests and tooling.
func (k *Kernel) Heap() *heap.Heap {
	return k.io.Heap
}

func (k *Kernel) KernelGetCurrentDepth() int {
	return k.current.Depth()
}

func (k *Kernel) KernelGetCallFrameData() callframe.CallFrameReferences {
	data, _ := k.current.Data().(callframe.CallFrameReferences)
	return data
}

func (k *Kernel) KernelGetNodeVisibility(id types.NodeId) callframe.NodeVisibility {
	return k.current.GetNodeVisibility(id)
}

func (k *Kernel) KernelGetOwnedNodes() []types.NodeId {
	return k.current.OwnedNodes()
}

// KernelInvoke pushes a frame for inv, runs it upstream and pops it.
func (k *Kernel) KernelInvoke(inv *Invocation) (*types.IndexedValue, error) {
	msg := callframe.MessageFromInput(inv.Args, inv.CallFrameData)
	if err := k.callback.BeforeInvoke(k, inv); err != nil {
		return nil, callbackError(err)
	}
	if k.conf.MaxCallDepth > 0 && k.current.Depth()+1 > k.conf.MaxCallDepth {
		return nil, &RuntimeError{Kind: KernelError, Err: ErrMaxCallDepthExceeded}
	}

	frame, err := callframe.NewChildCallFrame(k.io, k.current, inv.CallFrameData, msg)
	if err != nil {
		return nil, toRuntimeError(err)
	}
	parent := k.current
	k.prevFrames = append(k.prevFrames, parent)
	k.current = frame
	k.log.Debug("frame pushed", "depth", frame.Depth(), "moved", len(msg.MoveNodes))

	output, err := k.runFrame(inv.Args, parent)

	k.current.ReleaseReferences(k.io)
	k.current = parent
	k.prevFrames = k.prevFrames[:len(k.prevFrames)-1]
	k.log.Debug("frame popped", "depth", frame.Depth(), "err", err)
	if err != nil {
		return nil, err
	}

	if err := k.callback.AfterInvoke(k, output.Len()); err != nil {
		return nil, callbackError(err)
	}
	return output, nil
}

func (k *Kernel) runFrame(args *types.IndexedValue, parent *callframe.CallFrame) (*types.IndexedValue, error) {
	if err := k.callback.OnExecutionStart(k); err != nil {
		return nil, callbackError(err)
	}
	output, err := k.callback.InvokeUpstream(k, args)
	if err != nil {
		return nil, callbackError(err)
	}
	if output == nil {
		output = types.EmptyValue()
	}
	msg := callframe.MessageFromOutput(output)
	if err := k.callback.OnExecutionFinish(k, msg); err != nil {
		return nil, callbackError(err)
	}

	if err := k.closeOpenSubstates(); err != nil {
		return nil, err
	}
	if err := callframe.PassMessage(k.io, k.current, parent, msg); err != nil {
		return nil, toRuntimeError(err)
	}
	if err := k.dropOwnedNodes(); err != nil {
		return nil, err
	}
	return output, nil
}

func (k *Kernel) KernelAllocateNodeId(entityType types.EntityType) (types.NodeId, error) {
	if err := k.callback.OnAllocateNodeId(k, entityType); err != nil {
		return types.NodeId{}, callbackError(err)
	}
	id, err := k.idAllocator.AllocateNodeId(entityType)
	if err != nil {
		return types.NodeId{}, toRuntimeError(err)
	}
	return id, nil
}
