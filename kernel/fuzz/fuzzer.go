// Package fuzz drives the kernel with random action sequences and checks
// that whatever it commits is a consistent ownership tree.
package fuzz

import (
	"fmt"
	"math/rand"
	"runtime/debug"
	"strings"

	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/idalloc"
	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/store/memdb"
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
	"github.com/xuperchain/xkernel/lib/utils"
)

const maxNodes = 4

var (
	// ErrInconsistentDatabase means the kernel committed a broken ownership tree.
	ErrInconsistentDatabase = errors.New("database is not consistent")
	ErrKernelPanic          = errors.New("kernel panic")
)

type Action uint8

const (
	ActionAllocate Action = iota
	ActionCreateNode
	ActionPinNode
	ActionDropNode
	ActionInvoke
	ActionCreateNodeFrom
	ActionMarkSubstateAsTransient
	ActionOpenSubstate
	ActionReadSubstate
	ActionWriteSubstate
	ActionCloseSubstate

	numActions
)

var actionNames = [...]string{
	"Allocate",
	"CreateNode",
	"PinNode",
	"DropNode",
	"Invoke",
	"CreateNodeFrom",
	"MarkSubstateAsTransient",
	"OpenSubstate",
	"ReadSubstate",
	"WriteSubstate",
	"CloseSubstate",
}

func (a Action) String() string {
	if a < numActions {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

func FormatActions(actions []Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return strings.Join(names, ",")
}

// KernelFuzzer holds the nodes and handles a run has produced so far.
type KernelFuzzer struct {
	rng       *rand.Rand
	allocated []types.NodeId
	nodes     []types.NodeId
	handles   []types.LockHandle
}

func NewKernelFuzzer(seed uint64) *KernelFuzzer {
	return &KernelFuzzer{rng: rand.New(rand.NewSource(int64(seed)))}
}

// NextAction picks any action uniformly.
func (f *KernelFuzzer) NextAction() Action {
	return Action(f.rng.Intn(int(numActions)))
}

// nextAllocatedNode consumes an allocated id, from now on it counts as a node.
func (f *KernelFuzzer) nextAllocatedNode() (types.NodeId, bool) {
	if len(f.allocated) == 0 {
		return types.NodeId{}, false
	}
	i := f.rng.Intn(len(f.allocated))
	id := f.allocated[i]
	f.allocated = append(f.allocated[:i], f.allocated[i+1:]...)
	f.nodes = append(f.nodes, id)
	return id, true
}

func (f *KernelFuzzer) nextNode() (types.NodeId, bool) {
	if len(f.nodes) == 0 {
		return types.NodeId{}, false
	}
	return f.nodes[f.rng.Intn(len(f.nodes))], true
}

func (f *KernelFuzzer) nextHandle(remove bool) (types.LockHandle, bool) {
	if len(f.handles) == 0 {
		return 0, false
	}
	i := f.rng.Intn(len(f.handles))
	h := f.handles[i]
	if remove {
		f.handles = append(f.handles[:i], f.handles[i+1:]...)
	}
	return h, true
}

// nextValue owns or references a random subset of the known nodes.
func (f *KernelFuzzer) nextValue() *types.IndexedValue {
	if len(f.nodes) == 0 {
		return types.EmptyValue()
	}
	var owns, refs []types.NodeId
	for n := f.rng.Intn(len(f.nodes)); n > 0; n-- {
		id := f.nodes[f.rng.Intn(len(f.nodes))]
		if f.rng.Intn(2) == 0 {
			owns = append(owns, id)
		} else {
			refs = append(refs, id)
		}
	}
	return types.NewIndexedValue(nil, owns, refs)
}

func (f *KernelFuzzer) nextEntityType() types.EntityType {
	if f.rng.Intn(2) == 0 {
		return types.EntityTypeInternalKeyValueStore
	}
	return types.EntityTypeGlobalAccount
}

// execute runs one action. skipped is set when the fuzzer had nothing to act on.
func (f *KernelFuzzer) execute(a Action, k engine.KernelApi) (skipped bool, err error) {
	switch a {
	case ActionAllocate:
		if len(f.nodes)+len(f.allocated) >= maxNodes {
			return true, nil
		}
		id, err := k.KernelAllocateNodeId(f.nextEntityType())
		if err != nil {
			return false, err
		}
		f.allocated = append(f.allocated, id)

	case ActionCreateNode:
		id, ok := f.nextAllocatedNode()
		if !ok {
			return true, nil
		}
		substates := types.NodeSubstates{}
		substates.Set(0, types.FieldKey(0), f.nextValue())
		substates.Set(1, types.FieldKey(0), f.nextValue())
		return false, k.KernelCreateNode(id, substates)

	case ActionCreateNodeFrom:
		src, ok := f.nextNode()
		if !ok || src.IsGlobal() {
			return true, nil
		}
		dest, ok := f.nextAllocatedNode()
		if !ok {
			return true, nil
		}
		err := k.KernelCreateNodeFrom(dest, map[types.PartitionNumber]engine.PartitionSource{
			1: {Node: src, Partition: 1},
		})
		if err != nil {
			return false, err
		}
		value := f.nextValue()
		h, err := k.KernelOpenSubstateWithDefault(dest, 0, types.FieldKey(0), types.LockFlagMutable, types.EmptyValue, nil)
		if err != nil {
			return false, err
		}
		if err := k.KernelWriteSubstate(h, value); err != nil {
			return false, err
		}
		return false, k.KernelCloseSubstate(h)

	case ActionPinNode:
		id, ok := f.nextNode()
		if !ok {
			return true, nil
		}
		return false, k.KernelPinNode(id)

	case ActionDropNode:
		id, ok := f.nextNode()
		if !ok {
			return true, nil
		}
		_, err := k.KernelDropNode(id)
		return false, err

	case ActionInvoke:
		id, ok := f.nextNode()
		if !ok {
			return true, nil
		}
		_, err := k.KernelInvoke(&engine.Invocation{Args: types.NewIndexedValue(nil, []types.NodeId{id}, nil)})
		return false, err

	case ActionMarkSubstateAsTransient:
		id, ok := f.nextNode()
		if !ok {
			return true, nil
		}
		return false, k.KernelMarkSubstateAsTransient(id, 1, types.FieldKey(1))

	case ActionOpenSubstate:
		id, ok := f.nextNode()
		if !ok {
			return true, nil
		}
		h, err := k.KernelOpenSubstate(id, 0, types.FieldKey(0), types.LockFlagsReadOnly, nil)
		if err != nil {
			return false, err
		}
		f.handles = append(f.handles, h)

	case ActionReadSubstate:
		h, ok := f.nextHandle(false)
		if !ok {
			return true, nil
		}
		_, err := k.KernelReadSubstate(h)
		return false, err

	case ActionWriteSubstate:
		h, ok := f.nextHandle(false)
		if !ok {
			return true, nil
		}
		return false, k.KernelWriteSubstate(h, f.nextValue())

	case ActionCloseSubstate:
		h, ok := f.nextHandle(true)
		if !ok {
			return true, nil
		}
		return false, k.KernelCloseSubstate(h)

	default:
		return false, errors.Errorf("unknown action %d", uint8(a))
	}
	return false, nil
}

// Generator produces the action list of one run.
type Generator func(f *KernelFuzzer) []Action

type Result struct {
	Seed    uint64
	Actions []Action
	// Executed counts actions run before the first error.
	Executed int
	Skipped  int
	Err      error
	Report   *store.CheckReport
}

func (r *Result) Success() bool {
	return r.Err == nil
}

// Fatal reports a run that found a kernel bug rather than a rejected action.
func (r *Result) Fatal() bool {
	return errors.Is(r.Err, ErrInconsistentDatabase) || errors.Is(r.Err, ErrKernelPanic)
}

// Run executes one seeded run against a fresh in-memory database. The
// tracked state is finalized directly, so nodes left on the heap are
// never persisted.
func Run(seed uint64, gen Generator) (res *Result) {
	res = &Result{Seed: seed}
	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.Wrapf(ErrKernelPanic, "%v\n%s", r, debug.Stack())
		}
	}()

	db := memdb.NewMemDatabase()
	tr := track.NewTrack(db, nil)
	k := engine.NewKernel(engine.DefaultConfig(), idalloc.NewIdAllocator(utils.SeedToTxHash(seed)), tr, engine.NopCallback{}, nil)
	if err := k.Init(nil, nil); err != nil {
		res.Err = err
		return res
	}

	f := NewKernelFuzzer(seed)
	res.Actions = gen(f)
	for _, a := range res.Actions {
		skipped, err := f.execute(a, k)
		if err != nil {
			res.Err = errors.WithMessagef(err, "action %d %s", res.Executed, a)
			return res
		}
		res.Executed++
		if skipped {
			res.Skipped++
		}
	}

	updates, _, err := tr.Finalize(true)
	if err != nil {
		res.Err = err
		return res
	}
	if err := db.Commit(updates); err != nil {
		res.Err = store.WrapDbError(err, "commit fuzz run")
		return res
	}
	report, err := store.CheckDatabase(db, store.SpreadPrefixKeyMapper{})
	if err != nil {
		res.Err = errors.Wrapf(ErrInconsistentDatabase, "seed %d actions [%s]: %v", seed, FormatActions(res.Actions), err)
		return res
	}
	res.Report = report
	return res
}
