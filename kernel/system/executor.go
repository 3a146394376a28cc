package system

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/common/xconfig"
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/idalloc"
	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/kernel/types"
	"github.com/xuperchain/xkernel/lib/logs"
	"github.com/xuperchain/xkernel/lib/metrics"
)

// Manifest is the body of a transaction, run in the root frame.
type Manifest func(api engine.KernelApi) error

type Receipt struct {
	Success bool
	// Err is why the transaction failed.
	Err       error
	CostUnits uint64
	Costs     []CostEntry
	Updates   *store.DatabaseUpdates
	Commits   track.StoreCommitInfo
	Traces    []*TraceEntry
}

// Executor runs transactions one at a time against a substate database.
type Executor struct {
	conf     *xconfig.KernelConf
	db       store.CommittableSubstateDatabase
	registry Registry
	log      logs.Logger
}

func NewExecutor(conf *xconfig.KernelConf, db store.CommittableSubstateDatabase, registry Registry, log logs.Logger) *Executor {
	if conf == nil {
		conf = xconfig.GetDefKernelConf()
	}
	if log == nil {
		log = logs.DiscardLogger()
	}
	return &Executor{conf: conf, db: db, registry: registry, log: log}
}

// Execute runs manifest in a fresh kernel and commits the result. A failed
// transaction still commits its force writes. Only database failures are
// returned as error, everything else is reported in the receipt.
func (e *Executor) Execute(txHash []byte, globalRefs []types.NodeId, manifest Manifest) (*Receipt, error) {
	var (
		costing *CostingModule
		tracing *TraceModule
		modules []Module
	)
	if e.conf.Costing.Enabled {
		costing = NewCostingModule(e.conf.Costing)
		modules = append(modules, costing)
	}
	if e.conf.Trace {
		tracing = NewTraceModule()
		modules = append(modules, tracing)
	}
	if e.conf.MetricSwitch {
		modules = append(modules, NewMetricsModule())
	}
	modules = append(modules, NewLoggingModule(e.log))

	sys := NewSystem(e.registry,
		WithModules(modules...),
		WithLockFaultPolicy(NewVirtualAccountPolicy(e.conf.LockFault.VirtualEntityTypes)),
		WithMaxSubstateSize(int(e.conf.MaxSubstateSize)),
		WithLogger(e.log),
	)
	kconf := &engine.Config{MaxCallDepth: e.conf.MaxCallDepth, MaxOpenSubstates: e.conf.MaxOpenSubstates}
	k := engine.NewKernel(kconf, idalloc.NewIdAllocator(txHash), track.NewTrack(e.db, nil), sys, e.log)

	runErr := k.Init(&Actor{Blueprint: TransactionBlueprint}, globalRefs)
	if runErr == nil {
		runErr = manifest(k)
	}
	updates, commits, err := k.Teardown(runErr == nil)
	if updates == nil {
		return nil, err
	}
	if runErr == nil {
		runErr = err
	} else if err != nil && engine.IsKind(err, engine.StoreError) {
		runErr = err
	}
	if engine.IsKind(runErr, engine.StoreError) {
		return nil, runErr
	}

	if err := e.db.Commit(updates); err != nil {
		return nil, store.WrapDbError(err, "commit transaction")
	}

	receipt := &Receipt{
		Success: runErr == nil,
		Err:     runErr,
		Updates: updates,
		Commits: commits,
	}
	if costing != nil {
		receipt.CostUnits = costing.Consumed()
		receipt.Costs = costing.Breakdown()
	}
	if tracing != nil {
		receipt.Traces = tracing.Entries()
	}
	if runErr != nil {
		kind := "unknown"
		var re *engine.RuntimeError
		if errors.As(runErr, &re) {
			kind = re.Kind.String()
		}
		if e.conf.MetricSwitch {
			metrics.ErrorCounter.WithLabelValues(kind).Inc()
		}
		e.log.Debug("transaction failed", "kind", kind, "err", runErr)
	}
	return receipt, nil
}
