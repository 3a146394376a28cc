package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "xkernel"

	SubsystemKernel = "kernel"
	SubsystemStore  = "store"

	LabelEntityType = "entity_type"
	LabelLockMode   = "lock_mode"
	LabelErrorKind  = "error_kind"
	LabelAccess     = "access"
	LabelBlueprint  = "blueprint"
	LabelMethod     = "method"
	LabelOperation  = "operation"
)

// kernel
var (
	InvokeCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemKernel,
			Name:      "invoke_total",
			Help:      "Total number of kernel invocations.",
		},
		[]string{LabelBlueprint, LabelMethod})
	InvokeHistogram = prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemKernel,
			Name:      "invoke_seconds",
			Help:      "Histogram of kernel invocation latency.",
			Buckets:   prom.DefBuckets,
		},
		[]string{LabelBlueprint, LabelMethod})
	NodeCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemKernel,
			Name:      "node_total",
			Help:      "Total number of node create and drop operations.",
		},
		[]string{LabelOperation, LabelEntityType})
	SubstateOpenCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemKernel,
			Name:      "substate_open_total",
			Help:      "Total number of opened substates.",
		},
		[]string{LabelLockMode})
	ErrorCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemKernel,
			Name:      "error_total",
			Help:      "Total number of kernel errors.",
		},
		[]string{LabelErrorKind})
	CallDepthGauge = prom.NewGauge(
		prom.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemKernel,
			Name:      "max_call_depth",
			Help:      "Max call frame depth reached.",
		})
)

// store
var (
	StoreAccessCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemStore,
			Name:      "access_total",
			Help:      "Total number of substate store accesses.",
		},
		[]string{LabelAccess})
	StoreAccessBytesCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemStore,
			Name:      "access_bytes",
			Help:      "Total size of substate store accesses.",
		},
		[]string{LabelAccess})
)

var registerOnce sync.Once

// RegisterMetrics registers all collectors to the default registry, only once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		// kernel
		prom.MustRegister(InvokeCounter)
		prom.MustRegister(InvokeHistogram)
		prom.MustRegister(NodeCounter)
		prom.MustRegister(SubstateOpenCounter)
		prom.MustRegister(ErrorCounter)
		prom.MustRegister(CallDepthGauge)
		// store
		prom.MustRegister(StoreAccessCounter)
		prom.MustRegister(StoreAccessBytesCounter)
	})
}
