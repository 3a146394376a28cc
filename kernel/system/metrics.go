package system

import (
	"time"

	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/track"
	"github.com/xuperchain/xkernel/lib/metrics"
)

type invokeStart struct {
	blueprint string
	method    string
	start     time.Time
}

// MetricsModule feeds the prometheus collectors of lib/metrics.
type MetricsModule struct {
	BaseModule
	// keyed by the depth of the caller
	invokes  map[int]invokeStart
	maxDepth int
}

func NewMetricsModule() *MetricsModule {
	return &MetricsModule{invokes: make(map[int]invokeStart)}
}

func observeStoreAccess(a *track.StoreAccess) {
	if a == nil {
		return
	}
	label := a.Kind.String()
	metrics.StoreAccessCounter.WithLabelValues(label).Inc()
	metrics.StoreAccessBytesCounter.WithLabelValues(label).Add(float64(a.Size))
}

func (m *MetricsModule) OnEvent(api engine.KernelInternalApi, ev interface{}) error {
	switch e := ev.(type) {
	case *InvokeEvent:
		depth := api.KernelGetCurrentDepth()
		if e.Phase == engine.PhaseStart {
			s := invokeStart{blueprint: "unknown", method: "unknown", start: time.Now()}
			if actor, ok := e.Invocation.CallFrameData.(*Actor); ok && actor != nil {
				s.blueprint, s.method = actor.Blueprint, actor.Method
			}
			m.invokes[depth] = s
			return nil
		}
		if s, ok := m.invokes[depth]; ok {
			delete(m.invokes, depth)
			metrics.InvokeCounter.WithLabelValues(s.blueprint, s.method).Inc()
			metrics.InvokeHistogram.WithLabelValues(s.blueprint, s.method).Observe(time.Since(s.start).Seconds())
		}
	case *ExecutionEvent:
		if depth := api.KernelGetCurrentDepth(); e.Phase == engine.PhaseStart && depth > m.maxDepth {
			m.maxDepth = depth
			metrics.CallDepthGauge.Set(float64(depth))
		}
	case *engine.CreateNodeEvent:
		if e.Phase == engine.PhaseEnd {
			metrics.NodeCounter.WithLabelValues("create", e.NodeId.EntityType().String()).Inc()
		}
		observeStoreAccess(e.StoreAccess)
	case *engine.DropNodeEvent:
		if e.Phase == engine.PhaseEnd {
			metrics.NodeCounter.WithLabelValues("drop", e.NodeId.EntityType().String()).Inc()
		}
	case *engine.OpenSubstateEvent:
		if e.Phase == engine.PhaseEnd {
			metrics.SubstateOpenCounter.WithLabelValues(e.Flags.String()).Inc()
		}
		observeStoreAccess(e.StoreAccess)
	case *engine.CloseSubstateEvent:
		observeStoreAccess(e.StoreAccess)
	case *engine.MoveModuleEvent:
		observeStoreAccess(e.StoreAccess)
	case *engine.SubstateEvent:
		observeStoreAccess(e.StoreAccess)
	case *engine.ScanEvent:
		observeStoreAccess(e.StoreAccess)
	}
	return nil
}
