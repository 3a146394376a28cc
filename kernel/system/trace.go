package system

import (
	"fmt"
	"time"

	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/lib/timer"
)

// TraceEntry is the execution trace of one frame.
type TraceEntry struct {
	Depth      int
	Actor      string
	Points     []timer.MarkPoint
	Elapsed    time.Duration
	MovedNodes int
	// Timing is the printable form of Points.
	Timing string
}

type frameTrace struct {
	depth int
	actor string
	timer *timer.XTimer
}

// TraceModule records the kernel operations of every frame with phase timing.
type TraceModule struct {
	BaseModule
	stack   []*frameTrace
	entries []*TraceEntry
}

func NewTraceModule() *TraceModule {
	return &TraceModule{}
}

// Entries are ordered by the time the frames returned.
func (m *TraceModule) Entries() []*TraceEntry {
	return m.entries
}

func (m *TraceModule) mark(tag string) {
	if len(m.stack) == 0 {
		return
	}
	m.stack[len(m.stack)-1].timer.Mark(tag)
}

func (m *TraceModule) OnEvent(api engine.KernelInternalApi, ev interface{}) error {
	switch e := ev.(type) {
	case *ExecutionEvent:
		if e.Phase == engine.PhaseStart {
			actor := "unknown"
			if data := api.KernelGetCallFrameData(); data != nil {
				actor = fmt.Sprint(data)
			}
			m.stack = append(m.stack, &frameTrace{
				depth: api.KernelGetCurrentDepth(),
				actor: actor,
				timer: timer.NewXTimer(),
			})
			return nil
		}
		if len(m.stack) == 0 {
			return nil
		}
		top := m.stack[len(m.stack)-1]
		m.stack = m.stack[:len(m.stack)-1]
		top.timer.Mark("finish")
		m.entries = append(m.entries, &TraceEntry{
			Depth:      top.depth,
			Actor:      top.actor,
			Points:     top.timer.Points(),
			Elapsed:    top.timer.Elapsed(),
			MovedNodes: len(e.Message.MoveNodes),
			Timing:     top.timer.Print(),
		})
	case *engine.CreateNodeEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("create_node")
		}
	case *engine.DropNodeEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("drop_node")
		}
	case *engine.MoveModuleEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("move_partition")
		}
	case *engine.OpenSubstateEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("open_substate")
		}
	case *engine.CloseSubstateEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("close_substate")
		}
	case *engine.SubstateEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("keyed_substate")
		}
	case *engine.ScanEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("scan")
		}
	case *InvokeEvent:
		if e.Phase == engine.PhaseEnd {
			m.mark("invoke")
		}
	}
	return nil
}
