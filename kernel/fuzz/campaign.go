package fuzz

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/lib/logs"
)

const (
	ScenarioOneNode    = "one-node"
	ScenarioTwoOpen    = "two-open"
	ScenarioThreeChain = "three-chain"
	ScenarioRandom     = "random"
)

func Scenarios() []string {
	return []string{ScenarioOneNode, ScenarioTwoOpen, ScenarioThreeChain, ScenarioRandom}
}

func randomTail(f *KernelFuzzer, prefix []Action, steps int) []Action {
	for i := 0; i < steps; i++ {
		prefix = append(prefix, f.NextAction())
	}
	return prefix
}

// ScenarioGenerator returns the generator for a named scenario. steps is the
// number of random actions appended after the fixed prefix, zero picks the
// scenario default.
func ScenarioGenerator(name string, steps int) (Generator, error) {
	switch name {
	case ScenarioOneNode:
		if steps <= 0 {
			steps = 8
		}
		return func(f *KernelFuzzer) []Action {
			return randomTail(f, []Action{ActionAllocate, ActionCreateNode}, steps)
		}, nil
	case ScenarioTwoOpen:
		if steps <= 0 {
			steps = 4
		}
		return func(f *KernelFuzzer) []Action {
			return randomTail(f, []Action{
				ActionAllocate, ActionCreateNode,
				ActionAllocate, ActionCreateNode,
				ActionOpenSubstate, ActionOpenSubstate,
			}, steps)
		}, nil
	case ScenarioThreeChain:
		// closing a substate whose value owns a node that another open substate still reads
		return func(*KernelFuzzer) []Action {
			return []Action{
				ActionAllocate, ActionCreateNode,
				ActionAllocate, ActionCreateNode,
				ActionOpenSubstate, ActionOpenSubstate,
				ActionCloseSubstate,
				ActionAllocate, ActionCreateNode,
				ActionReadSubstate,
			}
		}, nil
	case ScenarioRandom:
		if steps <= 0 {
			steps = 16
		}
		return func(f *KernelFuzzer) []Action {
			return randomTail(f, nil, steps)
		}, nil
	}
	return nil, errors.Errorf("unknown scenario %q", name)
}

type Summary struct {
	Runs      int
	Successes int
	// LongestStreak is the longest run of consecutive successful seeds.
	LongestStreak int
	// MaxExecuted is the most actions any run got through without an error.
	MaxExecuted int
	// ErrorKinds counts failed runs by kernel error kind.
	ErrorKinds map[string]int
	// Fatal holds every run that found a kernel bug, ordered by seed.
	Fatal []*Result
}

// Campaign runs a scenario over a range of seeds in parallel.
type Campaign struct {
	Generator Generator
	Workers   int
	Log       logs.Logger
}

func (c *Campaign) Run(ctx context.Context, start, count uint64) (*Summary, error) {
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}
	log := c.Log
	if log == nil {
		log = logs.DiscardLogger()
	}

	results := make([]*Result, count)
	seeds := make(chan uint64)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(seeds)
		for i := uint64(0); i < count; i++ {
			select {
			case seeds <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range seeds {
				res := Run(start+i, c.Generator)
				if res.Fatal() {
					log.Warn("fuzz run found a kernel bug", "seed", res.Seed, "err", res.Err)
				}
				results[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summarize(results), nil
}

func summarize(results []*Result) *Summary {
	s := &Summary{ErrorKinds: make(map[string]int)}
	streak := 0
	for _, res := range results {
		s.Runs++
		if res.Executed > s.MaxExecuted {
			s.MaxExecuted = res.Executed
		}
		if res.Success() {
			s.Successes++
			streak++
			if streak > s.LongestStreak {
				s.LongestStreak = streak
			}
			continue
		}
		streak = 0
		if res.Fatal() {
			s.Fatal = append(s.Fatal, res)
			continue
		}
		kind := "unknown"
		var re *engine.RuntimeError
		if errors.As(res.Err, &re) {
			kind = re.Kind.String()
		}
		s.ErrorKinds[kind]++
	}
	sort.Slice(s.Fatal, func(i, j int) bool { return s.Fatal[i].Seed < s.Fatal[j].Seed })
	return s
}
