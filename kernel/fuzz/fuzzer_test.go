package fuzz

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/engine"
)

func fixed(actions ...Action) Generator {
	return func(*KernelFuzzer) []Action {
		return actions
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "Allocate", ActionAllocate.String())
	assert.Equal(t, "CloseSubstate", ActionCloseSubstate.String())
	assert.Equal(t, "Action(42)", Action(42).String())
	assert.Equal(t, "Allocate,CreateNode", FormatActions([]Action{ActionAllocate, ActionCreateNode}))
}

func TestScenarioGenerator(t *testing.T) {
	_, err := ScenarioGenerator("nope", 0)
	assert.Error(t, err)

	gen, err := ScenarioGenerator(ScenarioOneNode, 0)
	require.NoError(t, err)
	actions := gen(NewKernelFuzzer(1))
	require.Len(t, actions, 10)
	assert.Equal(t, []Action{ActionAllocate, ActionCreateNode}, actions[:2])
	for _, a := range actions {
		assert.True(t, a < numActions)
	}

	gen, err = ScenarioGenerator(ScenarioTwoOpen, 2)
	require.NoError(t, err)
	assert.Len(t, gen(NewKernelFuzzer(1)), 8)

	gen, err = ScenarioGenerator(ScenarioThreeChain, 100)
	require.NoError(t, err)
	assert.Len(t, gen(NewKernelFuzzer(1)), 10)

	for _, name := range Scenarios() {
		_, err := ScenarioGenerator(name, 0)
		assert.NoError(t, err, name)
	}
}

func TestRunEmpty(t *testing.T) {
	res := Run(7, fixed())
	require.True(t, res.Success(), "%v", res.Err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 0, res.Report.Nodes)
}

func TestRunSkipsWithoutNodes(t *testing.T) {
	res := Run(7, fixed(ActionCreateNode, ActionPinNode, ActionReadSubstate, ActionCloseSubstate, ActionInvoke))
	require.True(t, res.Success(), "%v", res.Err)
	assert.Equal(t, 5, res.Executed)
	assert.Equal(t, 5, res.Skipped)
}

func TestRunAllocateLimit(t *testing.T) {
	res := Run(3, fixed(ActionAllocate, ActionAllocate, ActionAllocate, ActionAllocate, ActionAllocate))
	require.True(t, res.Success(), "%v", res.Err)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunCreateNode(t *testing.T) {
	res := Run(11, fixed(ActionAllocate, ActionCreateNode))
	require.True(t, res.Success(), "%v", res.Err)
	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, 0, res.Skipped)
	require.NotNil(t, res.Report)
}

func TestRunUnknownAction(t *testing.T) {
	res := Run(1, fixed(Action(200)))
	require.Error(t, res.Err)
	assert.False(t, res.Fatal())
	assert.Equal(t, 0, res.Executed)
}

func TestRunDeterministic(t *testing.T) {
	gen, err := ScenarioGenerator(ScenarioRandom, 24)
	require.NoError(t, err)
	for seed := uint64(0); seed < 20; seed++ {
		a, b := Run(seed, gen), Run(seed, gen)
		assert.Equal(t, a.Actions, b.Actions)
		assert.Equal(t, a.Executed, b.Executed)
		assert.Equal(t, a.Success(), b.Success())
	}
}

func TestCampaign(t *testing.T) {
	for _, name := range Scenarios() {
		gen, err := ScenarioGenerator(name, 0)
		require.NoError(t, err)
		c := &Campaign{Generator: gen, Workers: 4}
		s, err := c.Run(context.Background(), 100, 300)
		require.NoError(t, err)

		assert.Equal(t, 300, s.Runs, name)
		for _, res := range s.Fatal {
			t.Errorf("%s seed %d: %v", name, res.Seed, res.Err)
		}
		failed := 0
		for _, n := range s.ErrorKinds {
			failed += n
		}
		assert.Equal(t, s.Runs, s.Successes+failed, name)
		assert.True(t, s.LongestStreak <= s.Successes)
	}
}

func TestCampaignCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Campaign{Generator: fixed(), Workers: 2}
	_, err := c.Run(ctx, 0, 1000)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSummarize(t *testing.T) {
	kernelErr := &engine.RuntimeError{Kind: engine.KernelError, Err: errors.New("boom")}
	results := []*Result{
		{Seed: 0},
		{Seed: 1, Err: kernelErr, Executed: 6},
		{Seed: 2},
		{Seed: 3},
		{Seed: 4},
		{Seed: 5, Err: errors.Wrap(ErrInconsistentDatabase, "x")},
		{Seed: 6, Err: errors.New("other")},
		{Seed: 7},
	}
	s := summarize(results)
	assert.Equal(t, 8, s.Runs)
	assert.Equal(t, 5, s.Successes)
	assert.Equal(t, 3, s.LongestStreak)
	assert.Equal(t, 6, s.MaxExecuted)
	assert.Equal(t, map[string]int{"kernel": 1, "unknown": 1}, s.ErrorKinds)
	require.Len(t, s.Fatal, 1)
	assert.Equal(t, uint64(5), s.Fatal[0].Seed)
}
