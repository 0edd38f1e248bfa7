package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/strategy"
)

func TestReplayReproducesRecordedSequence(t *testing.T) {
	entries := []strategy.ReplayEntry{
		{Kind: strategy.ReplayOp, Op: "m2"},
		{Kind: strategy.ReplayBool, Bool: true},
		{Kind: strategy.ReplayOp, Op: "m1"},
		{Kind: strategy.ReplayInt, Int: 7},
	}
	r := strategy.NewReplay(42, entries)

	op, err := r.NextOperation([]strategy.OpID{"m1", "m2"}, strategy.SchedContext{})
	require.NoError(t, err)
	assert.Equal(t, strategy.OpID("m2"), op)

	assert.True(t, r.NextBool(2))

	op, err = r.NextOperation([]strategy.OpID{"m1", "m2"}, strategy.SchedContext{})
	require.NoError(t, err)
	assert.Equal(t, strategy.OpID("m1"), op)

	assert.Equal(t, uint32(7), r.NextInt(100))
	assert.NoError(t, r.Diverged())
}

func TestReplayDivergesWhenRecordedOpNotEnabled(t *testing.T) {
	entries := []strategy.ReplayEntry{{Kind: strategy.ReplayOp, Op: "gone"}}
	r := strategy.NewReplay(1, entries)

	_, err := r.NextOperation([]strategy.OpID{"still-here"}, strategy.SchedContext{})
	assert.ErrorIs(t, err, strategy.ErrOperationNotEnabled)
}

func TestReplayDivergesOnWrongChoiceKind(t *testing.T) {
	entries := []strategy.ReplayEntry{{Kind: strategy.ReplayBool, Bool: true}}
	r := strategy.NewReplay(1, entries)

	_, err := r.NextOperation([]strategy.OpID{"m1"}, strategy.SchedContext{})
	assert.ErrorIs(t, err, strategy.ErrReplayDivergence)
}

func TestReplayDivergesWhenTraceExhausted(t *testing.T) {
	r := strategy.NewReplay(1, nil)
	assert.False(t, r.NextBool(2))
	assert.ErrorIs(t, r.Diverged(), strategy.ErrReplayDivergence)
}

func TestReplayNeverSuggestsAnotherIteration(t *testing.T) {
	r := strategy.NewReplay(1, nil)
	assert.False(t, r.PrepareNextIteration())
}
