package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/strategy"
)

func TestPriorityDeterministicForSameSeed(t *testing.T) {
	enabled := []strategy.OpID{"a", "b", "c"}

	p1 := strategy.NewPriority(5, 2, 20)
	p2 := strategy.NewPriority(5, 2, 20)

	for i := 0; i < 15; i++ {
		op1, err := p1.NextOperation(enabled, strategy.SchedContext{})
		require.NoError(t, err)
		op2, err := p2.NextOperation(enabled, strategy.SchedContext{})
		require.NoError(t, err)
		assert.Equal(t, op1, op2)
	}
}

func TestPriorityAlwaysPicksAnEnabledOperation(t *testing.T) {
	enabled := []strategy.OpID{"m1", "m2", "m3"}
	p := strategy.NewPriority(1, 3, 50)
	valid := map[strategy.OpID]bool{"m1": true, "m2": true, "m3": true}
	for i := 0; i < 50; i++ {
		op, err := p.NextOperation(enabled, strategy.SchedContext{})
		require.NoError(t, err)
		assert.True(t, valid[op])
	}
}

func TestPriorityNameAndSeed(t *testing.T) {
	p := strategy.NewPriority(3, 1, 10)
	assert.Equal(t, "pct", p.Name())
	assert.Equal(t, uint64(3), p.Seed())
}
