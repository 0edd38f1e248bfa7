package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/strategy"
)

// runToExhaustion drives a two-step, two-branch choice tree (4 possible
// leaf sequences) to completion and records every sequence DFS visits.
func runToExhaustion(t *testing.T, d *strategy.DFS) [][]strategy.OpID {
	t.Helper()
	enabled := []strategy.OpID{"x", "y"}
	var sequences [][]strategy.OpID

	for {
		var seq []strategy.OpID
		for i := 0; i < 2; i++ {
			op, err := d.NextOperation(enabled, strategy.SchedContext{})
			require.NoError(t, err)
			seq = append(seq, op)
		}
		sequences = append(sequences, seq)
		if !d.PrepareNextIteration() {
			break
		}
		if len(sequences) > 10 {
			t.Fatal("DFS did not terminate within expected bound")
		}
	}
	return sequences
}

func TestDFSEnumeratesEveryLeafExactlyOnce(t *testing.T) {
	d := strategy.NewDFS(0)
	sequences := runToExhaustion(t, d)

	assert.Len(t, sequences, 4)
	seen := make(map[string]bool)
	for _, seq := range sequences {
		key := string(seq[0]) + "," + string(seq[1])
		assert.False(t, seen[key], "duplicate sequence %v", seq)
		seen[key] = true
	}
	assert.True(t, d.Exhausted())
}

func TestDFSNextBoolAndIntAreFixed(t *testing.T) {
	d := strategy.NewDFS(0)
	assert.False(t, d.NextBool(2))
	assert.Equal(t, uint32(0), d.NextInt(10))
}
