package trace_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/trace"
)

func TestBugTraceLinksPrevNextPerMachine(t *testing.T) {
	bt := trace.NewBugTrace("iteration-0")
	bt.Append(trace.StepCreateMachine, "m1", "Init", "created")
	bt.Append(trace.StepCreateMachine, "m2", "Init", "created")
	bt.Append(trace.StepSend, "m1", "Init", "m2 -> m1: Ping")
	bt.Append(trace.StepDequeue, "m1", "Init", "Ping")

	m1Steps := bt.ForMachine("m1")
	require.Len(t, m1Steps, 3)
	assert.Equal(t, -1, m1Steps[0].Prev)
	assert.Equal(t, m1Steps[1].Index, m1Steps[0].Next)
	assert.Equal(t, m1Steps[0].Index, m1Steps[1].Prev)
	assert.Equal(t, -1, m1Steps[2].Next)
}

func TestBugTraceRoundTripsThroughJSON(t *testing.T) {
	bt := trace.NewBugTrace("iteration-7")
	bt.Append(trace.StepCreateMachine, "m1", "Init", "created")
	bt.Append(trace.StepHalt, "m1", "Init", "halt")

	var buf bytes.Buffer
	require.NoError(t, bt.WriteTo(&buf))

	got, err := trace.ReadBugTrace(&buf)
	require.NoError(t, err)
	assert.Equal(t, bt.Title, got.Title)
	assert.Equal(t, bt.Steps, got.Steps)

	// ForMachine must keep working on a trace rebuilt from JSON.
	assert.Len(t, got.ForMachine("m1"), 2)
}
