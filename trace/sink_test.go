package trace_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/trace"
)

func TestNopSinkDiscardsEverySilently(t *testing.T) {
	var sink trace.NopSink
	err := sink.Publish(context.Background(), "source", trace.BugTraceStep{Kind: trace.StepSend})
	assert.NoError(t, err)
}

func TestNewCloudEventsSinkBuildsOverValidTarget(t *testing.T) {
	sink, err := trace.NewCloudEventsSink("http://127.0.0.1:0/events")
	require.NoError(t, err)
	assert.NotNil(t, sink)
}

func TestNewCloudEventsSinkRejectsMalformedTarget(t *testing.T) {
	_, err := trace.NewCloudEventsSink("://not-a-valid-url")
	assert.Error(t, err)
}
