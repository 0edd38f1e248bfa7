package trace

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/event"
)

// EventSink receives a copy of every BugTraceStep as it is appended, for
// callers that want to stream progress rather than wait for a finished
// BugTrace (e.g. a live UI or an external log aggregator).
type EventSink interface {
	Publish(ctx context.Context, source string, step BugTraceStep) error
}

// NopSink discards every step; it is the Recorder's default sink.
type NopSink struct{}

func (NopSink) Publish(context.Context, string, BugTraceStep) error { return nil }

// CloudEventsSink wraps a cloudevents.Client and republishes each
// BugTraceStep as a CloudEvent, giving the runtime a vendor-neutral way
// to hand bug-trace steps to whatever observability pipeline a host
// application already has wired up.
type CloudEventsSink struct {
	client cloudevents.Client
}

// NewCloudEventsSink builds a sink over an HTTP CloudEvents client
// targeting target (a URL accepting CloudEvents-over-HTTP).
func NewCloudEventsSink(target string) (*CloudEventsSink, error) {
	p, err := cloudevents.NewHTTP(cloudevents.WithTarget(target))
	if err != nil {
		return nil, fmt.Errorf("trace: building cloudevents http protocol: %w", err)
	}
	c, err := cloudevents.NewClient(p, cloudevents.WithTimeNow(), cloudevents.WithUUIDs())
	if err != nil {
		return nil, fmt.Errorf("trace: building cloudevents client: %w", err)
	}
	return &CloudEventsSink{client: c}, nil
}

func (s *CloudEventsSink) Publish(ctx context.Context, source string, step BugTraceStep) error {
	e := event.New()
	e.SetSource(source)
	e.SetType("com.psharp.bugtrace." + string(step.Kind))
	if err := e.SetData(cloudevents.ApplicationJSON, step); err != nil {
		return fmt.Errorf("trace: encoding cloudevent payload: %w", err)
	}
	result := s.client.Send(ctx, e)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("trace: cloudevent undelivered: %w", result)
	}
	return nil
}
