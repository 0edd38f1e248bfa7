package trace

import "context"

// Recorder is the single object the scheduler appends to during a test
// iteration: it keeps the ScheduleTrace (replay) and BugTrace (diagnosis)
// in lockstep and fans bug-trace steps out to an EventSink as they land.
type Recorder struct {
	Schedule *ScheduleTrace
	Bug      *BugTrace

	sink   EventSink
	source string
}

// NewRecorder returns a Recorder for one iteration. sink may be nil, in
// which case steps are recorded but never published.
func NewRecorder(strategyName string, seed uint64, iteration int, title string, sink EventSink) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	return &Recorder{
		Schedule: NewScheduleTrace(strategyName, seed, iteration),
		Bug:      NewBugTrace(title),
		sink:     sink,
		source:   title,
	}
}

// Step appends one bug-trace entry and publishes it to the sink. It does
// not touch the schedule trace; callers record scheduling/choice points
// directly via Recorder.Schedule.
func (r *Recorder) Step(ctx context.Context, kind BugStepKind, machineID, state, detail string) {
	r.Bug.Append(kind, machineID, state, detail)
	last := r.Bug.Steps[len(r.Bug.Steps)-1]
	_ = r.sink.Publish(ctx, r.source, last)
}
