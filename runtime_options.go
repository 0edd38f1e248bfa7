package psharp

import (
	"github.com/psharp-go/psharp/strategy"
	"github.com/psharp-go/psharp/trace"
)

// RuntimeOption configures a Runtime at construction time.
type RuntimeOption func(*Runtime)

// WithLogger overrides the default NopLogger.
func WithLogger(l Logger) RuntimeOption {
	return func(rt *Runtime) { rt.logger = l }
}

// WithStrategy overrides the default Random(seed=1) exploration
// strategy. A Scheduler driving this Runtime explores with whichever
// strategy the Runtime holds.
func WithStrategy(s strategy.Strategy) RuntimeOption {
	return func(rt *Runtime) { rt.strategy = s }
}

// WithRecorder attaches a trace.Recorder: machine creations, sends,
// dequeues, state transitions and halts are appended to its BugTrace, and
// random choices to its ScheduleTrace. Recorded failures are not appended.
// A Scheduler replaces the recorder with its own at the start of every
// iteration.
func WithRecorder(r *trace.Recorder) RuntimeOption {
	return func(rt *Runtime) { rt.recorder = r }
}

// WithStepObserver registers an additional StepObserver; may be called
// more than once.
func WithStepObserver(obs StepObserver) RuntimeOption {
	return func(rt *Runtime) { rt.stepObservers = append(rt.stepObservers, obs) }
}

// WithFailureHandler registers an additional FailureHandler; may be
// called more than once.
func WithFailureHandler(h FailureHandler) RuntimeOption {
	return func(rt *Runtime) { rt.failureHandlers = append(rt.failureHandlers, h) }
}
