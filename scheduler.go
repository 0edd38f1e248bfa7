package psharp

import (
	"errors"
	"fmt"
	"time"

	"github.com/psharp-go/psharp/strategy"
	"github.com/psharp-go/psharp/trace"
)

// SetupFunc seeds a fresh Runtime with its initial machine(s) at the
// start of every test iteration; the machines and monitors from the
// previous iteration no longer exist by the time it runs (spec §6).
type SetupFunc func(rt *Runtime) error

// IterationResult is everything one call to Scheduler.runOneIteration
// produced: how far it got, what failed (if anything), and the two
// trace artifacts recorded along the way.
type IterationResult struct {
	Iteration     int
	Steps         int
	Failures      []error
	BugTrace      *trace.BugTrace
	ScheduleTrace *trace.ScheduleTrace
}

// TestResult aggregates every iteration Scheduler.RunTest ran.
// FailingIteration is nil unless a bug was found, in which case it is
// also the last entry in Iterations.
type TestResult struct {
	Iterations       []*IterationResult
	FailingIteration *IterationResult
}

// Scheduler drives a Runtime through the P# bug-finding loop (spec §6):
// each step asks the active exploration strategy to pick one enabled
// operation, executes exactly that operation to its next quiescent or
// blocked point, and repeats until nothing is enabled, a failure is
// recorded, or the step bound is hit.
type Scheduler struct {
	rt       *Runtime
	maxSteps int
	sink     trace.EventSink
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption func(*Scheduler)

// WithMaxSteps bounds the number of operations a single iteration may
// run. Reaching the bound stops the iteration without reporting a
// deadlock; a monitor left in a hot state at that point is still reported
// as a liveness violation. 0 means unbounded.
func WithMaxSteps(n int) SchedulerOption {
	return func(s *Scheduler) { s.maxSteps = n }
}

// WithEventSink streams every bug-trace step to sink as it is recorded,
// in addition to keeping it in the in-memory BugTrace.
func WithEventSink(sink trace.EventSink) SchedulerOption {
	return func(s *Scheduler) { s.sink = sink }
}

// NewScheduler returns a Scheduler driving rt.
func NewScheduler(rt *Runtime, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{rt: rt}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunTest runs iterations test iterations (or until the exploration
// strategy reports itself exhausted), stopping early at the first
// iteration that records a failure, exactly like P#'s "find the first
// bug" contract (spec §6).
func (s *Scheduler) RunTest(setup SetupFunc, iterations int) (*TestResult, error) {
	result := &TestResult{}
	for i := 0; i < iterations; i++ {
		ir, err := s.runOneIteration(i, setup)
		if err != nil {
			return result, err
		}
		result.Iterations = append(result.Iterations, ir)
		if len(ir.Failures) > 0 {
			result.FailingIteration = ir
			return result, nil
		}
		if i < iterations-1 && !s.rt.strategy.PrepareNextIteration() {
			break
		}
	}
	return result, nil
}

// RunOne runs exactly one iteration against the strategy's current,
// as-constructed state; it is the entry point strategy.Replay-driven
// reproduction uses, since a replay is always exactly one iteration.
func (s *Scheduler) RunOne(setup SetupFunc) (*IterationResult, error) {
	return s.runOneIteration(0, setup)
}

func (s *Scheduler) runOneIteration(i int, setup SetupFunc) (*IterationResult, error) {
	s.rt.resetForIteration()
	recorder := trace.NewRecorder(s.rt.strategy.Name(), s.rt.strategy.Seed(), i, fmt.Sprintf("iteration-%d", i), s.sink)
	s.rt.recorder = recorder

	if err := setup(s.rt); err != nil {
		return nil, fmt.Errorf("scheduler: setup failed: %w", err)
	}

	steps := 0
	boundHit := false
	for {
		if s.maxSteps > 0 && steps >= s.maxSteps {
			boundHit = true
			break
		}
		enabled, lookup := s.enabledOperations()
		if len(enabled) == 0 {
			break
		}
		opID, err := s.rt.strategy.NextOperation(enabled, strategy.SchedContext{Iteration: i, StepCount: steps})
		if err != nil {
			if errors.Is(err, strategy.ErrOperationNotEnabled) {
				s.rt.recordFailure(fmt.Errorf("%w: %v", ErrReplayDivergence, err))
				break
			}
			return nil, fmt.Errorf("scheduler: strategy failed to choose an operation: %w", err)
		}
		recorder.Schedule.RecordOp(opID)
		if err := s.runOperation(lookup[opID]); err != nil {
			if errors.Is(err, ErrInternal) {
				return nil, err
			}
			s.rt.recordFailure(err)
			break
		}
		if len(s.rt.failures) > 0 {
			break
		}
		steps++
		if rep, ok := s.rt.strategy.(*strategy.Replay); ok && rep.Diverged() != nil {
			break
		}
	}

	if rep, ok := s.rt.strategy.(*strategy.Replay); ok {
		if derr := rep.Diverged(); derr != nil {
			s.rt.recordFailure(fmt.Errorf("%w: %v", ErrReplayDivergence, derr))
		}
	}
	if len(s.rt.failures) == 0 {
		if hot := s.rt.hotMonitors(); len(hot) > 0 {
			s.rt.recordFailure(fmt.Errorf("%w: %d monitor(s) quiesced in a hot state", ErrLivenessViolation, len(hot)))
		} else if !boundHit && s.anyMachineDeadlocked() {
			s.rt.recordFailure(ErrDeadlock)
		}
	}

	recorder.Bug.FinishedAt = time.Now()
	return &IterationResult{
		Iteration:     i,
		Steps:         steps,
		Failures:      append([]error(nil), s.rt.failures...),
		BugTrace:      recorder.Bug,
		ScheduleTrace: recorder.Schedule,
	}, nil
}

// enabledOperations returns the OpIDs of every non-halted machine with
// at least one dequeuable event (or, for an as-yet-unactivated machine,
// simply existing; or, for a machine parked in Receive, an inbox entry
// matching its waiting set), in machine-creation order so that the same
// seed always sees the same candidate ordering (spec invariant 1).
func (s *Scheduler) enabledOperations() ([]strategy.OpID, map[strategy.OpID]MachineId) {
	ops := make([]strategy.OpID, 0, len(s.rt.order))
	lookup := make(map[strategy.OpID]MachineId, len(s.rt.order))
	for _, id := range s.rt.order {
		m := s.rt.machines[id]
		if m == nil || m.isHalted {
			continue
		}
		enabled := false
		switch {
		case !m.activated:
			enabled = true
		case m.waiting != nil:
			enabled = m.inbox.HasWaitingMatch(m.waiting)
		default:
			flat := m.mt.Flat(m.top())
			enabled = m.inbox.HasDequeuable(flat.isIgnored, flat.isDeferred)
		}
		if enabled {
			op := strategy.OpID(id.String())
			ops = append(ops, op)
			lookup[op] = id
		}
	}
	return ops, lookup
}

// runOperation executes exactly one scheduling decision against id: its
// activation, its next dequeued event, or the event unblocking its
// pending Receive, whichever applies.
func (s *Scheduler) runOperation(id MachineId) error {
	m := s.rt.machines[id]
	if m == nil {
		return fmt.Errorf("%s: %w: scheduler chose an operation for an unknown machine", id, ErrInternal)
	}

	var out outcome
	switch {
	case !m.activated:
		m.ensureStarted()
		m.cmdCh <- command{kind: cmdActivate}
		out = <-m.doneCh
		m.activated = true
	case m.waiting != nil:
		env, ok := m.inbox.DequeueWaiting(m.waiting)
		if !ok {
			return fmt.Errorf("%s: %w: scheduler chose a blocked machine with no matching event", id, ErrInternal)
		}
		m.resumeCh <- env
		out = <-m.doneCh
	default:
		flat := m.mt.Flat(m.top())
		env, ok := m.inbox.Dequeue(flat.isIgnored, flat.isDeferred)
		if !ok {
			return fmt.Errorf("%s: %w: scheduler chose a machine with nothing dequeuable", id, ErrInternal)
		}
		s.rt.emitStep(trace.StepDequeue, id, m.top(), string(EventTypeOf(env.Event)))
		m.cmdCh <- command{kind: cmdDeliver, env: env}
		out = <-m.doneCh
	}

	switch out.kind {
	case outcomeError:
		return out.err
	case outcomeHalted:
		m.isHalted = true
	}
	return nil
}

// anyMachineDeadlocked reports whether the run quiesced with a non-halted
// machine that can never make further progress: either parked in Receive
// with nothing in its inbox matching its waiting set, or holding inbox
// entries none of which is dequeuable in its current state while at least
// one is deferred (ignored entries count as already discarded). Either
// way enabledOperations stopped offering it for exactly that reason, so
// true quiescence requires every non-halted machine's inbox to hold
// nothing but ignored entries (spec invariant 5).
func (s *Scheduler) anyMachineDeadlocked() bool {
	for _, m := range s.rt.machines {
		if m.isHalted {
			continue
		}
		if m.waiting != nil {
			return true
		}
		if m.activated && m.inbox.HasDequeuable(m.mt.Flat(m.top()).isIgnored, func(EventType) bool { return false }) {
			return true
		}
	}
	return false
}
