// Package strategy defines the exploration-strategy boundary the P#
// scheduler drives every step through (spec §4.4), plus the four required
// implementations: Random, DFS, a priority-based (PCT-style) strategy, and
// Replay.
//
// The package deliberately knows nothing about machines, events, or
// inboxes: it operates purely on opaque OpIDs supplied by the scheduler,
// so it can be unit tested in complete isolation and so the scheduler
// package can swap strategies without an import cycle.
package strategy

import "fmt"

// OpID identifies an enabled operation (almost always a machine's
// MachineId.String()) for one scheduling decision.
type OpID string

// SchedContext carries the scheduler state a strategy may want to
// consult when choosing among enabled operations.
type SchedContext struct {
	// Iteration is the 0-based index of the current test iteration.
	Iteration int

	// StepCount is the number of steps already taken in this iteration.
	StepCount int

	// Priorities maps an OpID to an integer priority for strategies that
	// take caller-supplied priorities. The Scheduler leaves it nil, and
	// the strategies in this package do not read it (Priority keeps its
	// own ranking).
	Priorities map[OpID]int
}

// Strategy is the exploration-strategy interface (spec §4.4). The same
// strategy+seed must reproduce the same operation and random-choice
// sequence for the same program (spec invariant 1, determinism).
type Strategy interface {
	// NextOperation picks one of the enabled operations to run next.
	NextOperation(enabled []OpID, sctx SchedContext) (OpID, error)

	// NextBool returns a boolean nondeterministic choice. max, when
	// greater than 2, biases the distribution rather than changing the
	// value's range (bool is always true/false); implementations may
	// ignore it.
	NextBool(max uint32) bool

	// NextInt returns an integer nondeterministic choice in [0, max).
	NextInt(max uint32) uint32

	// PrepareNextIteration resets internal state for a new schedule
	// search iteration and reports whether another iteration remains to
	// explore; false means the strategy is exhausted. The scheduler
	// calls this once an iteration has completed, never before the
	// first: the first iteration always runs with the strategy's
	// as-constructed state.
	PrepareNextIteration() bool

	// Seed returns the seed this strategy instance was constructed with,
	// recorded in the schedule-trace header for reproduction.
	Seed() uint64

	// Name identifies the strategy for the schedule-trace header and CLI
	// --strategy flag.
	Name() string
}

// ErrOperationNotEnabled is returned by Replay when the program under
// test diverges from the recorded schedule: the expected operation is
// not among the currently enabled set.
var ErrOperationNotEnabled = fmt.Errorf("replay: recorded operation is not currently enabled")

// ErrNoEnabledOperations is returned by NextOperation implementations
// when asked to choose among zero candidates; the scheduler never calls
// a strategy this way and treats it as an internal error if it happens.
var ErrNoEnabledOperations = fmt.Errorf("strategy: no enabled operations to choose from")
