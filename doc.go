// Package psharp implements the P# bug-finding runtime: a deterministic,
// single-threaded, cooperative scheduler that drives a population of
// communicating hierarchical state machines (and synchronous specification
// monitors) along controlled schedules, so that a pluggable exploration
// strategy can exercise interleavings, nondeterministic choices, and
// receive orderings that a real distributed program could encounter.
//
// Programs register machine types by building a MachineType value with
// NewMachineType rather than relying on reflection or source attributes;
// the runtime then drives instances of those types under control of a
// strategy from the psharp/strategy package, recording a psharp/trace
// ScheduleTrace and BugTrace as it goes.
package psharp
