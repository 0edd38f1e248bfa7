package psharp

import "errors"

// Configuration errors: detected at machine-type registration, before any
// step runs.
var (
	ErrStartStateMissing     = errors.New("machine type has no start state")
	ErrStartStateAmbiguous   = errors.New("machine type declares more than one start state")
	ErrDuplicateState        = errors.New("state already registered for machine type")
	ErrUnknownParentState    = errors.New("state names an unregistered parent state")
	ErrUnknownGotoTarget     = errors.New("goto targets an unregistered state")
	ErrUnknownPushTarget     = errors.New("push targets an unregistered state")
	ErrDuplicateEventHandler = errors.New("two handlers registered for the same event at the same state")
	ErrMachineTypeRegistered = errors.New("machine type already registered with the runtime")
	ErrMachineTypeNotFound   = errors.New("machine type not registered with the runtime")
)

// Assertion / scheduling errors: reported as bugs, schedule trace and bug
// trace emitted, run terminated.
var (
	ErrUnhandledEvent        = errors.New("event has no handler in the current state")
	ErrAssertionFailed       = errors.New("assertion failed")
	ErrSecondRaiseInStep     = errors.New("handler raised a second event in the same step")
	ErrSecondControlInStep   = errors.New("handler issued a second control transfer in the same step")
	ErrAssertAtMostNViolated = errors.New("assert-at-most-n violated for target inbox")
	ErrDeadlock              = errors.New("scheduler detected a deadlock")
	ErrLivenessViolation     = errors.New("monitor left in a hot state past the fairness bound")
	ErrUnhandledException    = errors.New("unhandled exception in user handler")
	ErrAwaitDeadlock         = errors.New("create-and-await / send-and-await cycle detected")
	ErrReplayDivergence      = errors.New("replay diverged from the recorded schedule trace")
)

// Internal / fatal runtime errors: abort immediately, never part of a bug
// report.
var (
	ErrInternal                 = errors.New("internal runtime invariant violated")
	ErrStrategyReturnedDisabled = errors.New("strategy selected an operation that is not enabled")
	ErrNoEnabledOperations      = errors.New("strategy was asked to choose among zero enabled operations")
)

// Transient storage failures: only meaningful under the reliable overlay;
// retried internally and never surfaced unless the retry budget is spent.
var (
	ErrTransientStorage = errors.New("transient storage failure")
	ErrRetryBudgetSpent = errors.New("reliable overlay retry budget exhausted")
)

// Monitor errors.
var (
	ErrMonitorMayNotSend    = errors.New("monitors may not send events")
	ErrMonitorMayNotCreate  = errors.New("monitors may not create machines")
	ErrMonitorMayNotReceive = errors.New("monitors may not receive")
	ErrMonitorMayNotRandom  = errors.New("monitors may not make random choices")
)
