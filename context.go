package psharp

import (
	"fmt"

	"github.com/google/uuid"
)

type controlKind int

const (
	ctrlNone controlKind = iota
	ctrlGoto
	ctrlPush
	ctrlPop
)

type controlEffect struct {
	kind   controlKind
	target StateName
}

type effectKind int

const (
	effectSend effectKind = iota
)

// effect is one buffered side effect issued during a step, kept in
// issuance order so that sends made from an action and sends made from
// the exit/entry handlers a transition triggers are flushed in the same
// relative order the user code issued them (spec §4.3).
type effect struct {
	kind    effectKind
	target  MachineId
	event   Event
	options SendOptions
}

// actor is the subset of Machine/Monitor behavior Context needs, letting
// one Context implementation drive both: machines run on their own
// goroutine and may block in Receive, monitors run synchronously inline
// on whichever goroutine notified them and may never block.
type actor interface {
	actorID() MachineId
	actorRuntime() *Runtime
	actorOperationGroup() uuid.UUID
	actorTopState() StateName
	actorIsMonitor() bool
	actorRequestHalt()
}

// Context is the only handle machine and monitor handler code receives.
// It buffers the effects (sends, raises, state transfers) a handler
// issues and, for machines, exposes the blocking Receive primitive. Only
// one goroutine is ever executing Context methods for a given actor at a
// time, so no locking is required here.
type Context struct {
	host actor

	handlerEvent Event // the event currently being handled, passed to entry/exit on transition

	raisedSet bool
	raised    Event

	controlSet bool
	control    controlEffect

	effects []effect

	// monitorErr latches the first attempt by monitor handler code to use
	// a machine-only primitive (Send/Create/Receive/Random); monitors
	// have no error-returning channel for most of these, so the Monitor
	// driver surfaces this after the handler call returns (spec §5).
	monitorErr error
}

func newContext(host actor) *Context {
	return &Context{host: host}
}

// beginHandler resets the per-dispatch scratch fields before invoking
// the handler for env; it does not clear the effect buffer, which spans
// the whole step.
func (c *Context) beginHandler(env Event) {
	c.handlerEvent = env
}

// resetControlAndRaise clears the once-per-outer-iteration raise/control
// slots; called after a transition (and any exit/entry it triggers) has
// been fully applied, just before processing a raised event in the new
// state.
func (c *Context) resetControlAndRaise() {
	c.raisedSet = false
	c.raised = nil
	c.controlSet = false
	c.control = controlEffect{}
}

func (c *Context) takeRaisedEnvelope() *EventEnvelope {
	if !c.raisedSet {
		return nil
	}
	return &EventEnvelope{
		Event:            c.raised,
		SenderID:         c.host.actorID(),
		OperationGroupID: c.host.actorOperationGroup(),
	}
}

// Self returns the identity of the machine or monitor this Context
// belongs to.
func (c *Context) Self() MachineId { return c.host.actorID() }

// CurrentState returns the currently active (topmost) state.
func (c *Context) CurrentState() StateName { return c.host.actorTopState() }

// GetOperationGroupId returns the operation group the currently handled
// event belongs to, propagated automatically to every Send/Create issued
// from within this handler unless overridden (spec §4.3).
func (c *Context) GetOperationGroupId() uuid.UUID { return c.host.actorOperationGroup() }

// Raise schedules event for immediate, synchronous re-dispatch in the
// current (or, if combined with Goto/Push, new) state once the active
// handler returns. At most one Raise is permitted across the action and
// any exit/entry handlers a transition it triggers runs.
func (c *Context) Raise(event Event) error {
	if c.raisedSet {
		return fmt.Errorf("%s: %w", c.host.actorID(), ErrSecondRaiseInStep)
	}
	c.raisedSet = true
	c.raised = event
	return nil
}

// Goto buffers a transition to target, applied once the active handler
// returns. At most one control transfer (Goto/Push/Pop) is permitted per
// step.
func (c *Context) Goto(target StateName) error {
	return c.setControl(ctrlGoto, target)
}

// Push buffers a push-transition onto target, applied once the active
// handler returns. The current state is not exited.
func (c *Context) Push(target StateName) error {
	return c.setControl(ctrlPush, target)
}

// Pop buffers a pop back to the state beneath the current one on the
// state stack.
func (c *Context) Pop() error {
	return c.setControl(ctrlPop, "")
}

func (c *Context) setControl(kind controlKind, target StateName) error {
	if c.controlSet {
		return fmt.Errorf("%s: %w", c.host.actorID(), ErrSecondControlInStep)
	}
	c.controlSet = true
	c.control = controlEffect{kind: kind, target: target}
	return nil
}

// Send buffers event for delivery to target's inbox, preserving FIFO
// order relative to every other Send this actor has issued to the same
// target (spec invariant 3). Delivery happens once the current step
// finishes, in the order the sends were issued. Monitors may not send;
// calling this from a monitor is a no-op that latches ErrMonitorMayNotSend.
func (c *Context) Send(target MachineId, event Event) {
	c.SendWithOptions(target, event, SendOptions{OperationGroupID: c.host.actorOperationGroup()})
}

// SendWithOptions is Send with explicit SendOptions; a zero
// OperationGroupID inherits the current handler's operation group.
func (c *Context) SendWithOptions(target MachineId, event Event, opts SendOptions) {
	if c.host.actorIsMonitor() {
		c.latchMonitorErr(ErrMonitorMayNotSend)
		return
	}
	if opts.OperationGroupID == uuid.Nil {
		opts.OperationGroupID = c.host.actorOperationGroup()
	}
	c.effects = append(c.effects, effect{kind: effectSend, target: target, event: event, options: opts})
}

// Create registers a new machine of the named type, returning its
// identity immediately. The new machine's start-state entry handler runs
// the first time the scheduler picks it as an enabled operation, not
// synchronously within this call (spec §4.2: create is fire-and-forget;
// only CreateAndExecute runs to quiescence inline). Monitors may not
// create machines.
func (c *Context) Create(typeName string, name string, initEvent Event) (MachineId, error) {
	if c.host.actorIsMonitor() {
		return MachineId{}, fmt.Errorf("%s: %w", c.host.actorID(), ErrMonitorMayNotCreate)
	}
	return c.host.actorRuntime().createMachine(typeName, name, initEvent, c.host.actorOperationGroup())
}

// CreateAndExecute registers a new machine and synchronously drives it
// (and any machine it in turn creates-and-executes) to quiescence before
// returning, recursively reusing this goroutine exactly like a direct
// function call (spec §4.2). It detects await cycles and returns
// ErrAwaitDeadlock rather than recursing forever.
func (c *Context) CreateAndExecute(typeName string, name string, initEvent Event) (MachineId, error) {
	m, ok := c.host.(*Machine)
	if !ok {
		return MachineId{}, fmt.Errorf("%s: %w", c.host.actorID(), ErrMonitorMayNotCreate)
	}
	return m.runtime.createAndExecute(m, typeName, name, initEvent, c.host.actorOperationGroup())
}

// SendAndExecute delivers event to target immediately and synchronously
// drives target (and any chain of awaited machines) to quiescence before
// returning, reporting whether the handler was found to have handled the
// event (spec §4.2).
func (c *Context) SendAndExecute(target MachineId, event Event) (bool, error) {
	m, ok := c.host.(*Machine)
	if !ok {
		return false, fmt.Errorf("%s: %w", c.host.actorID(), ErrMonitorMayNotSend)
	}
	return m.runtime.sendAndExecute(m, target, event, c.host.actorOperationGroup())
}

// Monitor synchronously notifies every registered monitor interested in
// event's type. Monitor handlers never block, send, create, or receive,
// so this never suspends the calling goroutine (spec §5).
func (c *Context) Monitor(event Event) {
	if c.host.actorIsMonitor() {
		return
	}
	c.host.actorRuntime().notifyMonitors(event)
}

// Assert fails the current test iteration immediately when cond is
// false, recording msg as the bug-trace detail.
func (c *Context) Assert(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return fmt.Errorf("%s: %w: %s", c.host.actorID(), ErrAssertionFailed, fmt.Sprintf(format, args...))
}

// RandomBool asks the active exploration strategy for a nondeterministic
// boolean choice, recorded in the schedule trace for replay. Monitors may
// not make random choices, since their handlers must be pure functions
// of the events they observe.
func (c *Context) RandomBool(maxValue uint32) bool {
	if c.host.actorIsMonitor() {
		c.latchMonitorErr(ErrMonitorMayNotRandom)
		return false
	}
	return c.host.actorRuntime().nextBool(maxValue)
}

// RandomInt asks the active exploration strategy for a nondeterministic
// integer choice in [0, maxValue), recorded in the schedule trace for
// replay.
func (c *Context) RandomInt(maxValue uint32) uint32 {
	if c.host.actorIsMonitor() {
		c.latchMonitorErr(ErrMonitorMayNotRandom)
		return 0
	}
	return c.host.actorRuntime().nextInt(maxValue)
}

// Receive suspends the calling handler until an event of one of the
// given types is available, bypassing the current state's deferred and
// ignored sets (spec §4.1). It hands control back to the scheduler while
// suspended, preserving the single-active-goroutine invariant, and
// resumes this exact call frame once a matching event is delivered.
// Monitors may never receive, since they are driven synchronously and
// have no inbox of their own.
func (c *Context) Receive(types ...EventType) Event {
	m, ok := c.host.(*Machine)
	if !ok {
		c.latchMonitorErr(ErrMonitorMayNotReceive)
		return nil
	}
	waiting := make(map[EventType]bool, len(types))
	for _, t := range types {
		waiting[t] = true
	}
	return m.blockOnReceive(waiting)
}

// Halt buffers a halt: the actor finishes applying any already buffered
// transition, then stops permanently and stops accepting further events.
func (c *Context) Halt() {
	c.host.actorRequestHalt()
}

func (c *Context) latchMonitorErr(err error) {
	if c.monitorErr == nil {
		c.monitorErr = fmt.Errorf("%s: %w", c.host.actorID(), err)
	}
}
