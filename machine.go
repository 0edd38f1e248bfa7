package psharp

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/psharp-go/psharp/trace"
)

type outcomeKind int

const (
	outcomeIdle outcomeKind = iota
	outcomeBlocked
	outcomeHalted
	outcomeError
)

type outcome struct {
	kind    outcomeKind
	waiting map[EventType]bool
	err     error
}

type cmdKind int

const (
	cmdActivate cmdKind = iota
	cmdDeliver
)

type command struct {
	kind cmdKind
	env  EventEnvelope
}

// Machine is a live instance of a MachineType: its identity, state
// stack, inbox, and the dedicated goroutine that runs its handler code.
// Exactly one machine's goroutine is ever running at a time; the
// scheduler enforces this by blocking on doneCh after every command it
// sends, so Machine's own fields need no synchronization.
type Machine struct {
	id               MachineId
	mt               *MachineType
	runtime          *Runtime
	inbox            *Inbox
	stateStack       []StateName
	operationGroupID uuid.UUID
	initEvent        Event

	ctx *Context

	activated     bool
	isHalted      bool
	haltRequested bool

	waiting map[EventType]bool // non-nil while blocked in Receive

	cmdCh    chan command
	resumeCh chan EventEnvelope
	doneCh   chan outcome

	started bool
}

func newMachine(id MachineId, mt *MachineType, rt *Runtime, opGroup uuid.UUID) *Machine {
	m := &Machine{
		id:               id,
		mt:               mt,
		runtime:          rt,
		inbox:            NewInbox(),
		operationGroupID: opGroup,
		cmdCh:            make(chan command),
		resumeCh:         make(chan EventEnvelope),
		doneCh:           make(chan outcome),
	}
	m.ctx = newContext(m)
	return m
}

func (m *Machine) top() StateName {
	if len(m.stateStack) == 0 {
		return ""
	}
	return m.stateStack[len(m.stateStack)-1]
}

func (m *Machine) actorID() MachineId             { return m.id }
func (m *Machine) actorRuntime() *Runtime         { return m.runtime }
func (m *Machine) actorOperationGroup() uuid.UUID { return m.operationGroupID }
func (m *Machine) actorTopState() StateName       { return m.top() }
func (m *Machine) actorIsMonitor() bool           { return false }
func (m *Machine) actorRequestHalt()              { m.haltRequested = true }

// ensureStarted lazily spins up the machine's dedicated goroutine; it is
// only ever called by the scheduler goroutine, which is the sole writer
// of m.started.
func (m *Machine) ensureStarted() {
	if m.started {
		return
	}
	m.started = true
	go m.loop()
}

func (m *Machine) loop() {
	for cmd := range m.cmdCh {
		var err error
		switch cmd.kind {
		case cmdActivate:
			err = m.activate()
		case cmdDeliver:
			err = m.runToQuiescence(cmd.env)
		}
		if err != nil {
			m.doneCh <- outcome{kind: outcomeError, err: err}
			continue
		}
		if m.isHalted {
			m.doneCh <- outcome{kind: outcomeHalted}
			return
		}
		m.doneCh <- outcome{kind: outcomeIdle}
	}
}

// blockOnReceive is called from within handler code running on this
// machine's goroutine; it reports the blocked state to the scheduler and
// parks until a matching envelope is handed back via resumeCh.
func (m *Machine) blockOnReceive(waiting map[EventType]bool) Event {
	m.waiting = waiting
	m.doneCh <- outcome{kind: outcomeBlocked, waiting: waiting}
	env := <-m.resumeCh
	m.waiting = nil
	return env.Event
}

func (m *Machine) activate() error {
	m.stateStack = append(m.stateStack[:0], m.mt.StartState())
	if err := m.runEntry(m.ctx, m.mt.StartState(), m.initEvent); err != nil {
		return err
	}
	if err := m.applyControl(); err != nil {
		return err
	}
	if m.haltRequested {
		m.isHalted = true
		err := m.flushEffects()
		m.runtime.emitStep(trace.StepHalt, m.id, m.top(), "halt")
		return err
	}
	raised := m.ctx.takeRaisedEnvelope()
	m.ctx.resetControlAndRaise()
	if raised == nil {
		return m.flushEffects()
	}
	return m.runToQuiescence(*raised)
}

// runToQuiescence drives the machine through env and every event it
// transitively raises until no raised event remains, a receive blocks
// the goroutine, or halt is requested, then flushes the buffered sends
// in issuance order (spec §4.1, §4.3).
func (m *Machine) runToQuiescence(env EventEnvelope) error {
	pending := &env
	for pending != nil {
		cur := m.top()
		flat := m.mt.Flat(cur)
		h, ok := flat.handlers[EventTypeOf(pending.Event)]
		if !ok {
			return fmt.Errorf("%s: %w: event %q unhandled in state %q", m.id, ErrUnhandledEvent, EventTypeOf(pending.Event), cur)
		}
		if pending.OperationGroupID != uuid.Nil {
			m.operationGroupID = pending.OperationGroupID
		}
		m.ctx.beginHandler(pending.Event)
		if err := m.applyHandler(h); err != nil {
			return err
		}
		if err := m.applyControl(); err != nil {
			return err
		}
		if m.haltRequested {
			m.isHalted = true
			err := m.flushEffects()
			m.runtime.emitStep(trace.StepHalt, m.id, m.top(), "halt")
			return err
		}
		raised := m.ctx.takeRaisedEnvelope()
		m.ctx.resetControlAndRaise()
		pending = raised
	}
	return m.flushEffects()
}

func (m *Machine) applyHandler(h eventHandler) error {
	switch h.kind {
	case handlerDoAction:
		return runAction(h.action, m.ctx)
	case handlerGoto:
		return m.ctx.Goto(h.target)
	case handlerPush:
		return m.ctx.Push(h.target)
	}
	return nil
}

func (m *Machine) applyControl() error {
	switch m.ctx.control.kind {
	case ctrlNone:
		return nil
	case ctrlGoto:
		return m.doGoto(m.ctx.control.target)
	case ctrlPush:
		return m.doPush(m.ctx.control.target)
	case ctrlPop:
		return m.doPop()
	}
	return nil
}

func (m *Machine) doGoto(target StateName) error {
	if err := m.runExit(m.ctx, m.top()); err != nil {
		return err
	}
	m.stateStack[len(m.stateStack)-1] = target
	if err := m.runEntry(m.ctx, target, m.ctx.handlerEvent); err != nil {
		return err
	}
	m.runtime.emitStep(trace.StepGoto, m.id, target, fmt.Sprintf("goto %s", target))
	return nil
}

func (m *Machine) doPush(target StateName) error {
	m.stateStack = append(m.stateStack, target)
	if err := m.runEntry(m.ctx, target, m.ctx.handlerEvent); err != nil {
		return err
	}
	m.runtime.emitStep(trace.StepPush, m.id, target, fmt.Sprintf("push %s", target))
	return nil
}

func (m *Machine) doPop() error {
	if len(m.stateStack) <= 1 {
		return fmt.Errorf("%s: %w: pop attempted with no pushed state to return to", m.id, ErrInternal)
	}
	if err := m.runExit(m.ctx, m.top()); err != nil {
		return err
	}
	m.stateStack = m.stateStack[:len(m.stateStack)-1]
	m.runtime.emitStep(trace.StepPop, m.id, m.top(), "pop")
	return nil
}

func (m *Machine) runEntry(ctx *Context, state StateName, triggeringEvent Event) error {
	def := m.mt.states[state]
	if def == nil || def.OnEntry == nil {
		return nil
	}
	return runEntryAction(def.OnEntry, ctx, triggeringEvent)
}

func (m *Machine) runExit(ctx *Context, state StateName) error {
	def := m.mt.states[state]
	if def == nil || def.OnExit == nil {
		return nil
	}
	return runExitAction(def.OnExit, ctx)
}

// flushEffects delivers every buffered send in issuance order and clears
// the buffer. It runs on this machine's own goroutine, which is the only
// goroutine permitted to touch any machine state while the scheduler
// waits on doneCh, so mutating another machine's inbox here is race-free.
func (m *Machine) flushEffects() error {
	effects := m.ctx.effects
	m.ctx.effects = nil
	for _, e := range effects {
		switch e.kind {
		case effectSend:
			if err := m.runtime.deliver(m.id, e.target, e.event, e.options); err != nil {
				return err
			}
		}
	}
	return nil
}

func runAction(fn ActionFunc, ctx *Context) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", ctx.host.actorID(), ErrUnhandledException, r)
		}
	}()
	err = fn(ctx, ctx.handlerEvent)
	if err == nil && ctx.monitorErr != nil {
		err = ctx.monitorErr
	}
	return err
}

func runEntryAction(fn EntryFunc, ctx *Context, event Event) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", ctx.host.actorID(), ErrUnhandledException, r)
		}
	}()
	err = fn(ctx, event)
	if err == nil && ctx.monitorErr != nil {
		err = ctx.monitorErr
	}
	return err
}

func runExitAction(fn ExitFunc, ctx *Context) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", ctx.host.actorID(), ErrUnhandledException, r)
		}
	}()
	err = fn(ctx)
	if err == nil && ctx.monitorErr != nil {
		err = ctx.monitorErr
	}
	return err
}
