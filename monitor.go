package psharp

import (
	"fmt"

	"github.com/google/uuid"
)

// Monitor is a live instance of a specification monitor: a MachineType
// invoked synchronously, in-line, by whatever machine goroutine is
// currently active, rather than scheduled as its own operation (spec
// §5). It never blocks, sends, creates, or receives.
type Monitor struct {
	id      MachineId
	mt      *MachineType
	runtime *Runtime

	stateStack []StateName
	ctx        *Context

	haltRequested bool
	isHalted      bool
}

func newMonitor(id MachineId, mt *MachineType, rt *Runtime) *Monitor {
	mon := &Monitor{id: id, mt: mt, runtime: rt}
	mon.ctx = newContext(mon)
	return mon
}

func (mon *Monitor) top() StateName {
	if len(mon.stateStack) == 0 {
		return ""
	}
	return mon.stateStack[len(mon.stateStack)-1]
}

func (mon *Monitor) actorID() MachineId             { return mon.id }
func (mon *Monitor) actorRuntime() *Runtime         { return mon.runtime }
func (mon *Monitor) actorOperationGroup() uuid.UUID { return uuid.Nil }
func (mon *Monitor) actorTopState() StateName       { return mon.top() }
func (mon *Monitor) actorIsMonitor() bool           { return true }
func (mon *Monitor) actorRequestHalt()              { mon.haltRequested = true }

// isInHotState reports whether the monitor currently sits in a state
// flagged Hot: if the whole run quiesces (or ends) with any monitor in a
// hot state, that is a liveness violation (spec §5).
func (mon *Monitor) isInHotState() bool {
	if mon.isHalted {
		return false
	}
	def := mon.mt.states[mon.top()]
	return def != nil && def.IsHot
}

func (mon *Monitor) isInColdState() bool {
	def := mon.mt.states[mon.top()]
	return def != nil && def.IsCold
}

// activate runs the monitor's start-state entry handler. Monitors are
// activated eagerly at registration time, unlike machines, since nothing
// ever schedules them as an operation.
func (mon *Monitor) activate() error {
	mon.stateStack = append(mon.stateStack[:0], mon.mt.StartState())
	if err := mon.runEntry(mon.mt.StartState(), nil); err != nil {
		return err
	}
	return mon.drain()
}

// observe synchronously dispatches event to the monitor if its current
// (flattened) state declares a handler for it; an unhandled event is not
// an error for a monitor, it is simply ignored (spec §5: monitors only
// react to the event types they care about).
func (mon *Monitor) observe(event Event) error {
	if mon.isHalted {
		return nil
	}
	flat := mon.mt.Flat(mon.top())
	h, ok := flat.handlers[EventTypeOf(event)]
	if !ok {
		return nil
	}
	mon.ctx.beginHandler(event)
	if err := mon.applyHandler(h); err != nil {
		return err
	}
	if err := mon.applyControl(); err != nil {
		return err
	}
	if mon.haltRequested {
		mon.isHalted = true
		return nil
	}
	return mon.drain()
}

func (mon *Monitor) drain() error {
	raised := mon.ctx.takeRaisedEnvelope()
	mon.ctx.resetControlAndRaise()
	for raised != nil {
		flat := mon.mt.Flat(mon.top())
		h, ok := flat.handlers[EventTypeOf(raised.Event)]
		if !ok {
			return fmt.Errorf("%s: %w: event %q unhandled in state %q", mon.id, ErrUnhandledEvent, EventTypeOf(raised.Event), mon.top())
		}
		mon.ctx.beginHandler(raised.Event)
		if err := mon.applyHandler(h); err != nil {
			return err
		}
		if err := mon.applyControl(); err != nil {
			return err
		}
		if mon.haltRequested {
			mon.isHalted = true
			return nil
		}
		raised = mon.ctx.takeRaisedEnvelope()
		mon.ctx.resetControlAndRaise()
	}
	return nil
}

func (mon *Monitor) applyHandler(h eventHandler) error {
	switch h.kind {
	case handlerDoAction:
		return runAction(h.action, mon.ctx)
	case handlerGoto:
		return mon.ctx.Goto(h.target)
	case handlerPush:
		return mon.ctx.Push(h.target)
	}
	return nil
}

func (mon *Monitor) applyControl() error {
	switch mon.ctx.control.kind {
	case ctrlNone:
		return nil
	case ctrlGoto:
		return mon.doGoto(mon.ctx.control.target)
	case ctrlPush:
		return mon.doPush(mon.ctx.control.target)
	case ctrlPop:
		return mon.doPop()
	}
	return nil
}

func (mon *Monitor) doGoto(target StateName) error {
	if err := mon.runExit(mon.top()); err != nil {
		return err
	}
	mon.stateStack[len(mon.stateStack)-1] = target
	return mon.runEntry(target, mon.ctx.handlerEvent)
}

func (mon *Monitor) doPush(target StateName) error {
	mon.stateStack = append(mon.stateStack, target)
	return mon.runEntry(target, mon.ctx.handlerEvent)
}

func (mon *Monitor) doPop() error {
	if len(mon.stateStack) <= 1 {
		return fmt.Errorf("%s: %w: pop attempted with no pushed state to return to", mon.id, ErrInternal)
	}
	if err := mon.runExit(mon.top()); err != nil {
		return err
	}
	mon.stateStack = mon.stateStack[:len(mon.stateStack)-1]
	return nil
}

func (mon *Monitor) runEntry(state StateName, triggeringEvent Event) error {
	def := mon.mt.states[state]
	if def == nil || def.OnEntry == nil {
		return nil
	}
	return runEntryAction(def.OnEntry, mon.ctx, triggeringEvent)
}

func (mon *Monitor) runExit(state StateName) error {
	def := mon.mt.states[state]
	if def == nil || def.OnExit == nil {
		return nil
	}
	return runExitAction(def.OnExit, mon.ctx)
}
