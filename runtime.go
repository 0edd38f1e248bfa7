package psharp

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/psharp-go/psharp/strategy"
	"github.com/psharp-go/psharp/trace"
)

// StepObserver is notified once per recorded bug-trace step, letting a
// host application stream progress without waiting for a whole iteration
// to finish.
type StepObserver func(trace.BugTraceStep)

// FailureHandler is notified the moment the runtime records a failure
// (assertion, unhandled event, liveness violation, ...), before the
// iteration is unwound.
type FailureHandler func(error)

// Runtime owns the machine and monitor registry, the identity counter,
// and everything a Context needs to create machines, deliver sends, and
// consult the active exploration strategy (spec §6). Scheduler drives
// Runtime through one test iteration at a time; Runtime itself never
// decides which operation runs next.
// Runtime is deliberately not safe for concurrent use: the scheduler
// guarantees only one goroutine (the currently active machine's, or the
// scheduler's own while every machine is idle) ever calls into it at a
// time.
type Runtime struct {
	ctx      context.Context
	logger   Logger
	strategy strategy.Strategy

	machineTypes map[string]*MachineType
	monitorTypes map[string]*MachineType

	machines map[MachineId]*Machine
	order    []MachineId // creation order, for deterministic enabled-set scans

	monitors []*Monitor

	seq     uint64
	sendSeq uint64

	awaitStack []MachineId

	recorder        *trace.Recorder
	stepObservers   []StepObserver
	failureHandlers []FailureHandler
	failures        []error
}

// NewRuntime constructs a Runtime ready to have machine and monitor
// types registered on it. Most callers should go through Scheduler,
// which owns the per-iteration Runtime lifecycle; constructing one
// directly is for embedding psharp's machine model without the
// exploration loop.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		ctx:          context.Background(),
		logger:       NopLogger{},
		strategy:     strategy.NewRandom(1, 0),
		machineTypes: make(map[string]*MachineType),
		monitorTypes: make(map[string]*MachineType),
		machines:     make(map[MachineId]*Machine),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// RegisterMachineType adds mt to the registry under mt.Name. Registering
// the same name twice is a configuration error caught before any machine
// of that type is ever created.
func (rt *Runtime) RegisterMachineType(mt *MachineType) error {
	if _, exists := rt.machineTypes[mt.Name]; exists {
		return fmt.Errorf("%s: %w", mt.Name, ErrMachineTypeRegistered)
	}
	rt.machineTypes[mt.Name] = mt
	return nil
}

// RegisterMonitorType adds mt to the monitor registry under mt.Name.
func (rt *Runtime) RegisterMonitorType(mt *MachineType) error {
	if _, exists := rt.monitorTypes[mt.Name]; exists {
		return fmt.Errorf("%s: %w", mt.Name, ErrMachineTypeRegistered)
	}
	rt.monitorTypes[mt.Name] = mt
	return nil
}

// RegisterMonitor instantiates and immediately activates a monitor of
// the named, already-registered type. Monitors run for the lifetime of
// the test iteration; there is no corresponding unregister.
func (rt *Runtime) RegisterMonitor(typeName string) error {
	mt, ok := rt.monitorTypes[typeName]
	if !ok {
		return fmt.Errorf("%s: %w", typeName, ErrMachineTypeNotFound)
	}
	rt.seq++
	id := MachineId{Seq: rt.seq, Type: typeName, Name: fmt.Sprintf("%s.monitor", typeName)}
	mon := newMonitor(id, mt, rt)
	if err := mon.activate(); err != nil {
		return err
	}
	rt.monitors = append(rt.monitors, mon)
	return nil
}

// CreateMachine creates a machine of the named type outside of any
// handler, minting a fresh operation group for it. It is the entry point
// a test harness uses to seed the system under test before the
// scheduler starts taking steps.
func (rt *Runtime) CreateMachine(typeName, name string, initEvent Event) (MachineId, error) {
	return rt.createMachine(typeName, name, initEvent, uuid.New())
}

// SendEvent enqueues event on target's inbox from outside any handler
// (spec §6), e.g. from a test driving the system under test directly.
func (rt *Runtime) SendEvent(target MachineId, event Event) error {
	return rt.deliver(MachineId{}, target, event, SendOptions{OperationGroupID: uuid.New()})
}

func (rt *Runtime) createMachine(typeName, name string, initEvent Event, opGroup uuid.UUID) (MachineId, error) {
	id, _, err := rt.newMachineInstance(typeName, name, initEvent, opGroup)
	return id, err
}

func (rt *Runtime) newMachineInstance(typeName, name string, initEvent Event, opGroup uuid.UUID) (MachineId, *Machine, error) {
	mt, ok := rt.machineTypes[typeName]
	if !ok {
		return MachineId{}, nil, fmt.Errorf("%s: %w", typeName, ErrMachineTypeNotFound)
	}
	rt.seq++
	id := MachineId{Seq: rt.seq, Type: typeName, Name: name}
	m := newMachine(id, mt, rt, opGroup)
	m.initEvent = initEvent
	rt.machines[id] = m
	rt.order = append(rt.order, id)
	rt.emitStep(trace.StepCreateMachine, id, mt.StartState(), fmt.Sprintf("created %s", typeName))
	rt.logger.Debug("machine created", "id", id.String(), "type", typeName)
	return id, m, nil
}

// createAndExecute implements Context.CreateAndExecute: it creates the
// machine and drives it, through the same goroutine+channel handoff the
// scheduler uses for ordinary steps, directly from the caller's
// goroutine until it reaches quiescence.
func (rt *Runtime) createAndExecute(caller *Machine, typeName, name string, initEvent Event, opGroup uuid.UUID) (MachineId, error) {
	id, m, err := rt.newMachineInstance(typeName, name, initEvent, opGroup)
	if err != nil {
		return MachineId{}, err
	}
	if err := rt.runAwaited(caller, m, command{kind: cmdActivate}); err != nil {
		return id, err
	}
	return id, nil
}

// sendAndExecute implements Context.SendAndExecute: event is delivered
// and target is driven to quiescence inline before returning.
func (rt *Runtime) sendAndExecute(caller *Machine, target MachineId, event Event, opGroup uuid.UUID) (bool, error) {
	m, ok := rt.machines[target]
	if !ok || m.isHalted {
		return false, nil
	}
	env := EventEnvelope{Event: event, SenderID: caller.id, OperationGroupID: opGroup}
	if err := rt.runAwaited(caller, m, command{kind: cmdDeliver, env: env}); err != nil {
		return false, err
	}
	return true, nil
}

// runAwaited drives target through cmd on the calling goroutine, never
// returning control to the scheduler's own run-queue until target
// quiesces, halts, or the run fails. A target that blocks in Receive
// while being awaited can never be unblocked this way (nothing else is
// running to deliver the matching event), so that case is reported as
// ErrAwaitDeadlock, as is re-entering a machine already on the await
// stack, which starts with the caller whose handler began the chain
// (spec §4.2's "nested awaits allowed with cycle detection").
func (rt *Runtime) runAwaited(caller, target *Machine, cmd command) error {
	if len(rt.awaitStack) == 0 {
		rt.awaitStack = append(rt.awaitStack, caller.id)
		defer func() { rt.awaitStack = nil }()
	}
	for _, seen := range rt.awaitStack {
		if seen.Equal(target.id) {
			return fmt.Errorf("%s: %w: cycle in synchronous create/send-and-execute chain", target.id, ErrAwaitDeadlock)
		}
	}
	rt.awaitStack = append(rt.awaitStack, target.id)
	defer func() { rt.awaitStack = rt.awaitStack[:len(rt.awaitStack)-1] }()

	target.ensureStarted()
	target.cmdCh <- cmd
	out := <-target.doneCh
	switch out.kind {
	case outcomeError:
		return out.err
	case outcomeBlocked:
		return fmt.Errorf("%s: %w: blocked in receive during a synchronous await", target.id, ErrAwaitDeadlock)
	case outcomeHalted:
		target.isHalted = true
	}
	if cmd.kind == cmdActivate {
		target.activated = true
	}
	return nil
}

// deliver enqueues event on target's inbox, enforcing AssertAtMostN
// (spec invariant around bounded mailbox growth) and dropping the event
// silently if target has already halted (spec §4.2).
func (rt *Runtime) deliver(sender, target MachineId, event Event, opts SendOptions) error {
	m, ok := rt.machines[target]
	if !ok {
		return fmt.Errorf("%s: %w: send to unknown machine %s", sender, ErrInternal, target)
	}
	if m.isHalted {
		if opts.MustHandle {
			return fmt.Errorf("%s: %w: must-handle event %s dropped, target already halted", target, ErrUnhandledEvent, EventTypeOf(event))
		}
		return nil
	}
	if opts.AssertAtMostN != nil {
		count := uint32(m.inbox.CountType(EventTypeOf(event))) + 1
		if count > *opts.AssertAtMostN {
			return fmt.Errorf("%s: %w: more than %d undelivered %s events queued for %s",
				sender, ErrAssertAtMostNViolated, *opts.AssertAtMostN, EventTypeOf(event), target)
		}
	}
	rt.sendSeq++
	m.inbox.Enqueue(EventEnvelope{
		Event:            event,
		SenderID:         sender,
		OperationGroupID: opts.OperationGroupID,
		SendSeq:          rt.sendSeq,
	})
	rt.emitStep(trace.StepSend, target, m.top(), fmt.Sprintf("%s -> %s: %s", sender, target, EventTypeOf(event)))
	return nil
}

// notifyMonitors synchronously fans event out to every registered
// monitor, in registration order, recording any failure a monitor raises
// (spec §5).
func (rt *Runtime) notifyMonitors(event Event) {
	for _, mon := range rt.monitors {
		if err := mon.observe(event); err != nil {
			rt.recordFailure(err)
		}
	}
}

func (rt *Runtime) nextBool(max uint32) bool {
	v := rt.strategy.NextBool(max)
	if rt.recorder != nil {
		rt.recorder.Schedule.RecordBool(v)
	}
	return v
}

func (rt *Runtime) nextInt(max uint32) uint32 {
	v := rt.strategy.NextInt(max)
	if rt.recorder != nil {
		rt.recorder.Schedule.RecordInt(v)
	}
	return v
}

// emitStep appends one entry to the bug trace (if a recorder is
// attached) and fans it out to every registered StepObserver.
func (rt *Runtime) emitStep(kind trace.BugStepKind, machineID MachineId, state StateName, detail string) {
	if rt.recorder == nil && len(rt.stepObservers) == 0 {
		return
	}
	var step trace.BugTraceStep
	if rt.recorder != nil {
		rt.recorder.Step(rt.ctx, kind, machineID.String(), string(state), detail)
		step = rt.recorder.Bug.Steps[len(rt.recorder.Bug.Steps)-1]
	} else {
		step = trace.BugTraceStep{Kind: kind, MachineID: machineID.String(), StateName: string(state), Detail: detail}
	}
	for _, obs := range rt.stepObservers {
		obs(step)
	}
}

func (rt *Runtime) recordFailure(err error) {
	rt.logger.Error("test iteration failed", "error", err)
	rt.failures = append(rt.failures, err)
	for _, h := range rt.failureHandlers {
		h(err)
	}
}

// hotMonitors returns every monitor currently sitting in a Hot state,
// used by the scheduler to detect liveness violations at quiescence.
func (rt *Runtime) hotMonitors() []*Monitor {
	var hot []*Monitor
	for _, mon := range rt.monitors {
		if mon.isInHotState() {
			hot = append(hot, mon)
		}
	}
	return hot
}

// resetForIteration discards every machine and monitor instance so the
// next iteration starts from a clean slate, but keeps the registered
// MachineTypes and the strategy (whose own PrepareNextIteration is
// called separately by Scheduler).
func (rt *Runtime) resetForIteration() {
	rt.machines = make(map[MachineId]*Machine)
	rt.order = nil
	rt.monitors = nil
	rt.seq = 0
	rt.sendSeq = 0
	rt.awaitStack = nil
	rt.failures = nil
}
