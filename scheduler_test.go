package psharp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/strategy"
	"github.com/psharp-go/psharp/trace"
)

type pingEvent struct{}
type pongEvent struct{}
type startEvent struct{ partner MachineId }

func (pingEvent) EventType() EventType  { return "Ping" }
func (pongEvent) EventType() EventType  { return "Pong" }
func (startEvent) EventType() EventType { return "Start" }

// buildPingPongType returns a machine type that, on Start, remembers its
// partner, sends it a Ping, and keeps bouncing Ping/Pong back and forth,
// halting after three round trips. It is used by several tests below to
// exercise Send/Goto/Halt together.
func buildPingPongType(t *testing.T, name string) *MachineType {
	t.Helper()

	type counterKey struct{}
	counters := map[MachineId]int{}
	partners := map[MachineId]MachineId{}

	idle, err := NewState("Idle").Start().
		OnEvent("Start", func(ctx *Context, e Event) error {
			partners[ctx.Self()] = e.(startEvent).partner
			return ctx.Goto("Bouncing")
		}).
		Build()
	require.NoError(t, err)

	bouncing, err := NewState("Bouncing").
		OnEntryFunc(func(ctx *Context, e Event) error {
			ctx.Send(partners[ctx.Self()], pingEvent{})
			return nil
		}).
		OnEvent("Ping", func(ctx *Context, e Event) error {
			ctx.Send(partners[ctx.Self()], pongEvent{})
			return nil
		}).
		OnEvent("Pong", func(ctx *Context, e Event) error {
			counters[ctx.Self()]++
			if counters[ctx.Self()] >= 3 {
				ctx.Halt()
				return nil
			}
			ctx.Send(partners[ctx.Self()], pingEvent{})
			return nil
		}).
		Build()
	require.NoError(t, err)

	mt, err := NewMachineType(name).AddState(idle, nil).AddState(bouncing, nil).Build()
	require.NoError(t, err)
	return mt
}

func TestSchedulerRunsPingPongToQuiescence(t *testing.T) {
	rt := NewRuntime(WithStrategy(strategy.NewRandom(1, 0)))
	mt := buildPingPongType(t, "Bouncer")
	require.NoError(t, rt.RegisterMachineType(mt))

	sched := NewScheduler(rt, WithMaxSteps(1000))
	result, err := sched.RunOne(func(rt *Runtime) error {
		a, err := rt.CreateMachine("Bouncer", "a", nil)
		if err != nil {
			return err
		}
		b, err := rt.CreateMachine("Bouncer", "b", nil)
		if err != nil {
			return err
		}
		if err := rt.SendEvent(a, startEvent{partner: b}); err != nil {
			return err
		}
		return rt.SendEvent(b, startEvent{partner: a})
	})
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.NotEmpty(t, result.BugTrace.Steps)
}

func TestSchedulerIsDeterministicForTheSameSeed(t *testing.T) {
	run := func() []strategy.OpID {
		rt := NewRuntime(WithStrategy(strategy.NewRandom(123, 0)))
		mt := buildPingPongType(t, "Bouncer")
		require.NoError(t, rt.RegisterMachineType(mt))
		sched := NewScheduler(rt, WithMaxSteps(1000))
		result, err := sched.RunOne(func(rt *Runtime) error {
			a, err := rt.CreateMachine("Bouncer", "a", nil)
			if err != nil {
				return err
			}
			b, err := rt.CreateMachine("Bouncer", "b", nil)
			if err != nil {
				return err
			}
			if err := rt.SendEvent(a, startEvent{partner: b}); err != nil {
				return err
			}
			return rt.SendEvent(b, startEvent{partner: a})
		})
		require.NoError(t, err)
		var ops []strategy.OpID
		for _, p := range result.ScheduleTrace.Points {
			if p.Kind == trace.SchedulingStep {
				ops = append(ops, p.OpID)
			}
		}
		return ops
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}
