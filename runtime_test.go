package psharp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/strategy"
)

func mustBuildSingleStateType(t *testing.T, name string) *MachineType {
	t.Helper()
	a, err := NewState("A").Start().Build()
	require.NoError(t, err)
	mt, err := NewMachineType(name).AddState(a, nil).Build()
	require.NoError(t, err)
	return mt
}

func TestRuntimeDeliverDropsEventSilentlyForHaltedTarget(t *testing.T) {
	rt := NewRuntime()
	require.NoError(t, rt.RegisterMachineType(mustBuildSingleStateType(t, "T")))
	id, m, err := rt.newMachineInstance("T", "m", nil, uuid.New())
	require.NoError(t, err)
	m.isHalted = true

	err = rt.deliver(MachineId{}, id, testEvent{"X"}, SendOptions{})
	assert.NoError(t, err)
}

func TestRuntimeDeliverMustHandleErrorsOnHaltedTarget(t *testing.T) {
	rt := NewRuntime()
	require.NoError(t, rt.RegisterMachineType(mustBuildSingleStateType(t, "T")))
	id, m, err := rt.newMachineInstance("T", "m", nil, uuid.New())
	require.NoError(t, err)
	m.isHalted = true

	err = rt.deliver(MachineId{}, id, testEvent{"X"}, SendOptions{MustHandle: true})
	assert.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestRuntimeDeliverEnforcesAssertAtMostN(t *testing.T) {
	rt := NewRuntime()
	require.NoError(t, rt.RegisterMachineType(mustBuildSingleStateType(t, "T")))
	id, _, err := rt.newMachineInstance("T", "m", nil, uuid.New())
	require.NoError(t, err)

	limit := uint32(1)
	require.NoError(t, rt.deliver(MachineId{}, id, testEvent{"X"}, SendOptions{AssertAtMostN: &limit}))

	err = rt.deliver(MachineId{}, id, testEvent{"X"}, SendOptions{AssertAtMostN: &limit})
	assert.ErrorIs(t, err, ErrAssertAtMostNViolated)
}

func TestRuntimeResetForIterationClearsPerIterationState(t *testing.T) {
	rt := NewRuntime()
	require.NoError(t, rt.RegisterMachineType(mustBuildSingleStateType(t, "T")))
	_, _, err := rt.newMachineInstance("T", "m", nil, uuid.New())
	require.NoError(t, err)
	rt.failures = append(rt.failures, ErrInternal)

	rt.resetForIteration()

	assert.Empty(t, rt.machines)
	assert.Empty(t, rt.order)
	assert.Empty(t, rt.failures)
	assert.Zero(t, rt.seq)
}

// TestAwaitCycleIsDetectedWithoutDeadlocking exercises runAwaited's cycle
// guard: a machine synchronously awaited via CreateAndExecute that, from
// within its own entry handler, synchronously awaits itself again via
// SendAndExecute must get ErrAwaitDeadlock back rather than hang the
// run (spec §4.2's nested-await cycle detection).
func TestAwaitCycleIsDetectedWithoutDeadlocking(t *testing.T) {
	cyclic, err := NewState("A").Start().
		OnEntryFunc(func(ctx *Context, e Event) error {
			_, err := ctx.SendAndExecute(ctx.Self(), testEvent{"Self"})
			return err
		}).
		Build()
	require.NoError(t, err)
	cyclicType, err := NewMachineType("Cyclic").AddState(cyclic, nil).Build()
	require.NoError(t, err)

	outer, err := NewState("A").Start().
		OnEvent("Go", func(ctx *Context, e Event) error {
			_, err := ctx.CreateAndExecute("Cyclic", "c", nil)
			return err
		}).
		Build()
	require.NoError(t, err)
	outerType, err := NewMachineType("Outer").AddState(outer, nil).Build()
	require.NoError(t, err)

	rt := NewRuntime(WithStrategy(strategy.NewRandom(1, 0)))
	require.NoError(t, rt.RegisterMachineType(cyclicType))
	require.NoError(t, rt.RegisterMachineType(outerType))

	sched := NewScheduler(rt, WithMaxSteps(1000))
	result, err := sched.RunOne(func(rt *Runtime) error {
		id, err := rt.CreateMachine("Outer", "o", nil)
		if err != nil {
			return err
		}
		return rt.SendEvent(id, goEvent{})
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Failures)
	assert.ErrorIs(t, result.Failures[0], ErrAwaitDeadlock)
}
