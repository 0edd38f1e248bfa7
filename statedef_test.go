package psharp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineTypeBuilderRequiresStartState(t *testing.T) {
	s, err := NewState("A").Build()
	require.NoError(t, err)

	_, err = NewMachineType("NoStart").AddState(s, nil).Build()
	assert.ErrorIs(t, err, ErrStartStateMissing)
}

func TestMachineTypeBuilderRejectsTwoStartStates(t *testing.T) {
	a, _ := NewState("A").Start().Build()
	b, _ := NewState("B").Start().Build()

	_, err := NewMachineType("TwoStarts").AddState(a, nil).AddState(b, nil).Build()
	assert.ErrorIs(t, err, ErrStartStateAmbiguous)
}

func TestMachineTypeBuilderRejectsUnknownGotoTarget(t *testing.T) {
	a, err := NewState("A").Start().GotoOnEvent("Go", "Nowhere").Build()
	require.NoError(t, err)
	_, err = NewMachineType("BadGoto").AddState(a, nil).Build()
	assert.ErrorIs(t, err, ErrUnknownGotoTarget)
}

func TestMachineTypeBuilderRejectsDuplicateHandlerForSameEvent(t *testing.T) {
	builder := NewState("A").
		OnEvent("E", func(ctx *Context, e Event) error { return nil }).
		OnEvent("E", func(ctx *Context, e Event) error { return nil })
	_, err := builder.Build()
	assert.ErrorIs(t, err, ErrDuplicateEventHandler)
}

// TestFlattenChildOverridesParent exercises spec §3's inheritance rule:
// a child state's handler for an event type overrides the parent's, but
// the parent's handlers for every other event type are still inherited.
func TestFlattenChildOverridesParent(t *testing.T) {
	parentCalled := false
	childCalled := false

	parent, _ := NewState("Parent").
		OnEvent("Shared", func(ctx *Context, e Event) error { parentCalled = true; return nil }).
		OnEvent("OnlyParent", func(ctx *Context, e Event) error { return nil }).
		Build()

	child, _ := NewState("Child").
		Start().
		Parent("Parent").
		OnEvent("Shared", func(ctx *Context, e Event) error { childCalled = true; return nil }).
		Build()

	mt, err := NewMachineType("Inherit").AddState(parent, nil).AddState(child, nil).Build()
	require.NoError(t, err)

	flat := mt.Flat("Child")
	require.Contains(t, flat.handlers, EventType("Shared"))
	require.Contains(t, flat.handlers, EventType("OnlyParent"))

	err = flat.handlers["Shared"].action(nil, testEvent{"Shared"})
	require.NoError(t, err)
	assert.True(t, childCalled)
	assert.False(t, parentCalled, "child's handler must override, not run alongside, the parent's")
}

func TestFlattenDeferOverridesParentHandler(t *testing.T) {
	parent, _ := NewState("Parent").
		OnEvent("E", func(ctx *Context, e Event) error { return nil }).
		Build()
	child, _ := NewState("Child").Start().Parent("Parent").Defer("E").Build()

	mt, err := NewMachineType("DeferOverride").AddState(parent, nil).AddState(child, nil).Build()
	require.NoError(t, err)

	flat := mt.Flat("Child")
	assert.True(t, flat.isDeferred("E"))
	_, hasAction := flat.handlers["E"]
	assert.False(t, hasAction)
}
