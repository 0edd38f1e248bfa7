package psharp

import "fmt"

// StateName identifies a state within a MachineType's state tree.
type StateName string

// ActionFunc is a do-action handler: it runs to completion without the
// runtime changing the state stack on its behalf. It may still call
// Context.Goto/Push/Pop/Raise explicitly to request a transition, which is
// buffered and applied after the function returns (spec §4.1 step 5).
type ActionFunc func(ctx *Context, event Event) error

// EntryFunc runs when a state is pushed onto the stack (initial entry or
// via push/goto).
type EntryFunc func(ctx *Context, event Event) error

// ExitFunc runs when a state is popped off the stack (via pop/goto),
// before the pop takes effect.
type ExitFunc func(ctx *Context) error

// handlerKind distinguishes the three mutually exclusive static reactions
// a state's handler map may declare for an event type.
type handlerKind int

const (
	handlerDoAction handlerKind = iota
	handlerGoto
	handlerPush
)

type eventHandler struct {
	kind   handlerKind
	action ActionFunc
	target StateName
}

// StateDef is the per-state metadata described in spec §3: entry/exit
// handlers, the event-to-action/goto/push maps, the deferred and ignored
// sets, and whether this is the machine's start state.
type StateDef struct {
	Name      StateName
	Parent    StateName
	hasParent bool
	IsStart   bool
	IsHot     bool // monitor-only: liveness "hot" designation
	IsCold    bool // monitor-only: liveness "cold" designation

	OnEntry EntryFunc
	OnExit  ExitFunc

	handlers map[EventType]eventHandler
	deferred map[EventType]bool
	ignored  map[EventType]bool
}

// StateBuilder constructs a StateDef with a fluent API, replacing the
// decorator/attribute scanning a reflective host would use (spec §9).
type StateBuilder struct {
	def *StateDef
	err error
}

// NewState begins building a state definition named name.
func NewState(name StateName) *StateBuilder {
	return &StateBuilder{def: &StateDef{
		Name:     name,
		handlers: make(map[EventType]eventHandler),
		deferred: make(map[EventType]bool),
		ignored:  make(map[EventType]bool),
	}}
}

func (b *StateBuilder) fail(err error) *StateBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Parent declares p as this state's parent in the hierarchy: p's handler
// map, deferred set, and ignored set are inherited unless overridden here.
func (b *StateBuilder) Parent(p StateName) *StateBuilder {
	b.def.Parent = p
	b.def.hasParent = true
	return b
}

// Start marks this state as the machine's initial state. Exactly one
// state per MachineType may be marked Start.
func (b *StateBuilder) Start() *StateBuilder {
	b.def.IsStart = true
	return b
}

// Hot marks this state as a liveness-monitor hot state.
func (b *StateBuilder) Hot() *StateBuilder {
	b.def.IsHot = true
	return b
}

// Cold marks this state as a liveness-monitor cold state.
func (b *StateBuilder) Cold() *StateBuilder {
	b.def.IsCold = true
	return b
}

// OnEntryFunc sets the entry handler.
func (b *StateBuilder) OnEntryFunc(f EntryFunc) *StateBuilder {
	b.def.OnEntry = f
	return b
}

// OnExitFunc sets the exit handler.
func (b *StateBuilder) OnExitFunc(f ExitFunc) *StateBuilder {
	b.def.OnExit = f
	return b
}

func (b *StateBuilder) addHandler(t EventType, h eventHandler) *StateBuilder {
	if _, exists := b.def.handlers[t]; exists {
		return b.fail(fmt.Errorf("%w: state=%s event=%s", ErrDuplicateEventHandler, b.def.Name, t))
	}
	b.def.handlers[t] = h
	return b
}

// OnEvent registers a do-action handler for the given event type.
func (b *StateBuilder) OnEvent(t EventType, action ActionFunc) *StateBuilder {
	return b.addHandler(t, eventHandler{kind: handlerDoAction, action: action})
}

// GotoOnEvent registers a static goto-state reaction: on t, pop the
// current frame and push target, with no user action function.
func (b *StateBuilder) GotoOnEvent(t EventType, target StateName) *StateBuilder {
	return b.addHandler(t, eventHandler{kind: handlerGoto, target: target})
}

// PushOnEvent registers a static push-state reaction: on t, push target
// without popping the current frame.
func (b *StateBuilder) PushOnEvent(t EventType, target StateName) *StateBuilder {
	return b.addHandler(t, eventHandler{kind: handlerPush, target: target})
}

// Defer marks event types as deferred in this state: they remain at their
// inbox position, undequeued, until a state that handles or ignores them
// is reached.
func (b *StateBuilder) Defer(types ...EventType) *StateBuilder {
	for _, t := range types {
		b.def.deferred[t] = true
	}
	return b
}

// Ignore marks event types as ignored in this state: they are discarded
// on dequeue without running any handler.
func (b *StateBuilder) Ignore(types ...EventType) *StateBuilder {
	for _, t := range types {
		b.def.ignored[t] = true
	}
	return b
}

// Build finalizes the StateDef, or returns the first registration error
// encountered.
func (b *StateBuilder) Build() (*StateDef, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.def, nil
}

// flatState is the memoized, fully-inherited view of a state used at
// dispatch time: one map lookup instead of a parent-chain walk per event.
type flatState struct {
	def      *StateDef
	handlers map[EventType]eventHandler
	deferred map[EventType]bool
	ignored  map[EventType]bool
}

func (f *flatState) isIgnored(t EventType) bool  { return f.ignored[t] }
func (f *flatState) isDeferred(t EventType) bool { return f.deferred[t] }

// MachineType is the reflection-free metadata for one machine (or monitor)
// class: its state tree, handler maps, and the start state. It is built
// once with NewMachineType and is safe to share across any number of
// Machine instances.
type MachineType struct {
	Name       string
	states     map[StateName]*StateDef
	startState StateName
	flattened  map[StateName]*flatState
}

// MachineTypeBuilder assembles a MachineType from StateDefs, validating
// the whole graph at Build() time (spec §7 ConfigurationError).
type MachineTypeBuilder struct {
	mt  *MachineType
	err error
}

// NewMachineType begins building a machine type named name.
func NewMachineType(name string) *MachineTypeBuilder {
	return &MachineTypeBuilder{mt: &MachineType{
		Name:   name,
		states: make(map[StateName]*StateDef),
	}}
}

func (b *MachineTypeBuilder) fail(err error) *MachineTypeBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// AddState registers one state definition, typically the result of a
// StateBuilder.Build() call.
func (b *MachineTypeBuilder) AddState(def *StateDef, err error) *MachineTypeBuilder {
	if err != nil {
		return b.fail(err)
	}
	if _, exists := b.mt.states[def.Name]; exists {
		return b.fail(fmt.Errorf("%w: %s", ErrDuplicateState, def.Name))
	}
	b.mt.states[def.Name] = def
	if def.IsStart {
		if b.mt.startState != "" {
			return b.fail(fmt.Errorf("%w: %s and %s", ErrStartStateAmbiguous, b.mt.startState, def.Name))
		}
		b.mt.startState = def.Name
	}
	return b
}

// Build validates the state graph and returns the finished MachineType:
// a start state must exist, parents must resolve, and goto/push targets
// must name registered states.
func (b *MachineTypeBuilder) Build() (*MachineType, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.mt.startState == "" {
		return nil, fmt.Errorf("%w: machine type %s", ErrStartStateMissing, b.mt.Name)
	}
	for _, def := range b.mt.states {
		if def.hasParent {
			if _, ok := b.mt.states[def.Parent]; !ok {
				return nil, fmt.Errorf("%w: state=%s parent=%s", ErrUnknownParentState, def.Name, def.Parent)
			}
		}
		for _, h := range def.handlers {
			switch h.kind {
			case handlerGoto:
				if _, ok := b.mt.states[h.target]; !ok {
					return nil, fmt.Errorf("%w: state=%s target=%s", ErrUnknownGotoTarget, def.Name, h.target)
				}
			case handlerPush:
				if _, ok := b.mt.states[h.target]; !ok {
					return nil, fmt.Errorf("%w: state=%s target=%s", ErrUnknownPushTarget, def.Name, h.target)
				}
			}
		}
	}
	b.mt.flattened = make(map[StateName]*flatState, len(b.mt.states))
	for name := range b.mt.states {
		b.mt.flattened[name] = b.mt.flatten(name)
	}
	return b.mt, nil
}

// flatten walks the parent chain of name from the root ancestor down to
// name itself, merging handler/deferred/ignored maps so that a child's
// entry for a given event type overrides its parent's (spec §3: "child
// overrides parent on conflicting keys; parent fills in otherwise").
func (mt *MachineType) flatten(name StateName) *flatState {
	var chain []*StateDef
	for cur := name; ; {
		def := mt.states[cur]
		chain = append(chain, def)
		if !def.hasParent {
			break
		}
		cur = def.Parent
	}
	// chain is child-to-root; walk it root-to-child so children override.
	fs := &flatState{
		def:      mt.states[name],
		handlers: make(map[EventType]eventHandler),
		deferred: make(map[EventType]bool),
		ignored:  make(map[EventType]bool),
	}
	for i := len(chain) - 1; i >= 0; i-- {
		def := chain[i]
		for t, h := range def.handlers {
			delete(fs.deferred, t)
			delete(fs.ignored, t)
			fs.handlers[t] = h
		}
		for t := range def.deferred {
			delete(fs.handlers, t)
			fs.ignored[t] = false
			fs.deferred[t] = true
		}
		for t := range def.ignored {
			delete(fs.handlers, t)
			fs.deferred[t] = false
			fs.ignored[t] = true
		}
	}
	return fs
}

// Flat returns the memoized, fully-inherited handler view for name. It
// panics if name was never registered with this MachineType; callers
// outside this package only ever see names they themselves registered.
func (mt *MachineType) Flat(name StateName) *flatState {
	fs, ok := mt.flattened[name]
	if !ok {
		panic(fmt.Sprintf("psharp: unknown state %q for machine type %q", name, mt.Name))
	}
	return fs
}

// StartState returns the machine type's initial state.
func (mt *MachineType) StartState() StateName { return mt.startState }
