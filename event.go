package psharp

import "github.com/google/uuid"

// EventType identifies the kind of an Event for handler resolution. It is
// the key used to look up actions, goto-targets, push-targets, and the
// deferred/ignored sets of a state.
type EventType string

// Event is the immutable payload carried between machines. Application
// code defines concrete event types (plain structs) and implements
// EventType() on them; the runtime never inspects payload contents beyond
// that method and never compares events by payload.
type Event interface {
	EventType() EventType
}

// SendOptions carries the optional per-send metadata described in
// spec §4.1.
type SendOptions struct {
	// OperationGroupID overrides the sender's current operation group for
	// this send. Zero value means "inherit from the sender".
	OperationGroupID uuid.UUID

	// MustHandle makes it fatal for this event to be silently dropped
	// because the target machine is halted.
	MustHandle bool

	// AssertAtMostN, when non-nil, requires the target's inbox to contain
	// at most N undequeued events of this type, including this send.
	AssertAtMostN *uint32

	// Priority is an advisory ordering hint for engines that support
	// priority delivery; the core scheduler does not reorder on it.
	Priority int
}

// EventEnvelope pairs an Event with the delivery metadata the runtime
// needs to preserve FIFO, correlate operation groups, and report traces.
type EventEnvelope struct {
	Event            Event
	SenderID         MachineId
	OperationGroupID uuid.UUID
	SendSeq          uint64
}

// EventTypeOf is a convenience for nil-safe EventType extraction, used by
// the inbox and handler-resolution code paths.
func EventTypeOf(e Event) EventType {
	if e == nil {
		return ""
	}
	return e.EventType()
}
