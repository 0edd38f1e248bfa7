package psharp

// Inbox is a machine's event queue: enqueue, dequeue-with-filter,
// deferral, and blocking-receive support (spec §3, §4.1). It is only ever
// touched from within a single machine's step, so it needs no locking of
// its own; the runtime buffers concurrent enqueues from peers and applies
// them atomically at the end of the sender's step (spec §5).
type Inbox struct {
	entries []EventEnvelope
}

// NewInbox returns an empty inbox.
func NewInbox() *Inbox { return &Inbox{} }

// Enqueue appends an envelope to the tail of the queue, preserving
// per-sender FIFO order (spec §4.1 "Send semantics").
func (ib *Inbox) Enqueue(e EventEnvelope) {
	ib.entries = append(ib.entries, e)
}

// Len returns the number of undequeued envelopes.
func (ib *Inbox) Len() int { return len(ib.entries) }

// CountType returns the number of undequeued envelopes of the given
// event type, used to enforce SendOptions.AssertAtMostN.
func (ib *Inbox) CountType(t EventType) int {
	n := 0
	for _, e := range ib.entries {
		if EventTypeOf(e.Event) == t {
			n++
		}
	}
	return n
}

// HasDequeuable reports, without mutating the inbox, whether a call to
// Dequeue would currently return an event: scanning left to right,
// skipping deferred types and treating ignored types as if already
// discarded.
func (ib *Inbox) HasDequeuable(isIgnored, isDeferred func(EventType) bool) bool {
	for _, e := range ib.entries {
		t := EventTypeOf(e.Event)
		if isIgnored(t) {
			continue
		}
		if isDeferred(t) {
			continue
		}
		return true
	}
	return false
}

// Dequeue removes and returns the first envelope that is neither ignored
// nor deferred in the current state, discarding any ignored envelopes it
// passes over along the way (spec invariant 4: "ignored events are
// discarded on dequeue"). Deferred envelopes are left untouched at their
// original position.
func (ib *Inbox) Dequeue(isIgnored, isDeferred func(EventType) bool) (EventEnvelope, bool) {
	for i := 0; i < len(ib.entries); i++ {
		t := EventTypeOf(ib.entries[i].Event)
		if isIgnored(t) {
			ib.entries = append(ib.entries[:i], ib.entries[i+1:]...)
			i--
			continue
		}
		if isDeferred(t) {
			continue
		}
		e := ib.entries[i]
		ib.entries = append(ib.entries[:i], ib.entries[i+1:]...)
		return e, true
	}
	return EventEnvelope{}, false
}

// HasWaitingMatch reports, without mutating the inbox, whether any
// undequeued envelope matches the given receive filter.
func (ib *Inbox) HasWaitingMatch(waiting map[EventType]bool) bool {
	for _, e := range ib.entries {
		if waiting[EventTypeOf(e.Event)] {
			return true
		}
	}
	return false
}

// DequeueWaiting implements receive's dequeue rule (spec §4.1 "Receive
// semantics"): only envelopes whose type is in waiting may be consumed;
// every other envelope is left in the inbox in arrival order, regardless
// of the current state's deferred/ignored sets.
func (ib *Inbox) DequeueWaiting(waiting map[EventType]bool) (EventEnvelope, bool) {
	for i, e := range ib.entries {
		if waiting[EventTypeOf(e.Event)] {
			ib.entries = append(ib.entries[:i], ib.entries[i+1:]...)
			return e, true
		}
	}
	return EventEnvelope{}, false
}

// Snapshot returns a defensive copy of the undequeued envelopes.
func (ib *Inbox) Snapshot() []EventEnvelope {
	out := make([]EventEnvelope, len(ib.entries))
	copy(out, ib.entries)
	return out
}
