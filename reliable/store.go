// Package reliable implements a transactional overlay over machine state:
// a machine's state stack, inbox, and pending effects are only made
// durable, and peer-visible, once the step that produced them commits as
// a whole. It follows the same discipline as a transactional outbox —
// nothing is published until the surrounding transaction commits — here
// applied to flushing effects rather than publishing messages.
package reliable

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTransientStorage is returned by a StateStore operation that failed
// in a way worth retrying (a lock conflict, a transient backend error).
// The overlay retries the whole step up to its configured budget before
// giving up with ErrRetryBudgetSpent.
var ErrTransientStorage = errors.New("reliable: transient storage failure")

// ErrRetryBudgetSpent is returned once a step has exhausted its retry
// budget against ErrTransientStorage.
var ErrRetryBudgetSpent = errors.New("reliable: retry budget exhausted")

// ErrNoActiveTx is returned by a Tx method called outside Begin/Commit.
var ErrNoActiveTx = errors.New("reliable: no active transaction")

// PersistentStack is the durable analogue of a machine's state stack:
// the whole stack is read with Snapshot and written with Replace, and a
// Replace made inside a transaction is undone by simply never committing
// it.
type PersistentStack interface {
	Snapshot(ctx context.Context, machineID string) ([]string, error)
	Replace(ctx context.Context, machineID string, stack []string) error
}

// PersistentInbox is the durable analogue of Inbox: entries are
// identified by their SendSeq so Ack is idempotent across retries.
type PersistentInbox interface {
	Append(ctx context.Context, machineID string, entrySeq uint64, payload []byte) error
	Pending(ctx context.Context, machineID string) ([]PersistedEnvelope, error)
	Ack(ctx context.Context, machineID string, entrySeq uint64) error
}

// PersistedEnvelope is the durable wire form of an EventEnvelope; psharp
// never interprets Payload, only round-trips it.
type PersistedEnvelope struct {
	SendSeq uint64
	Payload []byte
}

// Tx scopes a sequence of StateStore mutations so they become visible
// together or not at all.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// StateStore is the full backing a reliable machine needs: an ordered
// persistent map (stack), a persistent FIFO (inbox), and transactions
// binding the two together (spec §4.6's "three capabilities").
type StateStore interface {
	PersistentStack
	PersistentInbox
	Begin(ctx context.Context, machineID string) (Tx, error)
}

// MemoryStateStore is the required in-memory StateStore implementation:
// every durability guarantee it makes is process-lifetime only, which is
// sufficient for the scheduler's own single-process test iterations.
type MemoryStateStore struct {
	mu     sync.Mutex
	stacks map[string][]string
	inbox  map[string][]PersistedEnvelope
	tx     map[string]*memTx
}

// NewMemoryStateStore returns an empty MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		stacks: make(map[string][]string),
		inbox:  make(map[string][]PersistedEnvelope),
		tx:     make(map[string]*memTx),
	}
}

func (s *MemoryStateStore) Snapshot(_ context.Context, machineID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.stacks[machineID]))
	copy(out, s.stacks[machineID])
	return out, nil
}

func (s *MemoryStateStore) Replace(_ context.Context, machineID string, stack []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, active := s.tx[machineID]; active {
		tx.stackAfter = append([]string(nil), stack...)
		tx.stackWritten = true
		return nil
	}
	s.stacks[machineID] = append([]string(nil), stack...)
	return nil
}

func (s *MemoryStateStore) Append(_ context.Context, machineID string, seq uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := PersistedEnvelope{SendSeq: seq, Payload: payload}
	if tx, active := s.tx[machineID]; active {
		tx.appended = append(tx.appended, entry)
		return nil
	}
	s.inbox[machineID] = append(s.inbox[machineID], entry)
	return nil
}

func (s *MemoryStateStore) Pending(_ context.Context, machineID string) ([]PersistedEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PersistedEnvelope, len(s.inbox[machineID]))
	copy(out, s.inbox[machineID])
	return out, nil
}

func (s *MemoryStateStore) Ack(_ context.Context, machineID string, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, active := s.tx[machineID]; active {
		tx.acked = append(tx.acked, seq)
		return nil
	}
	s.ackLocked(machineID, seq)
	return nil
}

func (s *MemoryStateStore) ackLocked(machineID string, seq uint64) {
	entries := s.inbox[machineID]
	for i, e := range entries {
		if e.SendSeq == seq {
			s.inbox[machineID] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Begin opens a transaction scoping every Replace/Append/Ack call made
// for machineID until Commit or Rollback.
func (s *MemoryStateStore) Begin(_ context.Context, machineID string) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, active := s.tx[machineID]; active {
		return nil, fmt.Errorf("reliable: transaction already open for %s", machineID)
	}
	tx := &memTx{store: s, machineID: machineID}
	s.tx[machineID] = tx
	return tx, nil
}

type memTx struct {
	store        *MemoryStateStore
	machineID    string
	stackWritten bool
	stackAfter   []string
	appended     []PersistedEnvelope
	acked        []uint64
}

func (tx *memTx) Commit(_ context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.store.tx[tx.machineID] != tx {
		return ErrNoActiveTx
	}
	if tx.stackWritten {
		tx.store.stacks[tx.machineID] = tx.stackAfter
	}
	tx.store.inbox[tx.machineID] = append(tx.store.inbox[tx.machineID], tx.appended...)
	for _, seq := range tx.acked {
		tx.store.ackLocked(tx.machineID, seq)
	}
	delete(tx.store.tx, tx.machineID)
	return nil
}

func (tx *memTx) Rollback(_ context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.store.tx[tx.machineID] != tx {
		return ErrNoActiveTx
	}
	delete(tx.store.tx, tx.machineID)
	return nil
}
