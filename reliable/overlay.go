package reliable

import (
	"context"
	"errors"
)

// StepFunc runs one machine step against a transaction scope: it may
// call Tx-scoped StateStore methods internally, and returns the error a
// normal step would (including ErrTransientStorage, which the Runner
// retries).
type StepFunc func(ctx context.Context, tx Tx) error

// Runner drives StepFunc calls with the commit/retry discipline spec
// §4.6 requires: a step's stack, inbox, and buffered effects become
// durable and peer-visible only when the step commits as a whole; a
// step that fails with a transient error is retried, from scratch,
// against a fresh transaction, up to MaxRetries times.
type Runner struct {
	Store      StateStore
	MaxRetries int
}

// NewRunner returns a Runner backed by store with the given retry
// budget (0 means "try exactly once, no retries").
func NewRunner(store StateStore, maxRetries int) *Runner {
	return &Runner{Store: store, MaxRetries: maxRetries}
}

// RunStep executes fn against machineID's transaction and commits it,
// retrying on ErrTransientStorage from either fn or the commit until
// MaxRetries is exhausted (ErrRetryBudgetSpent), the step commits, or it
// fails for a non-transient reason.
func (r *Runner) RunStep(ctx context.Context, machineID string, fn StepFunc) error {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		tx, err := r.Store.Begin(ctx, machineID)
		if err != nil {
			return err
		}
		stepErr := fn(ctx, tx)
		if stepErr == nil {
			if stepErr = tx.Commit(ctx); stepErr == nil {
				return nil
			}
		}
		_ = tx.Rollback(ctx)
		lastErr = stepErr
		if !errors.Is(stepErr, ErrTransientStorage) {
			return stepErr
		}
	}
	return errors.Join(ErrRetryBudgetSpent, lastErr)
}
