package reliable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/reliable"
)

func TestMemoryStateStoreReplaceAndSnapshotWithoutTx(t *testing.T) {
	ctx := context.Background()
	store := reliable.NewMemoryStateStore()

	require.NoError(t, store.Replace(ctx, "m1", []string{"A", "B"}))
	got, err := store.Snapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestMemoryStateStoreSnapshotIsDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	store := reliable.NewMemoryStateStore()
	require.NoError(t, store.Replace(ctx, "m1", []string{"A"}))

	snap, err := store.Snapshot(ctx, "m1")
	require.NoError(t, err)
	snap[0] = "mutated"

	got, err := store.Snapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)
}

func TestMemoryStateStoreTxMutationsAreInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := reliable.NewMemoryStateStore()
	require.NoError(t, store.Replace(ctx, "m1", []string{"Before"}))

	tx, err := store.Begin(ctx, "m1")
	require.NoError(t, err)

	require.NoError(t, store.Replace(ctx, "m1", []string{"After"}))
	require.NoError(t, store.Append(ctx, "m1", 1, []byte("payload")))

	// Uncommitted: a reader of the store still sees the pre-transaction
	// state, since Replace/Append buffered into the open tx instead.
	stack, err := store.Snapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Before"}, stack)

	pending, err := store.Pending(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, tx.Commit(ctx))

	stack, err = store.Snapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"After"}, stack)

	pending, err = store.Pending(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(1), pending[0].SendSeq)
}

func TestMemoryStateStoreRollbackDiscardsMutations(t *testing.T) {
	ctx := context.Background()
	store := reliable.NewMemoryStateStore()
	require.NoError(t, store.Replace(ctx, "m1", []string{"Before"}))

	tx, err := store.Begin(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, store.Replace(ctx, "m1", []string{"After"}))
	require.NoError(t, tx.Rollback(ctx))

	stack, err := store.Snapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Before"}, stack)
}

func TestMemoryStateStoreRejectsConcurrentTxForSameMachine(t *testing.T) {
	ctx := context.Background()
	store := reliable.NewMemoryStateStore()

	_, err := store.Begin(ctx, "m1")
	require.NoError(t, err)

	_, err = store.Begin(ctx, "m1")
	assert.Error(t, err)
}

func TestMemoryStateStoreAckRemovesMatchingEntryOnly(t *testing.T) {
	ctx := context.Background()
	store := reliable.NewMemoryStateStore()
	require.NoError(t, store.Append(ctx, "m1", 1, []byte("a")))
	require.NoError(t, store.Append(ctx, "m1", 2, []byte("b")))

	require.NoError(t, store.Ack(ctx, "m1", 1))

	pending, err := store.Pending(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(2), pending[0].SendSeq)
}
