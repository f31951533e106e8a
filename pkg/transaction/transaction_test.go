package transaction_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sharedlog/corfu-go/pkg/logunit"
	"github.com/sharedlog/corfu-go/pkg/sequencer"
	"github.com/sharedlog/corfu-go/pkg/transaction"
)

func TestOptimisticCommitSucceeds(t *testing.T) {
	ctx := context.Background()
	log := logunit.NewMemoryClient()
	seq := sequencer.NewMemorySequencer()
	streamX := uuid.New()

	ctx, h, err := transaction.Begin(ctx, seq, log, transaction.Optimistic)
	require.NoError(t, err)

	h.RecordRead(streamX)
	require.NoError(t, h.RecordWrite(streamX, []byte("value")))

	require.NoError(t, h.Commit(ctx))
	require.Equal(t, transaction.StateCommitted, h.State())

	e, err := log.Read(ctx, 0)
	require.NoError(t, err)
	require.True(t, e.ContainsStream(streamX))
}

func TestOptimisticCommitAbortsOnConflict(t *testing.T) {
	ctx := context.Background()
	log := logunit.NewMemoryClient()
	seq := sequencer.NewMemorySequencer()
	streamX := uuid.New()
	streamY := uuid.New()

	txCtx, handle, err := transaction.Begin(ctx, seq, log, transaction.Optimistic)
	require.NoError(t, err)
	require.Equal(t, transaction.StateActive, handle.State())

	handle.RecordRead(streamX)
	require.NoError(t, handle.RecordWrite(streamY, []byte("value")))

	// A concurrent writer commits a write to X after this
	// transaction's snapshot was pinned, so the TX request must be
	// rejected.
	_, err = seq.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Stream, Count: 1, Streams: []uuid.UUID{streamX}})
	require.NoError(t, err)

	err = handle.Commit(txCtx)
	require.Error(t, err)
	require.Equal(t, transaction.StateAborted, handle.State())
}

func TestSnapshotTransactionRejectsWrites(t *testing.T) {
	ctx := context.Background()
	log := logunit.NewMemoryClient()
	seq := sequencer.NewMemorySequencer()
	streamX := uuid.New()

	_, h, err := transaction.Begin(ctx, seq, log, transaction.Snapshot)
	require.NoError(t, err)

	require.Error(t, h.RecordWrite(streamX, []byte("value")))
}

func TestNestedTransactionMergesUntilOutermostCommit(t *testing.T) {
	ctx := context.Background()
	log := logunit.NewMemoryClient()
	seq := sequencer.NewMemorySequencer()
	streamX := uuid.New()
	streamY := uuid.New()

	outerCtx, outer, err := transaction.Begin(ctx, seq, log, transaction.Optimistic)
	require.NoError(t, err)
	require.NoError(t, outer.RecordWrite(streamX, []byte("outer")))

	innerCtx, inner, err := transaction.Begin(outerCtx, seq, log, transaction.Optimistic)
	require.NoError(t, err)
	require.Same(t, outer, inner)
	require.NoError(t, inner.RecordWrite(streamY, []byte("inner")))

	// Nested commit merges upward without writing anything yet.
	require.NoError(t, inner.Commit(innerCtx))
	e, err := log.Read(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, logunit.Empty, e.Type)

	// Outermost commit performs the real write, covering both
	// streams touched across the nesting.
	require.NoError(t, outer.Commit(outerCtx))
	e, err = log.Read(ctx, 0)
	require.NoError(t, err)
	require.True(t, e.ContainsStream(streamX))
	require.True(t, e.ContainsStream(streamY))
}
