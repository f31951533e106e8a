package streamview_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/logunit"
	"github.com/sharedlog/corfu-go/pkg/sequencer"
	"github.com/sharedlog/corfu-go/pkg/streamview"
)

const farFuture = address.GlobalAddress(1 << 32)

// fixedTailSequencer reports a hardcoded per-stream tail, letting
// tests wire specific address gaps into the log without needing the
// sequencer to have allocated every intervening address itself.
type fixedTailSequencer struct {
	tails map[uuid.UUID]address.GlobalAddress
}

func (s *fixedTailSequencer) TokenQuery(ctx context.Context, streams []uuid.UUID) (sequencer.Token, error) {
	m := map[uuid.UUID]address.GlobalAddress{}
	for _, id := range streams {
		if tail, ok := s.tails[id]; ok {
			m[id] = tail
		} else {
			m[id] = address.NonExist
		}
	}
	return sequencer.Token{StreamAddressMap: m}, nil
}

func (s *fixedTailSequencer) TokenRequest(ctx context.Context, req sequencer.Request) (sequencer.Token, error) {
	return s.TokenQuery(ctx, req.Streams)
}

func TestBackpointerWalkVsSingleStep(t *testing.T) {
	ctx := context.Background()
	log := logunit.NewMemoryClient()
	seq := sequencer.NewMemorySequencer()
	streamX := uuid.New()

	for i := 0; i < 3; i++ {
		tok, err := seq.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Stream, Count: 1, Streams: []uuid.UUID{streamX}})
		require.NoError(t, err)
		_, err = log.Write(ctx, tok.GlobalAddress, []uuid.UUID{streamX}, tok.BackpointerMap, []byte{byte(i)})
		require.NoError(t, err)
	}

	view := streamview.NewView(streamX, log, seq)
	for i := address.GlobalAddress(0); i < 3; i++ {
		entry, ok, err := view.Next(ctx, farFuture)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, entry.Address)
	}

	_, ok, err := view.Next(ctx, farFuture)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHoleRecovery(t *testing.T) {
	ctx := context.Background()
	log := logunit.NewMemoryClient()
	streamX := uuid.New()

	_, err := log.Write(ctx, 5, []uuid.UUID{streamX}, map[uuid.UUID]address.GlobalAddress{streamX: address.NonExist}, []byte("five"))
	require.NoError(t, err)
	// 6 and 7 are left unwritten (Empty); 8 has no backpointer for X
	// recorded, forcing the walk to single-step down to 5.
	_, err = log.Write(ctx, 8, []uuid.UUID{streamX}, nil, []byte("eight"))
	require.NoError(t, err)

	seq := &fixedTailSequencer{tails: map[uuid.UUID]address.GlobalAddress{streamX: 8}}
	view := streamview.NewView(streamX, log, seq)

	entry, ok, err := view.Next(ctx, farFuture)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, address.GlobalAddress(5), entry.Address)

	entry, ok, err = view.Next(ctx, farFuture)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, address.GlobalAddress(8), entry.Address)

	// 6 and 7 must have been holed by the walk.
	for _, a := range []address.GlobalAddress{6, 7} {
		e, err := log.Read(ctx, a)
		require.NoError(t, err)
		require.Equal(t, logunit.Hole, e.Type)
	}
}

func TestCheckpointSubsumption(t *testing.T) {
	ctx := context.Background()
	log := logunit.NewMemoryClient()
	streamX := uuid.New()
	cpID := uuid.New()

	for i := address.GlobalAddress(1); i <= 10; i++ {
		_, err := log.Write(ctx, i, []uuid.UUID{streamX}, nil, []byte{byte(i)})
		require.NoError(t, err)
	}

	writeCheckpointEntry := func(addr address.GlobalAddress, phase logunit.CheckpointPhase, snapshot address.GlobalAddress, payload []byte) {
		u := log.(interface {
			WriteCheckpoint(ctx context.Context, ga address.GlobalAddress, streams []uuid.UUID, phase logunit.CheckpointPhase, id uuid.UUID, snapshot address.GlobalAddress, payload []byte) error
		})
		require.NoError(t, u.WriteCheckpoint(ctx, addr, []uuid.UUID{streamX}, phase, cpID, snapshot, payload))
	}
	writeCheckpointEntry(11, logunit.CheckpointStart, 10, nil)
	writeCheckpointEntry(12, logunit.CheckpointContinuation, 10, []byte("snapshot state"))
	writeCheckpointEntry(13, logunit.CheckpointEnd, 10, nil)

	seq := &fixedTailSequencer{tails: map[uuid.UUID]address.GlobalAddress{streamX: 13}}
	view := streamview.NewView(streamX, log, seq)

	// The checkpoint records drain first, in increasing address
	// order, ahead of any data entries.
	for _, want := range []address.GlobalAddress{11, 12, 13} {
		entry, ok, err := view.Next(ctx, farFuture)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, entry.Address)
		require.Equal(t, logunit.Checkpoint, entry.Type)
	}

	// Entries 1..10 are subsumed by the checkpoint and must not be
	// yielded; there is nothing beyond 13 either.
	_, ok, err := view.Next(ctx, farFuture)
	require.NoError(t, err)
	require.False(t, ok)
}
