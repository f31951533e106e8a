package sequencer_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/sequencer"
	"github.com/sharedlog/corfu-go/pkg/testutil"
)

func TestMemorySequencerRawAllocates(t *testing.T) {
	s := sequencer.NewMemorySequencer()
	ctx := context.Background()

	tok, err := s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Raw, Count: 1})
	require.NoError(t, err)
	require.Equal(t, address.GlobalAddress(0), tok.GlobalAddress)

	tok, err = s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Raw, Count: 3})
	require.NoError(t, err)
	require.Equal(t, address.GlobalAddress(3), tok.GlobalAddress)
}

func TestMemorySequencerStreamBackpointers(t *testing.T) {
	s := sequencer.NewMemorySequencer()
	ctx := context.Background()
	streamID := uuid.New()

	tok1, err := s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Stream, Count: 1, Streams: []uuid.UUID{streamID}})
	require.NoError(t, err)
	require.Equal(t, address.NonExist, tok1.BackpointerMap[streamID])

	tok2, err := s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Stream, Count: 1, Streams: []uuid.UUID{streamID}})
	require.NoError(t, err)
	require.Equal(t, tok1.GlobalAddress, tok2.BackpointerMap[streamID])
}

func TestMemorySequencerTXConflict(t *testing.T) {
	s := sequencer.NewMemorySequencer()
	ctx := context.Background()
	streamX := uuid.New()
	streamY := uuid.New()

	// Establish a write to X at address 0.
	_, err := s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Stream, Count: 1, Streams: []uuid.UUID{streamX}})
	require.NoError(t, err)

	// T1 read X at timestamp -1 (before the write above), then tries
	// to commit a write to Y: must abort since X was written after.
	_, err = s.TokenRequest(ctx, sequencer.Request{
		Kind:  sequencer.TX,
		Count: 1,
		TxInfo: sequencer.TxResolutionInfo{
			ReadTimestamp: address.NeverRead,
			ReadSet:       map[uuid.UUID]struct{}{streamX: {}},
			WriteSet:      map[uuid.UUID]struct{}{streamY: {}},
		},
		Streams: []uuid.UUID{streamY},
	})
	require.Error(t, err)
	require.True(t, sequencer.Aborted(err))
}

func TestMemorySequencerTXCommitsWhenNoConflict(t *testing.T) {
	s := sequencer.NewMemorySequencer()
	ctx := context.Background()
	streamX := uuid.New()

	tok, err := s.TokenRequest(ctx, sequencer.Request{
		Kind:  sequencer.TX,
		Count: 1,
		TxInfo: sequencer.TxResolutionInfo{
			ReadTimestamp: address.NeverRead,
			ReadSet:       map[uuid.UUID]struct{}{streamX: {}},
		},
		Streams: []uuid.UUID{streamX},
	})
	require.NoError(t, err)
	require.Equal(t, address.GlobalAddress(0), tok.GlobalAddress)
}

func TestMemorySequencerUnknownRequestKind(t *testing.T) {
	s := sequencer.NewMemorySequencer()
	ctx := context.Background()

	_, err := s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.RequestKind(99)})
	testutil.RequireEqualStatus(t, status.Errorf(codes.InvalidArgument, "unknown request kind 99"), err)
}

func TestMemorySequencerAdvanceEpoch(t *testing.T) {
	s := sequencer.NewMemorySequencer()
	ctx := context.Background()

	tok1, err := s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Raw, Count: 1})
	require.NoError(t, err)
	require.Equal(t, sequencer.Epoch(0), tok1.Epoch)

	newEpoch := s.AdvanceEpoch()
	require.Equal(t, sequencer.Epoch(1), newEpoch)

	tok2, err := s.TokenRequest(ctx, sequencer.Request{Kind: sequencer.Raw, Count: 1})
	require.NoError(t, err)
	require.Equal(t, sequencer.Epoch(1), tok2.Epoch)
}
