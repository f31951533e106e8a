package logunit

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sharedlog/corfu-go/pkg/address"
)

// WriteResult is the tagged outcome of a write (spec §4.B), replacing
// exception-driven control flow with a plain enum per SPEC_FULL.md §7.
type WriteResult int

const (
	WriteOk WriteResult = iota
	WriteOverwrite
	WriteTrimmed
	WriteOutOfSpace
	WriteNetwork
)

// Client is the log-unit protocol surface consumed by the stream view,
// the sequencer's conflict checker (indirectly, through token issuance),
// and the transactional context. Every method is idempotent with
// respect to repeated invocation for the same arguments, per spec §4.B.
type Client interface {
	// Read returns the entry at ga. A never-written address yields an
	// Empty entry rather than an error; a trimmed address yields an
	// error with status.Code == codes.FailedPrecondition carrying the
	// Trimmed detail (see IsTrimmed).
	Read(ctx context.Context, ga address.GlobalAddress) (Entry, error)

	// ReadAll fetches multiple addresses in parallel and returns
	// entries in the same order as the input slice.
	ReadAll(ctx context.Context, gas []address.GlobalAddress) ([]Entry, error)

	// Write appends payload at ga for the given set of streams,
	// recording backpointers to each stream's previous entry as known
	// by the caller.
	Write(ctx context.Context, ga address.GlobalAddress, streams []uuid.UUID, backpointers map[uuid.UUID]address.GlobalAddress, payload []byte) (WriteResult, error)

	// FillHole marks ga as a Hole if it is currently unwritten. It is
	// a no-op (not an error) if ga already holds a Hole or a Data
	// entry.
	FillHole(ctx context.Context, ga address.GlobalAddress) error

	// Trim marks every address up to and including ga as
	// garbage-collectable for stream.
	Trim(ctx context.Context, stream uuid.UUID, ga address.GlobalAddress) error
}

// IsTrimmed reports whether err denotes a read of a trimmed address.
func IsTrimmed(err error) bool {
	return status.Code(err) == codes.FailedPrecondition
}
