package sequencer

import (
	"context"

	"github.com/google/uuid"
)

// Request describes a single sequencer call. Kind determines which
// fields are meaningful: Query ignores Count; Raw ignores Streams; TX
// requires TxInfo.
type Request struct {
	Kind    RequestKind
	Count   uint64
	Streams []uuid.UUID
	TxInfo  TxResolutionInfo
}

// Client is the sequencer protocol surface (spec §4.C, §6).
type Client interface {
	// TokenQuery returns the current tails for the given streams
	// without allocating addresses.
	TokenQuery(ctx context.Context, streams []uuid.UUID) (Token, error)

	// TokenRequest allocates addresses per req.Kind. A TX request
	// whose read timestamp predates a conflicting committed write in
	// its read set fails with an error for which Aborted(err) is
	// true.
	TokenRequest(ctx context.Context, req Request) (Token, error)
}
