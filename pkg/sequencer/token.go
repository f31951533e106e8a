// Package sequencer implements the sequencer client (component C):
// token issuance for raw, stream, multi-stream, and transactional
// requests, plus an in-process sequencer implementation that serializes
// allocation and performs conflict resolution for TX requests.
package sequencer

import (
	"github.com/google/uuid"

	"github.com/sharedlog/corfu-go/pkg/address"
)

// Epoch is a monotonically increasing cluster-layout generation
// counter. A token bundles the epoch current when it was minted; a
// client holding a stale-epoch token must abort.
type Epoch uint64

// Token is the sequencer's write permission, bundling the epoch, the
// allocated global address, and the prior tail of every stream touched
// by the request (used to populate backpointers).
type Token struct {
	Epoch            Epoch
	GlobalAddress    address.GlobalAddress
	BackpointerMap   map[uuid.UUID]address.GlobalAddress
	StreamAddressMap map[uuid.UUID]address.GlobalAddress
}

// RequestKind identifies the five sequencer request shapes of spec §4.C
// and §6.
type RequestKind int

const (
	// Query peeks at the current tails without allocating.
	Query RequestKind = iota
	// Raw allocates count addresses with no stream association.
	Raw
	// Stream allocates count addresses for a single stream.
	Stream
	// MultiStream allocates count addresses shared by several
	// streams.
	MultiStream
	// TX is a transactional request: conflict-checked against
	// TxResolutionInfo before behaving as MultiStream.
	TX
)

// String names a RequestKind for logging and metrics labels.
func (k RequestKind) String() string {
	switch k {
	case Query:
		return "QUERY"
	case Raw:
		return "RAW"
	case Stream:
		return "STREAM"
	case MultiStream:
		return "MULTI_STREAM"
	case TX:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// TxResolutionInfo is the conflict-resolution payload of a TX request
// (spec §3).
type TxResolutionInfo struct {
	ReadTimestamp address.GlobalAddress
	ReadSet       map[uuid.UUID]struct{}
	WriteSet      map[uuid.UUID]struct{}
}
