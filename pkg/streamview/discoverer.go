package streamview

import (
	"github.com/google/uuid"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/logunit"
)

// AddressDiscoverer parameterizes how the backward walk performed by
// fillReadQueue steps from one examined address to the next. This
// replaces the deep AbstractQueuedStreamView -> BackpointerStreamView
// inheritance of the original implementation with a single algorithm
// taking a strategy value, per SPEC_FULL.md §4.D.
type AddressDiscoverer interface {
	// DiscoverAddressSpace returns the next address to examine during
	// the backward walk, given the entry just read at current, and
	// whether this step counted as a single-step scan (as opposed to
	// a backpointer jump) — used by the caller to log mode changes.
	DiscoverAddressSpace(streamID uuid.UUID, current address.GlobalAddress, entry logunit.Entry) (next address.GlobalAddress, singleStep bool)
}

// backpointerDiscoverer jumps directly to the previous address of the
// stream when the current entry records a backpointer, falling back to
// a single decrement otherwise (entries written before backpointers
// were enabled, or a hole).
type backpointerDiscoverer struct{}

// NewBackpointerDiscoverer returns the default discovery strategy:
// follow backpointers when present, single-step otherwise.
func NewBackpointerDiscoverer() AddressDiscoverer {
	return backpointerDiscoverer{}
}

func (backpointerDiscoverer) DiscoverAddressSpace(streamID uuid.UUID, current address.GlobalAddress, entry logunit.Entry) (address.GlobalAddress, bool) {
	if bp, ok := entry.Backpointer(streamID); ok {
		return bp, false
	}
	return current - 1, true
}

// linearDiscoverer always single-steps, ignoring any backpointer
// present on the entry. Used when backpointers are disabled for a
// view (spec §8's "backpointersDisabled forces pure linear scan").
type linearDiscoverer struct{}

// NewLinearDiscoverer returns a discovery strategy that never follows
// backpointers.
func NewLinearDiscoverer() AddressDiscoverer {
	return linearDiscoverer{}
}

func (linearDiscoverer) DiscoverAddressSpace(streamID uuid.UUID, current address.GlobalAddress, entry logunit.Entry) (address.GlobalAddress, bool) {
	return current - 1, true
}
