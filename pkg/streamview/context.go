package streamview

import (
	"github.com/sharedlog/corfu-go/pkg/address"
)

// TrimPolicy controls how a view reacts to reading a trimmed address,
// replacing the original's TrimmedException-driven control flow with
// an explicit policy enum (spec §9).
type TrimPolicy int

const (
	// PropagateTrimmed surfaces a trimmed read as an error to the
	// caller.
	PropagateTrimmed TrimPolicy = iota
	// IgnoreTrimmed converts a trimmed read encountered while filling
	// the read queue into a terminating "nothing more to yield"
	// signal on subsequent calls to Next.
	IgnoreTrimmed
)

// streamContext is the per-stream mutable state of spec §3: queues,
// pointers, and checkpoint bookkeeping. A view owns exactly one
// context for its lifetime; Reset clears it back to its initial
// state without destroying the view itself.
type streamContext struct {
	globalPointer address.GlobalAddress
	minResolution address.GlobalAddress
	maxResolution address.GlobalAddress

	readQueue     orderedSet
	readCpQueue   orderedSet
	resolvedQueue orderedSet

	checkpoint checkpointSuccess

	// trimmedAtEnd records that a trimmed address was encountered
	// while IgnoreTrimmed is in effect: once set, Next always
	// returns ok == false without attempting further resolution.
	trimmedAtEnd bool
}

func newStreamContext() *streamContext {
	return &streamContext{
		globalPointer: address.NeverRead,
		minResolution: address.NonAddress,
		maxResolution: address.NonAddress,
	}
}

// reset clears queues and pointers, as if the context were freshly
// created, without severing the view's ownership of it.
func (c *streamContext) reset() {
	*c = *newStreamContext()
}
