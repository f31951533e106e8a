package streamview

import (
	"github.com/google/uuid"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/logunit"
)

// checkpointDecision is the outcome of consulting the checkpoint
// filter for one entry during the backward walk (spec §4.D).
type checkpointDecision int

const (
	// decisionInclude pushes the entry into a read queue and the
	// walk continues.
	decisionInclude checkpointDecision = iota
	// decisionIncludeStop pushes the entry and terminates the walk:
	// a complete checkpoint record sequence has now been identified,
	// subsuming everything below it.
	decisionIncludeStop
	// decisionExclude drops the entry (it belongs to a checkpoint
	// sequence other than the one the walk has committed to) and the
	// walk continues.
	decisionExclude
)

// checkpointSuccess records the address range of the first complete
// checkpoint record sequence discovered during a walk, per spec §4.D's
// "first complete CP encountered during the backward walk wins".
type checkpointSuccess struct {
	id         uuid.UUID
	startAddr  address.GlobalAddress
	endAddr    address.GlobalAddress
	found      bool
	numEntries int
	bytes      int
}

// checkpointFilter tracks the in-progress checkpoint candidate for a
// single fillReadQueue walk.
type checkpointFilter struct {
	candidateID    uuid.UUID
	candidateSet   bool
	candidateEnd   address.GlobalAddress
	candidateBytes int
	candidateCount int
	success        checkpointSuccess
}

// consult classifies entry and reports whether it should be routed to
// the checkpoint queue (as opposed to the ordinary read queue).
func (f *checkpointFilter) consult(entry logunit.Entry) (checkpointDecision, bool /* toCpQueue */) {
	if entry.Type != logunit.Checkpoint {
		return decisionInclude, false
	}

	if !f.candidateSet {
		// The backward walk encounters checkpoint records in
		// descending address order, so the first one seen is
		// expected to be the sequence's END record.
		f.candidateSet = true
		f.candidateID = entry.Checkpoint.ID
		f.candidateEnd = entry.Address
		f.candidateCount = 1
		f.candidateBytes = len(entry.Payload)
		return decisionInclude, true
	}

	if entry.Checkpoint.ID != f.candidateID {
		return decisionExclude, false
	}

	f.candidateCount++
	f.candidateBytes += len(entry.Payload)

	if entry.Checkpoint.Phase == logunit.CheckpointStart {
		f.success = checkpointSuccess{
			id:         f.candidateID,
			startAddr:  entry.Address,
			endAddr:    f.candidateEnd,
			found:      true,
			numEntries: f.candidateCount,
			bytes:      f.candidateBytes,
		}
		return decisionIncludeStop, true
	}
	return decisionInclude, true
}
