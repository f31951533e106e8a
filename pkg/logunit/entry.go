// Package logunit implements the log client (component B): reading,
// writing, hole-filling, and trimming entries of the shared log, plus
// an in-process implementation used by tests and the demonstration
// binaries. Concrete wire transport and on-disk storage are out of
// scope; see SPEC_FULL.md.
package logunit

import (
	"github.com/google/uuid"

	"github.com/sharedlog/corfu-go/pkg/address"
)

// EntryType tags the kind of record found at a log address.
type EntryType int

const (
	// Data is an ordinary application-written entry.
	Data EntryType = iota
	// Hole marks an address explicitly filled to preserve order
	// after being allocated but never written.
	Hole
	// Checkpoint is part of a checkpoint record sequence
	// (START/ENTRIES/END) written by a checkpointer.
	Checkpoint
	// Trimmed marks an address whose contents have been
	// garbage-collected.
	Trimmed
	// Empty marks an address that has been allocated but not yet
	// observed as written or holed.
	Empty
)

// CheckpointPhase distinguishes the three records of a checkpoint
// sequence. Only meaningful when Type == Checkpoint.
type CheckpointPhase int

const (
	CheckpointNone CheckpointPhase = iota
	CheckpointStart
	CheckpointContinuation
	CheckpointEnd
)

// CheckpointMetadata carries the fields of a CHECKPOINT entry needed by
// the stream view's checkpoint filter (spec §4.D).
type CheckpointMetadata struct {
	ID              uuid.UUID
	Phase           CheckpointPhase
	// SnapshotAddress is only set on the END record: entries of the
	// checkpointed stream(s) at or below this address are subsumed.
	SnapshotAddress address.GlobalAddress
	// Payload holds the CONTINUATION record's serialized SMR state,
	// Zstandard-compressed on the wire (see WriteCheckpoint). Empty on
	// START and END records.
	Payload []byte
}

// Entry is an immutable record at some global address.
type Entry struct {
	Address      address.GlobalAddress
	Type         EntryType
	Streams      map[uuid.UUID]struct{}
	Backpointers map[uuid.UUID]address.GlobalAddress
	Payload      []byte
	Checkpoint   CheckpointMetadata
}

// ContainsStream reports whether the entry belongs to the given
// stream.
func (e Entry) ContainsStream(streamID uuid.UUID) bool {
	_, ok := e.Streams[streamID]
	return ok
}

// Backpointer returns the previous address of streamID as recorded by
// this entry, and whether one was recorded at all. An entry that
// starts a stream has no backpointer (logically address.NonExist).
func (e Entry) Backpointer(streamID uuid.UUID) (address.GlobalAddress, bool) {
	a, ok := e.Backpointers[streamID]
	return a, ok
}
