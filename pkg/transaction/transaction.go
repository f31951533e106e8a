// Package transaction implements the transactional context (component
// E): optimistic, snapshot, and write-after-write semantics layered
// atop the sequencer and log clients, with nested-transaction merging.
// See SPEC_FULL.md §4.E.
package transaction

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/logunit"
	"github.com/sharedlog/corfu-go/pkg/sequencer"
	"github.com/sharedlog/corfu-go/pkg/util"
)

// Type selects the conflict-resolution policy of a transaction (spec
// §4.E).
type Type int

const (
	// Optimistic collects a read set and a write set; at commit time
	// the read set is checked for conflicting writes.
	Optimistic Type = iota
	// Snapshot pins a read timestamp at Begin and permits no writes.
	Snapshot
	// WriteAfterWrite checks only write-set conflicts; read-read
	// conflicts are ignored.
	WriteAfterWrite
)

// State is a transaction's position in its lifecycle: ACTIVE ->
// COMMITTING -> {COMMITTED | ABORTED}, or ACTIVE -> ABORTED directly.
// Once terminal, Commit returns an error. RecordRead, RecordWrite,
// Abort and ObserveReadError do not check the state: they still
// update the handle after it has become terminal.
type State int

const (
	StateActive State = iota
	StateCommitting
	StateCommitted
	StateAborted
)

// frame is one nesting level's accumulated read/write sets. Nested
// Begin calls push a new frame; Commit at any but the outermost frame
// merges the popped frame into its parent instead of performing real
// work, per spec §4.E: "commit is performed only at the outermost
// boundary."
type frame struct {
	readSet       map[uuid.UUID]struct{}
	writeSet      map[uuid.UUID]struct{}
	pendingWrites map[uuid.UUID][]byte
}

func newFrame() *frame {
	return &frame{
		readSet:       map[uuid.UUID]struct{}{},
		writeSet:      map[uuid.UUID]struct{}{},
		pendingWrites: map[uuid.UUID][]byte{},
	}
}

func mergeUp(child, parent *frame) {
	for id := range child.readSet {
		parent.readSet[id] = struct{}{}
	}
	for id := range child.writeSet {
		parent.writeSet[id] = struct{}{}
	}
	for id, payload := range child.pendingWrites {
		parent.pendingWrites[id] = payload
	}
}

// Handle is the client-side handle to one logical transaction,
// possibly composed of several nested frames. It replaces the
// original's thread-local transaction stack (spec §9) with a value
// carried explicitly through context.Context.
type Handle struct {
	mu sync.Mutex

	txnType    Type
	state      State
	snapshotTs address.GlobalAddress
	frames     util.NonEmptyStack[*frame]

	seq sequencer.Client
	log logunit.Client
}

type contextKey struct{}

// FromContext returns the active transaction handle carried by ctx, if
// any.
func FromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(contextKey{}).(*Handle)
	return h, ok
}

// Begin starts a transaction, or if ctx already carries one, opens a
// nested frame within it (spec §4.E). The returned context carries the
// (possibly pre-existing) handle; it or the handle itself can be
// threaded through subsequent calls.
func Begin(ctx context.Context, seq sequencer.Client, log logunit.Client, txnType Type) (context.Context, *Handle, error) {
	if h, ok := FromContext(ctx); ok {
		h.mu.Lock()
		h.frames.Push(newFrame())
		h.mu.Unlock()
		return ctx, h, nil
	}

	tok, err := seq.TokenQuery(ctx, nil)
	if err != nil {
		return ctx, nil, util.StatusWrap(err, "Failed to pin transaction snapshot")
	}

	h := &Handle{
		txnType:    txnType,
		state:      StateActive,
		snapshotTs: tok.GlobalAddress,
		frames:     util.NewNonEmptyStack(newFrame()),
		seq:        seq,
		log:        log,
	}
	return context.WithValue(ctx, contextKey{}, h), h, nil
}

// Type reports the transaction's conflict-resolution policy.
func (h *Handle) Type() Type {
	return h.txnType
}

// State reports the transaction's current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SnapshotTimestamp returns the read timestamp pinned at Begin.
func (h *Handle) SnapshotTimestamp() address.GlobalAddress {
	return h.snapshotTs
}

// RecordRead registers that streamID was queried within the current
// frame. Ignored for WriteAfterWrite transactions, whose conflict
// check considers write sets only.
func (h *Handle) RecordRead(streamID uuid.UUID) {
	if h.txnType == WriteAfterWrite {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames.Peek().readSet[streamID] = struct{}{}
}

// RecordWrite registers a pending write to streamID within the
// current frame. A later write to the same stream in the same frame
// replaces the earlier payload: per spec.md's supplemented write-set
// deduplication, only the last write per stream is applied at commit,
// batched into one multi-stream entry.
func (h *Handle) RecordWrite(streamID uuid.UUID, payload []byte) error {
	if h.txnType == Snapshot {
		return util.StatusWrap(errSnapshotReadOnly, "Cannot write in a snapshot transaction")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	top := h.frames.Peek()
	top.writeSet[streamID] = struct{}{}
	top.pendingWrites[streamID] = payload
	return nil
}

// ObserveReadError folds a read failure encountered while the
// transaction is active into its abort state, per spec §4.E's failure
// semantics (TrimmedException, NetworkException, WrongEpochException
// during a transactional read all abort the transaction).
func (h *Handle) ObserveReadError(err error) error {
	if err == nil {
		return nil
	}
	h.mu.Lock()
	h.state = StateAborted
	h.mu.Unlock()
	return util.StatusWrap(err, "Transaction aborted due to a read failure")
}

// Abort explicitly terminates the transaction.
func (h *Handle) Abort() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateAborted
}

// Commit finalizes the current frame. At a nested frame, this merges
// the frame's read/write sets into its parent and returns without
// contacting the sequencer; only the outermost Commit performs the
// actual TX token request and, on success, the batched write (spec
// §4.E).
func (h *Handle) Commit(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateActive {
		return util.StatusWrap(errTerminalTransaction, "Transaction is no longer active")
	}

	if popped, ok := h.frames.PopSingle(); ok {
		mergeUp(popped, h.frames.Peek())
		return nil
	}

	return h.commitOutermostLocked(ctx)
}
