package transaction

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/sharedlog/corfu-go/pkg/logunit"
	"github.com/sharedlog/corfu-go/pkg/sequencer"
	"github.com/sharedlog/corfu-go/pkg/util"
)

// commitOutermostLocked performs the real commit: a TX token request
// carrying the accumulated TxResolutionInfo, followed by a single
// multi-stream write at the allocated address. Caller holds h.mu.
func (h *Handle) commitOutermostLocked(ctx context.Context) error {
	top := h.frames.Peek()

	if len(top.writeSet) == 0 {
		// Read-only transactions (including Snapshot, which never
		// populates a write set) commit trivially: there is nothing
		// to serialize against other writers.
		h.state = StateCommitted
		return nil
	}

	readSet := top.readSet
	if h.txnType == WriteAfterWrite {
		// The sequencer checks the conflict set it is given against
		// later writes; for write-after-write that set is the write
		// set.
		readSet = top.writeSet
	}

	streams := make([]uuid.UUID, 0, len(top.writeSet))
	for id := range top.writeSet {
		streams = append(streams, id)
	}

	h.state = StateCommitting

	tok, err := h.seq.TokenRequest(ctx, sequencer.Request{
		Kind:    sequencer.TX,
		Count:   1,
		Streams: streams,
		TxInfo: sequencer.TxResolutionInfo{
			ReadTimestamp: h.snapshotTs,
			ReadSet:       readSet,
			WriteSet:      top.writeSet,
		},
	})
	if err != nil {
		h.state = StateAborted
		if sequencer.Aborted(err) {
			return util.StatusWrap(err, "Transaction aborted by conflict resolution")
		}
		return util.StatusWrap(err, "Transaction aborted: token request failed")
	}

	payload, err := encodeMultiStreamPayload(top.pendingWrites)
	if err != nil {
		h.state = StateAborted
		return util.StatusWrap(err, "Failed to encode multi-stream write payload")
	}

	result, err := h.log.Write(ctx, tok.GlobalAddress, streams, tok.BackpointerMap, payload)
	if err != nil {
		h.state = StateAborted
		return util.StatusWrap(err, "Transaction aborted: write failed")
	}
	if result != logunit.WriteOk {
		h.state = StateAborted
		return errWriteNotOk
	}

	h.state = StateCommitted
	return nil
}

// encodeMultiStreamPayload serializes the per-stream write payloads of
// a commit into a single opaque byte slice, matching the original's
// multi-object log entry (one physical entry, several streams, one
// payload) rather than emitting one entry per write call.
func encodeMultiStreamPayload(writes map[uuid.UUID][]byte) ([]byte, error) {
	keyed := make(map[string][]byte, len(writes))
	for id, payload := range writes {
		keyed[id.String()] = payload
	}
	return json.Marshal(keyed)
}

// DecodeMultiStreamPayload reverses encodeMultiStreamPayload, for use
// by an object view replaying a committed multi-stream entry.
func DecodeMultiStreamPayload(payload []byte) (map[uuid.UUID][]byte, error) {
	var keyed map[string][]byte
	if err := json.Unmarshal(payload, &keyed); err != nil {
		return nil, util.StatusWrap(err, "Failed to decode multi-stream write payload")
	}
	out := make(map[uuid.UUID][]byte, len(keyed))
	for key, payload := range keyed {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, util.StatusWrap(err, "Failed to parse stream id in multi-stream write payload")
		}
		out[id] = payload
	}
	return out, nil
}
