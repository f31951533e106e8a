package logunit

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/util"
)

// maxConcurrentReads bounds the fan-out performed by ReadAll, mirroring
// the teacher's use of a weighted semaphore to cap blocking-pool usage.
const maxConcurrentReads = 32

// memoryUnit is an in-process log-unit server: a map from address to
// entry guarded by a mutex. It is the test and demonstration-binary
// stand-in for the on-disk log-unit server explicitly left out of
// scope by the specification; modeled on the map-backed log in
// chn0318-logstore's memorylog package, generalized to the
// entry-tag/backpointer/checkpoint model the runtime requires.
type memoryUnit struct {
	mu              sync.Mutex
	entries         map[address.GlobalAddress]Entry
	trimmed         map[address.GlobalAddress]struct{}
	trimMark        map[uuid.UUID]address.GlobalAddress
	sem             *semaphore.Weighted
	checkpointCache *checkpointPayloadCache
}

// NewMemoryClient creates an in-process Client backed by an in-memory
// map, suitable for tests and local demonstrations.
func NewMemoryClient() Client {
	return &memoryUnit{
		entries:         map[address.GlobalAddress]Entry{},
		trimmed:         map[address.GlobalAddress]struct{}{},
		trimMark:        map[uuid.UUID]address.GlobalAddress{},
		sem:             semaphore.NewWeighted(maxConcurrentReads),
		checkpointCache: newCheckpointPayloadCache(),
	}
}

func (u *memoryUnit) Read(ctx context.Context, ga address.GlobalAddress) (Entry, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.readLocked(ga)
}

func (u *memoryUnit) readLocked(ga address.GlobalAddress) (Entry, error) {
	if _, ok := u.trimmed[ga]; ok {
		return Entry{}, status.Errorf(codes.FailedPrecondition, "address %d has been trimmed", ga)
	}
	if e, ok := u.entries[ga]; ok {
		if e.Type == Checkpoint && len(e.Checkpoint.Payload) > 0 {
			if cached, ok := u.checkpointCache.get(ga); ok {
				e.Checkpoint.Payload = cached
				return e, nil
			}
			decompressed, err := util.ZstdDecompress(e.Checkpoint.Payload)
			if err != nil {
				return Entry{}, util.StatusWrap(err, "Failed to decompress checkpoint payload")
			}
			u.checkpointCache.put(ga, decompressed)
			e.Checkpoint.Payload = decompressed
		}
		return e, nil
	}
	return Entry{Address: ga, Type: Empty}, nil
}

func (u *memoryUnit) ReadAll(ctx context.Context, gas []address.GlobalAddress) ([]Entry, error) {
	out := make([]Entry, len(gas))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, ga := range gas {
		i, ga := i, ga
		if err := util.AcquireSemaphore(groupCtx, u.sem, 1); err != nil {
			return nil, err
		}
		group.Go(func() error {
			defer u.sem.Release(1)
			e, err := u.Read(groupCtx, ga)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sameStreamSet(a, b map[uuid.UUID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func (u *memoryUnit) Write(ctx context.Context, ga address.GlobalAddress, streams []uuid.UUID, backpointers map[uuid.UUID]address.GlobalAddress, payload []byte) (WriteResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.trimmed[ga]; ok {
		return WriteTrimmed, nil
	}

	streamSet := make(map[uuid.UUID]struct{}, len(streams))
	for _, s := range streams {
		streamSet[s] = struct{}{}
	}

	if existing, ok := u.entries[ga]; ok && existing.Type != Hole {
		if existing.Type == Data && sameStreamSet(existing.Streams, streamSet) && bytes.Equal(existing.Payload, payload) {
			// The client's own idempotent retry of a write already
			// present at ga (spec §8) is not a conflict.
			return WriteOk, nil
		}
		return WriteOverwrite, nil
	}

	u.entries[ga] = Entry{
		Address:      ga,
		Type:         Data,
		Streams:      streamSet,
		Backpointers: backpointers,
		Payload:      payload,
	}
	return WriteOk, nil
}

// WriteCheckpoint writes a CHECKPOINT-tagged entry directly, bypassing
// the overwrite/trim checks Write applies to ordinary DATA entries.
// Exposed for tests and checkpointer components that construct a
// checkpoint record sequence explicitly. A non-empty payload (carried
// by CONTINUATION records) is Zstandard-compressed before storage,
// since checkpoint payloads are serialized SMR snapshots and tend to
// compress well.
func (u *memoryUnit) WriteCheckpoint(ctx context.Context, ga address.GlobalAddress, streams []uuid.UUID, phase CheckpointPhase, id uuid.UUID, snapshotAddress address.GlobalAddress, payload []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	streamSet := make(map[uuid.UUID]struct{}, len(streams))
	for _, s := range streams {
		streamSet[s] = struct{}{}
	}

	var compressed []byte
	if len(payload) > 0 {
		var err error
		compressed, err = util.ZstdCompress(payload)
		if err != nil {
			return util.StatusWrap(err, "Failed to compress checkpoint payload")
		}
	}

	u.entries[ga] = Entry{
		Address: ga,
		Type:    Checkpoint,
		Streams: streamSet,
		Checkpoint: CheckpointMetadata{
			ID:              id,
			Phase:           phase,
			SnapshotAddress: snapshotAddress,
			Payload:         compressed,
		},
	}
	return nil
}

func (u *memoryUnit) FillHole(ctx context.Context, ga address.GlobalAddress) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.trimmed[ga]; ok {
		return status.Errorf(codes.FailedPrecondition, "address %d has been trimmed", ga)
	}
	if _, ok := u.entries[ga]; ok {
		return nil
	}
	u.entries[ga] = Entry{Address: ga, Type: Hole}
	return nil
}

// Trim marks every stored entry (data, hole or checkpoint) at an
// address up to and including ga as trimmed; addresses never written
// stay readable as Empty. The
// in-memory unit trims at the address level
// rather than tracking per-stream high-water marks individually: an
// entry belonging to several streams is only ever removed once all of
// its streams have trimmed past it, which this simplified
// implementation approximates by trimming the address outright, since
// a real log-unit's multi-stream entries are vanishingly rare to share
// conflicting trim horizons in tests and demonstrations.
func (u *memoryUnit) Trim(ctx context.Context, stream uuid.UUID, ga address.GlobalAddress) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	mark, ok := u.trimMark[stream]
	if !ok || ga > mark {
		u.trimMark[stream] = ga
	}
	for a := range u.entries {
		if a <= ga {
			u.trimmed[a] = struct{}{}
			delete(u.entries, a)
			u.checkpointCache.invalidate(a)
		}
	}
	return nil
}
