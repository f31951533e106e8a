package sequencer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/util"
)

var (
	tokenRequestsMetricsOnce sync.Once

	tokenRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corfu",
			Subsystem: "sequencer",
			Name:      "token_requests_total",
			Help:      "Total number of token requests handled by the sequencer, by kind.",
		},
		[]string{"kind"})

	tokenRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corfu",
			Subsystem: "sequencer",
			Name:      "token_request_duration_seconds",
			Help:      "Time to service a token request, by kind.",
			Buckets:   util.DecimalExponentialBuckets(-6, 6, 2),
		},
		[]string{"kind"})
)

// Aborted reports whether err is the AbortedTransaction result of a
// failed TX request (spec §4.C, §7).
func Aborted(err error) bool {
	return status.Code(err) == codes.Aborted
}

// MemorySequencer is an in-process sequencer: a single mutex serializes
// every request, matching spec §4.C's "tie-break on concurrent TX
// requests is strict arrival order (serialized at the sequencer)" and
// §5's "exactly one active at a given epoch", grounded on the
// single-dispatcher serialization pattern used by the FSM (§4.F) and
// the teacher's program.Group lifecycle model.
type MemorySequencer struct {
	mu sync.Mutex

	epoch Epoch

	globalTail address.GlobalAddress
	streamTail map[uuid.UUID]address.GlobalAddress

	// lastWrite records the most recent global address at which each
	// stream was written, used by the conflict checker: a TX request
	// aborts if any stream in its read set was written after the
	// transaction's read timestamp.
	lastWrite map[uuid.UUID]address.GlobalAddress
}

// NewMemorySequencer creates an in-process Client starting at epoch 0
// with an empty log.
func NewMemorySequencer() *MemorySequencer {
	tokenRequestsMetricsOnce.Do(func() {
		prometheus.MustRegister(tokenRequestsTotal)
		prometheus.MustRegister(tokenRequestDuration)
	})
	return &MemorySequencer{
		globalTail: address.NeverRead,
		streamTail: map[uuid.UUID]address.GlobalAddress{},
		lastWrite:  map[uuid.UUID]address.GlobalAddress{},
	}
}

func (s *MemorySequencer) TokenQuery(ctx context.Context, streams []uuid.UUID) (Token, error) {
	tokenRequestsTotal.WithLabelValues(Query.String()).Inc()
	defer prometheus.NewTimer(tokenRequestDuration.WithLabelValues(Query.String())).ObserveDuration()

	s.mu.Lock()
	defer s.mu.Unlock()

	streamMap := map[uuid.UUID]address.GlobalAddress{}
	for _, id := range streams {
		if tail, ok := s.streamTail[id]; ok {
			streamMap[id] = tail
		} else {
			streamMap[id] = address.NonExist
		}
	}
	return Token{
		Epoch:            s.epoch,
		GlobalAddress:    s.globalTail,
		StreamAddressMap: streamMap,
	}, nil
}

func (s *MemorySequencer) TokenRequest(ctx context.Context, req Request) (Token, error) {
	tokenRequestsTotal.WithLabelValues(req.Kind.String()).Inc()
	defer prometheus.NewTimer(tokenRequestDuration.WithLabelValues(req.Kind.String())).ObserveDuration()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Kind {
	case Query:
		return s.tokenQueryLocked(req.Streams), nil
	case Raw:
		return s.allocateLocked(req.Count, nil), nil
	case Stream, MultiStream:
		return s.allocateLocked(req.Count, req.Streams), nil
	case TX:
		for id := range req.TxInfo.ReadSet {
			if last, ok := s.lastWrite[id]; ok && last > req.TxInfo.ReadTimestamp {
				return Token{}, status.Errorf(codes.Aborted, "transaction conflicts with a write to stream %s at %d after read timestamp %d", id, last, req.TxInfo.ReadTimestamp)
			}
		}
		return s.allocateLocked(req.Count, req.Streams), nil
	default:
		return Token{}, status.Errorf(codes.InvalidArgument, "unknown request kind %d", req.Kind)
	}
}

func (s *MemorySequencer) tokenQueryLocked(streams []uuid.UUID) Token {
	streamMap := map[uuid.UUID]address.GlobalAddress{}
	for _, id := range streams {
		if tail, ok := s.streamTail[id]; ok {
			streamMap[id] = tail
		} else {
			streamMap[id] = address.NonExist
		}
	}
	return Token{Epoch: s.epoch, GlobalAddress: s.globalTail, StreamAddressMap: streamMap}
}

func (s *MemorySequencer) allocateLocked(count uint64, streams []uuid.UUID) Token {
	backpointers := map[uuid.UUID]address.GlobalAddress{}
	for _, id := range streams {
		if tail, ok := s.streamTail[id]; ok {
			backpointers[id] = tail
		} else {
			backpointers[id] = address.NonExist
		}
	}

	start := s.globalTail + 1
	ga := start + address.GlobalAddress(count) - 1
	s.globalTail = ga

	for _, id := range streams {
		s.streamTail[id] = ga
		s.lastWrite[id] = ga
	}

	return Token{
		Epoch:          s.epoch,
		GlobalAddress:  ga,
		BackpointerMap: backpointers,
	}
}

// AdvanceEpoch bumps the sequencer's epoch, invalidating every
// outstanding token (spec §3, §5). Used by tests simulating a layout
// change.
func (s *MemorySequencer) AdvanceEpoch() Epoch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}
