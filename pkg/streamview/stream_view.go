// Package streamview implements the queued stream view (component D):
// a per-stream iterator over the globally ordered log, accelerated by
// backpointers and checkpoint-aware initial replay. This is the
// central algorithm of the runtime; see SPEC_FULL.md §4.D.
package streamview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/clock"
	"github.com/sharedlog/corfu-go/pkg/logunit"
	"github.com/sharedlog/corfu-go/pkg/random"
	"github.com/sharedlog/corfu-go/pkg/sequencer"
	"github.com/sharedlog/corfu-go/pkg/util"
)

// holeFillBackoff is the base delay a view waits before filling a hole
// it discovered at an empty address, jittered by holeFillJitterFraction
// to avoid two clients racing the same fillReadQueue walk from both
// issuing FillHole for the same address back-to-back.
const holeFillBackoff = 2 * time.Millisecond

const holeFillJitterFraction = 0.5

var (
	singleStepMetricsOnce sync.Once

	singleStepTransitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corfu",
			Subsystem: "streamview",
			Name:      "single_step_fallbacks_total",
			Help:      "Total number of times a stream view entered single-step (linear scan) discovery, falling back from backpointer resolution.",
		})
)

// View is a queued stream view over a single stream ID. All exported
// methods hold the view's mutex for their duration, per spec §5; log
// client calls happen while the lock is held, so callers must not
// re-enter the same view from a user-supplied callback (e.g. the
// NextBatch truncation predicate).
type View struct {
	mu sync.Mutex

	streamID   uuid.UUID
	log        logunit.Client
	seq        sequencer.Client
	discoverer AddressDiscoverer
	trimPolicy TrimPolicy
	bus        *EventBus
	logger     *slog.Logger
	clock      clock.Clock

	ctx *streamContext

	singleStepMode bool
}

// Option configures a View at construction time.
type Option func(*View)

// WithDiscoverer overrides the default backpointer-following discovery
// strategy.
func WithDiscoverer(d AddressDiscoverer) Option {
	return func(v *View) { v.discoverer = d }
}

// WithTrimPolicy overrides the default PropagateTrimmed policy.
func WithTrimPolicy(p TrimPolicy) Option {
	return func(v *View) { v.trimPolicy = p }
}

// WithEventBus attaches an EventBus that is published to every time
// the view advances to a new address via Next or NextBatch.
func WithEventBus(bus *EventBus) Option {
	return func(v *View) { v.bus = bus }
}

// WithLogger overrides the default slog logger used for single-step
// mode transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) { v.logger = logger }
}

// WithClock overrides the time source used to pace the hole-fill
// backoff in fillReadQueue. Defaults to clock.SystemClock; tests inject
// a fake clock to keep the backoff deterministic.
func WithClock(clk clock.Clock) Option {
	return func(v *View) { v.clock = clk }
}

// NewView creates a stream view over streamID, backed by log and seq.
func NewView(streamID uuid.UUID, log logunit.Client, seq sequencer.Client, opts ...Option) *View {
	singleStepMetricsOnce.Do(func() {
		prometheus.MustRegister(singleStepTransitionsTotal)
	})
	v := &View{
		streamID:   streamID,
		log:        log,
		seq:        seq,
		discoverer: NewBackpointerDiscoverer(),
		trimPolicy: PropagateTrimmed,
		logger:     slog.Default(),
		clock:      clock.SystemClock,
		ctx:        newStreamContext(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Reset clears the view's queues and pointers, as if newly created.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ctx.reset()
	v.singleStepMode = false
}

// Current returns the entry at the view's current position, if any
// entry has been yielded yet.
func (v *View) Current(ctx context.Context) (logunit.Entry, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !address.IsAddress(v.ctx.globalPointer) {
		return logunit.Entry{}, false, nil
	}
	entry, err := v.log.Read(ctx, v.ctx.globalPointer)
	if err != nil {
		return logunit.Entry{}, false, err
	}
	return entry, true, nil
}

func (v *View) logModeTransition(singleStep bool) {
	if singleStep == v.singleStepMode {
		return
	}
	v.singleStepMode = singleStep
	if singleStep {
		v.logger.Debug("stream view entering single-step scan", "stream", v.streamID)
		singleStepTransitionsTotal.Inc()
	} else {
		v.logger.Debug("stream view leaving single-step scan", "stream", v.streamID)
	}
}

// fillReadQueue implements spec §4.D's address-discovery walk. It
// returns whether the read queue or checkpoint queue is non-empty
// after the walk.
func (v *View) fillReadQueue(ctx context.Context, maxGlobal address.GlobalAddress) (bool, error) {
	tok, err := v.seq.TokenQuery(ctx, []uuid.UUID{v.streamID})
	if err != nil {
		return false, util.StatusWrap(err, "Failed to query stream tail")
	}
	tail, ok := tok.StreamAddressMap[v.streamID]
	if !ok {
		tail = address.NonExist
	}
	if tail > maxGlobal {
		tail = maxGlobal
	}

	if tail <= v.ctx.globalPointer {
		return false, nil
	}

	stopAddress := v.ctx.globalPointer
	if v.ctx.checkpoint.found {
		stopAddress = address.Max(stopAddress, v.ctx.checkpoint.startAddr)
	}

	filter := &checkpointFilter{}
	current := tail
	for current > stopAddress {
		entry, err := v.log.Read(ctx, current)
		if err != nil {
			if logunit.IsTrimmed(err) {
				if v.trimPolicy == IgnoreTrimmed {
					v.ctx.trimmedAtEnd = true
					return !v.ctx.readQueue.Empty() || !v.ctx.readCpQueue.Empty(), nil
				}
				return false, util.StatusWrap(err, "Failed to read trimmed address while filling read queue")
			}
			return false, util.StatusWrap(err, "Failed to read address while filling read queue")
		}

		if entry.Type == logunit.Empty {
			// An allocated-but-unwritten address must be holed so
			// that a hole never silently blocks a later reader from
			// making progress (spec §8's hole-recovery scenario).
			if err := v.fillHoleWithBackoff(ctx, current); err != nil {
				return false, util.StatusWrap(err, "Failed to fill hole while walking backward")
			}
		}

		stop := false
		if entry.ContainsStream(v.streamID) {
			decision, toCpQueue := filter.consult(entry)
			switch decision {
			case decisionInclude:
				if toCpQueue {
					v.ctx.readCpQueue.Add(current)
				} else {
					v.ctx.readQueue.Add(current)
				}
			case decisionIncludeStop:
				if toCpQueue {
					v.ctx.readCpQueue.Add(current)
				} else {
					v.ctx.readQueue.Add(current)
				}
				if filter.success.found {
					v.ctx.checkpoint = filter.success
				}
				stop = true
			case decisionExclude:
			}
		}
		if stop {
			break
		}

		next, singleStep := v.discoverer.DiscoverAddressSpace(v.streamID, current, entry)
		v.logModeTransition(singleStep)
		current = next
	}

	return !v.ctx.readQueue.Empty() || !v.ctx.readCpQueue.Empty(), nil
}

// fillHoleWithBackoff holes ga, but first waits a short jittered delay
// and rechecks the address: another view walking the same range
// concurrently may have already holed (or written to) it, in which
// case this view's own FillHole call would be a wasted round trip.
func (v *View) fillHoleWithBackoff(ctx context.Context, ga address.GlobalAddress) error {
	jitter := float64(holeFillBackoff) * holeFillJitterFraction * (2*random.FastThreadSafeGenerator.Float64() - 1)
	_, timerChan := v.clock.NewTimer(holeFillBackoff + time.Duration(jitter))
	select {
	case <-timerChan:
	case <-ctx.Done():
		return ctx.Err()
	}

	entry, err := v.log.Read(ctx, ga)
	if err != nil {
		return err
	}
	if entry.Type != logunit.Empty {
		// Another client filled or wrote to ga while we waited.
		return nil
	}
	return v.log.FillHole(ctx, ga)
}

// Next returns the next entry of the stream at an address no greater
// than maxGlobal, or ok == false if none is yet available.
func (v *View) Next(ctx context.Context, maxGlobal address.GlobalAddress) (logunit.Entry, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nextLocked(ctx, maxGlobal)
}

func (v *View) nextLocked(ctx context.Context, maxGlobal address.GlobalAddress) (logunit.Entry, bool, error) {
	for {
		if v.ctx.trimmedAtEnd {
			return logunit.Entry{}, false, nil
		}

		if v.ctx.readCpQueue.Empty() && v.ctx.readQueue.Empty() {
			nonEmpty, err := v.fillReadQueue(ctx, maxGlobal)
			if err != nil {
				return logunit.Entry{}, false, err
			}
			if v.ctx.trimmedAtEnd || !nonEmpty {
				return logunit.Entry{}, false, nil
			}
		}

		if !v.ctx.readCpQueue.Empty() {
			a, _ := v.ctx.readCpQueue.PollFirst()
			entry, err := v.log.Read(ctx, a)
			if err != nil {
				return logunit.Entry{}, false, err
			}
			// Resolution to the open question in spec §9: fast-
			// forward globalPointer once the checkpoint queue and
			// read queue both drain, but never past maxGlobal.
			if v.ctx.readCpQueue.Empty() && v.ctx.readQueue.Empty() && v.ctx.checkpoint.found {
				target := address.Min(v.ctx.checkpoint.endAddr, maxGlobal)
				if target > v.ctx.globalPointer {
					v.ctx.globalPointer = target
					v.publish(v.ctx.globalPointer)
				}
			}
			return entry, true, nil
		}

		first, ok := v.ctx.readQueue.First()
		if !ok || first > maxGlobal {
			return logunit.Entry{}, false, nil
		}

		found := false
		var foundEntry logunit.Entry
		for {
			a, ok := v.ctx.readQueue.PollFirst()
			if !ok {
				break
			}
			entry, err := v.log.Read(ctx, a)
			if err != nil {
				return logunit.Entry{}, false, err
			}
			if entry.ContainsStream(v.streamID) {
				v.ctx.globalPointer = a
				v.ctx.resolvedQueue.Add(a)
				v.ctx.maxResolution = address.Max(v.ctx.maxResolution, a)
				found = true
				foundEntry = entry
				break
			}
			next, ok := v.ctx.readQueue.First()
			if !ok || next > maxGlobal {
				return logunit.Entry{}, false, nil
			}
		}
		if found {
			v.publish(v.ctx.globalPointer)
			return foundEntry, true, nil
		}
		// readQueue exhausted without a match: refill and retry.
	}
}

func (v *View) publish(a address.GlobalAddress) {
	if v.bus != nil {
		v.bus.publish(a)
	}
}

// ContextFunc inspects an entry during NextBatch and reports whether
// the batch should be truncated at (and including) this entry.
type ContextFunc func(logunit.Entry) bool

// NextBatch fills the read queue to maxGlobal, parallel-reads every
// candidate address at or below maxGlobal, and returns the DATA
// entries belonging to this stream, truncated early if contextFn
// reports true for one of them (spec §4.D).
func (v *View) NextBatch(ctx context.Context, maxGlobal address.GlobalAddress, contextFn ContextFunc) ([]logunit.Entry, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ctx.trimmedAtEnd {
		return nil, false, nil
	}

	if v.ctx.readQueue.Empty() && v.ctx.readCpQueue.Empty() {
		nonEmpty, err := v.fillReadQueue(ctx, maxGlobal)
		if err != nil {
			return nil, false, err
		}
		if v.ctx.trimmedAtEnd || !nonEmpty {
			return nil, false, nil
		}
	}

	addrs := v.ctx.readQueue.TakeUpTo(maxGlobal)
	if len(addrs) == 0 {
		return nil, false, nil
	}

	entries, err := v.log.ReadAll(ctx, addrs)
	if err != nil {
		return nil, false, err
	}

	var filtered []logunit.Entry
	for i, e := range entries {
		if e.Type == logunit.Data && e.ContainsStream(v.streamID) {
			filtered = append(filtered, e)
			if contextFn != nil && contextFn(e) {
				for _, leftover := range addrs[i+1:] {
					v.ctx.readQueue.Add(leftover)
				}
				break
			}
		}
	}

	for _, e := range filtered {
		v.ctx.resolvedQueue.Add(e.Address)
		v.ctx.maxResolution = address.Max(v.ctx.maxResolution, e.Address)
	}
	if len(filtered) > 0 {
		last := filtered[len(filtered)-1].Address
		if last > v.ctx.globalPointer {
			v.ctx.globalPointer = last
		}
		v.publish(v.ctx.globalPointer)
	}
	return filtered, len(filtered) > 0, nil
}

// Previous returns the entry immediately before the view's current
// position, resolving further backward if necessary (spec §4.D).
func (v *View) Previous(ctx context.Context) (logunit.Entry, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	prev, ok := v.ctx.resolvedQueue.Lower(v.ctx.globalPointer)
	if !ok && v.ctx.minResolution != address.NonAddress {
		if err := v.resolveBackward(ctx); err != nil {
			return logunit.Entry{}, false, err
		}
		v.ctx.minResolution = address.NonAddress
		prev, ok = v.ctx.resolvedQueue.Lower(v.ctx.globalPointer)
	}
	if !ok {
		return logunit.Entry{}, false, nil
	}

	v.ctx.readQueue.Add(v.ctx.globalPointer)
	v.ctx.globalPointer = prev

	entry, err := v.log.Read(ctx, prev)
	if err != nil {
		return logunit.Entry{}, false, err
	}
	return entry, true, nil
}

// resolveBackward extends the resolved queue downward past
// minResolution, one address at a time, stopping at a trim or the
// start of the log. This trades the backpointer-accelerated walk used
// by fillReadQueue for a plain linear scan, since the backpointer
// chain below the current resolution horizon is not cached; callers
// pay this cost only the first time Previous needs to look further
// back than any prior Next call has resolved.
func (v *View) resolveBackward(ctx context.Context) error {
	bound := v.ctx.globalPointer
	if v.ctx.minResolution != address.NonAddress && v.ctx.minResolution < bound {
		bound = v.ctx.minResolution
	}

	for current := bound - 1; current >= 0; current-- {
		entry, err := v.log.Read(ctx, current)
		if err != nil {
			if logunit.IsTrimmed(err) {
				return nil
			}
			return util.StatusWrap(err, "Failed to resolve address while walking backward")
		}
		if entry.ContainsStream(v.streamID) {
			v.ctx.resolvedQueue.Add(current)
		}
	}
	return nil
}

// Find ensures the view has resolved at least up to addr, then
// returns the closest resolved address to addr in the given
// direction, or address.NotFound if none exists.
func (v *View) Find(ctx context.Context, addr address.GlobalAddress, dir address.Direction) (address.GlobalAddress, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for v.ctx.globalPointer < addr {
		_, ok, err := v.nextLocked(ctx, addr)
		if err != nil {
			return address.NotFound, err
		}
		if !ok {
			break
		}
	}

	if v.ctx.resolvedQueue.Contains(addr) {
		return addr, nil
	}
	if dir == address.Forward {
		if higher, ok := v.ctx.resolvedQueue.Higher(addr); ok {
			return higher, nil
		}
		return address.NotFound, nil
	}
	if lower, ok := v.ctx.resolvedQueue.Lower(addr); ok {
		return lower, nil
	}
	return address.NotFound, nil
}

// Seek repositions the view so that the next call to Next yields the
// smallest resolved-or-candidate address >= addr.
func (v *View) Seek(addr address.GlobalAddress) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.ctx.readQueue.RemoveBelow(addr)
	for _, a := range v.ctx.resolvedQueue.TailFromRemove(addr) {
		v.ctx.readQueue.Add(a)
	}
	v.ctx.globalPointer = addr - 1

	// Open question in spec §9: clamp rather than allow
	// minResolution > maxResolution.
	v.ctx.minResolution = addr
	if v.ctx.minResolution > v.ctx.maxResolution {
		v.ctx.maxResolution = v.ctx.minResolution
	}
}
