package replication

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fsmMetricsOnce sync.Once

	fsmTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corfu",
			Subsystem: "replication_fsm",
			Name:      "transitions_total",
			Help:      "Total number of log-replication FSM state transitions.",
		},
		[]string{"from", "to"})
)

// Task is a long-running action launched on entry to a state
// (snapshot reader or delta follower). It observes ctx for
// cooperative cancellation and reports outcomes by calling emit,
// rather than mutating FSM state directly (spec §4.F, §5's "action
// tasks... communicate with the FSM only by enqueueing events").
type Task func(ctx context.Context, emit func(Event))

// FSM drives the log-replication state machine. Every transition is
// processed on a single dispatcher goroutine, so that
// processEvent -> onExit(oldState) -> onEntry(newState) is atomic with
// respect to other events (spec §4.F, §5).
type FSM struct {
	snapshotReader Task
	deltaFollower  Task
	logger         *slog.Logger

	events chan Event
	done   chan struct{}

	mu          sync.Mutex
	state       State
	cancelTask  context.CancelFunc
	taskWG      sync.WaitGroup
	stoppedOnce sync.Once
}

// Option configures an FSM at construction.
type Option func(*FSM)

// WithLogger overrides the FSM's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *FSM) { f.logger = logger }
}

// New constructs an FSM in the INITIALIZED state and starts its
// dispatcher goroutine. snapshotReader and deltaFollower are invoked
// on entry to IN_SNAPSHOT_SYNC and IN_LOG_ENTRY_SYNC respectively.
func New(snapshotReader, deltaFollower Task, opts ...Option) *FSM {
	f := &FSM{
		snapshotReader: snapshotReader,
		deltaFollower:  deltaFollower,
		logger:         slog.Default(),
		events:         make(chan Event, 16),
		done:           make(chan struct{}),
		state:          Initialized,
	}
	for _, opt := range opts {
		opt(f)
	}
	fsmMetricsOnce.Do(func() {
		prometheus.MustRegister(fsmTransitionsTotal)
	})
	go f.dispatchLoop()
	return f
}

// State returns the FSM's current state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit enqueues an event for processing by the dispatcher. Submit
// never blocks the caller on FSM internals; it only blocks if the
// event queue is full, which indicates a stuck dispatcher.
func (f *FSM) Submit(event Event) {
	select {
	case f.events <- event:
	case <-f.done:
	}
}

// Wait blocks until the FSM reaches STOPPED.
func (f *FSM) Wait() {
	<-f.done
}

func (f *FSM) dispatchLoop() {
	for event := range f.events {
		if f.processEvent(event) {
			close(f.done)
			return
		}
	}
}

// processEvent applies one event to the current state as a single
// atomic unit: onExit(old), transition, onEntry(new). Returns true if
// the FSM reached STOPPED and the dispatcher should terminate.
func (f *FSM) processEvent(event Event) bool {
	f.mu.Lock()
	old := f.state
	next, ok := transitions[old][event]
	if !ok {
		f.mu.Unlock()
		f.logger.Info("Ignoring event not valid in current state", "state", old, "event", event)
		return false
	}
	f.state = next
	f.mu.Unlock()

	f.onExit(old, next)
	f.onEntry(next)

	return next == Stopped
}

// onExit runs before the state variable changes are observed by a new
// task launch. Currently a hook point; no state requires exit-side
// cleanup beyond what onEntry's cancellation already performs.
func (f *FSM) onExit(old, next State) {
	f.logger.Debug("Replication FSM transition", "from", old, "to", next)
	fsmTransitionsTotal.WithLabelValues(old.String(), next.String()).Inc()
}

// onEntry launches (or cancels) the task associated with the new
// state. Re-entering IN_SNAPSHOT_SYNC from itself, or leaving it via
// LEADERSHIP_LOST, cancels the prior task before anything else runs
// (spec §4.F's cancellation clause).
func (f *FSM) onEntry(state State) {
	f.cancelActiveTask()

	switch state {
	case InSnapshotSync:
		f.launchTask(f.snapshotReader)
	case InLogEntrySync:
		f.launchTask(f.deltaFollower)
	case Initialized, InRequireSnapshotSync, Stopped:
		// No task is associated with these states; any prior
		// task was already canceled above.
	}
}

func (f *FSM) cancelActiveTask() {
	f.mu.Lock()
	cancel := f.cancelTask
	f.cancelTask = nil
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.taskWG.Wait()
}

func (f *FSM) launchTask(task Task) {
	if task == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	f.cancelTask = cancel
	f.mu.Unlock()

	f.taskWG.Add(1)
	go func() {
		defer f.taskWG.Done()
		task(ctx, func(event Event) {
			if ctx.Err() != nil {
				// Canceled tasks must not affect FSM state;
				// their outcome arrived too late to matter.
				return
			}
			f.Submit(event)
		})
	}()
}
