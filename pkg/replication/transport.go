package replication

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgatomic "github.com/sharedlog/corfu-go/pkg/atomic"
	"github.com/sharedlog/corfu-go/pkg/clock"
	"github.com/sharedlog/corfu-go/pkg/random"
	"github.com/sharedlog/corfu-go/pkg/util"
)

var (
	transportMetricsOnce sync.Once

	transportReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corfu",
			Subsystem: "replication_transport",
			Name:      "reconnects_total",
			Help:      "Total number of successful reconnections made by the replication transport.",
		})
)

// retryJitterFraction is the fraction of retryInterval added or
// subtracted at random before each reconnect sleep, to avoid many
// clients reconnecting to the same peer in lockstep after a shared
// disruption.
const retryJitterFraction = 0.2

// Dialer opens one underlying duplex connection to the replication
// peer. Concrete wire transport (TCP/TLS/gRPC framing) is out of scope
// per spec §1; Transport is parameterized over this collaborator so
// tests can supply an in-memory pair.
type Dialer func(ctx context.Context) (Conn, error)

// Conn is one connection's send/receive surface. A Send or Receive
// call after the connection has failed returns a non-nil error.
type Conn interface {
	Send(entry LogReplicationEntry) error
	// Receive blocks until the next entry arrives or the connection
	// closes.
	Receive(ctx context.Context) (LogReplicationEntry, error)
	Close() error
}

// Transport is the replication transport adapter (component G): an
// opaque duplex stream with a reconnect-until-shutdown lifecycle and a
// replaced-on-disconnect "connection future", per spec §4.G. Callers
// register receive handlers with OnReceive and send with Send;
// Connected returns a channel that closes when the current connection
// is lost, replaced by a fresh one on every reconnect so that a caller
// awaiting it is never racy against the reconnection that follows.
type Transport struct {
	dial          Dialer
	retryInterval time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	errorLogger   util.ErrorLogger

	// sentEntries and receivedEntries are updated from Send and the
	// receive loop respectively, which run concurrently with each
	// other; a plain aligned atomic counter avoids pulling mu into
	// that hot path just to keep a count.
	sentEntries     pkgatomic.Uint64
	receivedEntries pkgatomic.Uint64

	mu              sync.Mutex
	conn            Conn
	connected       chan struct{}
	receiveHandlers []func(LogReplicationEntry)
	shutdown        bool
}

// SentEntries returns the number of entries successfully handed to
// Send across the lifetime of this Transport.
func (t *Transport) SentEntries() uint64 {
	return t.sentEntries.Load()
}

// ReceivedEntries returns the number of entries delivered to receive
// handlers across the lifetime of this Transport.
func (t *Transport) ReceivedEntries() uint64 {
	return t.receivedEntries.Load()
}

// TransportOption configures a Transport at construction.
type TransportOption func(*Transport)

// WithTransportLogger overrides the Transport's logger. Defaults to
// slog.Default().
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) { t.logger = logger }
}

// WithTransportClock overrides the Transport's time source. Defaults to
// clock.SystemClock; tests inject a fake clock to control retry
// timing deterministically.
func WithTransportClock(clk clock.Clock) TransportOption {
	return func(t *Transport) { t.clock = clk }
}

// WithTransportErrorLogger overrides where dial failures are reported. Defaults
// to util.DefaultErrorLogger. Dial failures are asynchronous to any
// caller (they occur inside Run's reconnect loop), so they cannot be
// returned directly; this gives callers a hook to redirect or count
// them instead of relying solely on the debug log.
func WithTransportErrorLogger(errorLogger util.ErrorLogger) TransportOption {
	return func(t *Transport) { t.errorLogger = errorLogger }
}

// NewTransport constructs a Transport that dials via dial, retrying
// with retryInterval between attempts on disconnect. It does not dial
// by itself: call Run to start connecting, and Stop to shut it down.
func NewTransport(dial Dialer, retryInterval time.Duration, opts ...TransportOption) *Transport {
	transportMetricsOnce.Do(func() {
		prometheus.MustRegister(transportReconnectsTotal)
	})
	t := &Transport{
		dial:          dial,
		retryInterval: retryInterval,
		clock:         clock.SystemClock,
		logger:        slog.Default(),
		errorLogger:   util.DefaultErrorLogger,
		connected:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnReceive registers a callback invoked for every entry received on
// any connection this Transport ever holds. Callbacks run on the
// Transport's receive loop and must not block.
func (t *Transport) OnReceive(handler func(LogReplicationEntry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiveHandlers = append(t.receiveHandlers, handler)
}

// Connected returns a channel that is closed exactly once: when the
// connection active at the time of the call is lost. A caller that
// wants to observe every subsequent disconnection must call Connected
// again after each close, since a fresh channel is installed as soon
// as the old one closes.
func (t *Transport) Connected() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Send writes entry to the current connection. It fails if no
// connection is currently established; callers observing this should
// wait on Connected being replaced (i.e. a new connection forming)
// before retrying.
func (t *Transport) Send(entry LogReplicationEntry) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	if err := conn.Send(entry); err != nil {
		return err
	}
	t.sentEntries.Add(1)
	return nil
}

// Run drives the reconnect-until-shutdown loop. It blocks until ctx is
// canceled or Stop is called.
func (t *Transport) Run(ctx context.Context) {
	for {
		if t.isShutdown() || ctx.Err() != nil {
			return
		}
		conn, err := t.dial(ctx)
		if err != nil {
			t.logger.Warn("Replication transport dial failed, retrying", "error", err)
			t.errorLogger.Log(util.StatusWrap(err, "Replication transport dial failed"))
			if !t.sleep(ctx) {
				return
			}
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		transportReconnectsTotal.Inc()

		t.receiveLoop(ctx, conn)

		t.mu.Lock()
		t.conn = nil
		closedChan := t.connected
		t.connected = make(chan struct{})
		t.mu.Unlock()
		close(closedChan)

		if t.isShutdown() || ctx.Err() != nil {
			return
		}
		if !t.sleep(ctx) {
			return
		}
	}
}

func (t *Transport) receiveLoop(ctx context.Context, conn Conn) {
	for {
		entry, err := conn.Receive(ctx)
		if err != nil {
			return
		}
		t.receivedEntries.Add(1)
		t.mu.Lock()
		handlers := append([]func(LogReplicationEntry){}, t.receiveHandlers...)
		t.mu.Unlock()
		for _, handler := range handlers {
			handler(entry)
		}
	}
}

func (t *Transport) sleep(ctx context.Context) bool {
	jitter := float64(t.retryInterval) * retryJitterFraction * (2*random.FastThreadSafeGenerator.Float64() - 1)
	interval := t.retryInterval + time.Duration(jitter)
	_, timerChan := t.clock.NewTimer(interval)
	select {
	case <-timerChan:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *Transport) isShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

// Stop marks the transport for shutdown and closes the active
// connection, if any, so that Run returns promptly.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.shutdown = true
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
