package replication_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sharedlog/corfu-go/pkg/replication"
)

// fakeConn is an in-memory Conn used to drive Transport in tests
// without a real socket, matching spec §1's exclusion of concrete wire
// transport.
type fakeConn struct {
	mu     sync.Mutex
	closed bool
	inbox  chan replication.LogReplicationEntry
	sent   []replication.LogReplicationEntry
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan replication.LogReplicationEntry, 8)}
}

func (c *fakeConn) Send(entry replication.LogReplicationEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.sent = append(c.sent, entry)
	return nil
}

func (c *fakeConn) Receive(ctx context.Context) (replication.LogReplicationEntry, error) {
	select {
	case e, ok := <-c.inbox:
		if !ok {
			return replication.LogReplicationEntry{}, errors.New("connection closed")
		}
		return e, nil
	case <-ctx.Done():
		return replication.LogReplicationEntry{}, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbox)
	}
	return nil
}

func TestTransportDeliversReceivedEntries(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context) (replication.Conn, error) { return conn, nil }
	transport := replication.NewTransport(dial, time.Millisecond)

	var received atomic.Int32
	transport.OnReceive(func(replication.LogReplicationEntry) { received.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go transport.Run(ctx)

	conn.inbox <- replication.LogReplicationEntry{Type: replication.Heartbeat}
	require.Eventually(t, func() bool { return received.Load() == 1 }, time.Second, time.Millisecond)
	require.EqualValues(t, 1, transport.ReceivedEntries())

	transport.Stop()
}

func TestTransportCountsSentEntries(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context) (replication.Conn, error) { return conn, nil }
	transport := replication.NewTransport(dial, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go transport.Run(ctx)

	require.Eventually(t, func() bool { return transport.Send(replication.LogReplicationEntry{}) == nil }, time.Second, time.Millisecond)
	require.NoError(t, transport.Send(replication.LogReplicationEntry{}))
	require.EqualValues(t, 2, transport.SentEntries())

	transport.Stop()
}

func TestConnectedChannelReplacedOnDisconnect(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context) (replication.Conn, error) { return conn, nil }
	transport := replication.NewTransport(dial, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go transport.Run(ctx)

	require.Eventually(t, func() bool { return transport.Send(replication.LogReplicationEntry{}) == nil }, time.Second, time.Millisecond)

	firstConnected := transport.Connected()
	conn.Close()

	select {
	case <-firstConnected:
	case <-time.After(time.Second):
		t.Fatal("connected channel was not closed on disconnect")
	}

	secondConnected := transport.Connected()
	require.NotEqual(t, firstConnected, secondConnected)

	transport.Stop()
}
