package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sharedlog/corfu-go/pkg/program"
	"github.com/sharedlog/corfu-go/pkg/replication"
)

// corfu_replication_demo drives the log-replication FSM through a
// snapshot sync followed by continuous log-entry sync against an
// in-memory transport, since concrete wire transport is out of scope
// (spec §1). It demonstrates the FSM reaching IN_LOG_ENTRY_SYNC and
// then gracefully stopping on SIGINT/SIGTERM.
func main() {
	program.RunMain(func(ctx context.Context, siblings, dependencies program.Group) error {
		snapshotReader := func(taskCtx context.Context, emit func(replication.Event)) {
			log.Print("Snapshot sync started")
			select {
			case <-time.After(200 * time.Millisecond):
				log.Print("Snapshot sync complete")
				emit(replication.StartLogEntrySync)
			case <-taskCtx.Done():
				log.Print("Snapshot sync canceled")
			}
		}

		deltaFollower := func(taskCtx context.Context, emit func(replication.Event)) {
			log.Print("Log-entry sync started")
			<-taskCtx.Done()
			log.Print("Log-entry sync stopped")
		}

		fsm := replication.New(snapshotReader, deltaFollower)
		fsm.Submit(replication.SnapshotSyncRequest)

		transport := replication.NewTransport(loopbackDialer(), time.Second)
		transport.OnReceive(func(entry replication.LogReplicationEntry) {
			log.Printf("Received replication entry type=%d epoch=%d", entry.Type, entry.Epoch)
		})

		// The transport runs as a dependency: it must keep serving
		// the FSM's in-flight tasks until they have all wound down,
		// not merely until this routine's siblings finish.
		dependencies.Go(func(depCtx context.Context, _, _ program.Group) error {
			transport.Run(depCtx)
			return nil
		})

		<-ctx.Done()
		transport.Stop()
		fsm.Submit(replication.LogReplicationStop)
		fsm.Wait()
		return nil
	})
}

// loopbackDialer returns a Dialer that connects to an in-process peer
// which simply echoes heartbeats back, standing in for the concrete
// wire transport left out of scope.
func loopbackDialer() replication.Dialer {
	return func(ctx context.Context) (replication.Conn, error) {
		return &loopbackConn{inbox: make(chan replication.LogReplicationEntry, 8)}, nil
	}
}

type loopbackConn struct {
	mu     sync.Mutex
	closed bool
	inbox  chan replication.LogReplicationEntry
}

func (c *loopbackConn) Send(entry replication.LogReplicationEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("loopback connection closed")
	}
	c.inbox <- entry
	return nil
}

func (c *loopbackConn) Receive(ctx context.Context) (replication.LogReplicationEntry, error) {
	select {
	case e, ok := <-c.inbox:
		if !ok {
			return replication.LogReplicationEntry{}, errors.New("loopback connection closed")
		}
		return e, nil
	case <-ctx.Done():
		return replication.LogReplicationEntry{}, ctx.Err()
	}
}

func (c *loopbackConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbox)
	}
	return nil
}
