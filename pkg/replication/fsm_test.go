package replication_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sharedlog/corfu-go/pkg/replication"
)

// TestSnapshotRetryCancelsPriorTask exercises spec §8 scenario 5: from
// IN_SNAPSHOT_SYNC, a second SNAPSHOT_SYNC_REQUEST must cancel the
// prior snapshot reader before starting a new one, leaving exactly one
// active afterward.
func TestSnapshotRetryCancelsPriorTask(t *testing.T) {
	var active atomic.Int32
	var canceled atomic.Int32
	started := make(chan struct{}, 8)

	snapshotReader := func(ctx context.Context, emit func(replication.Event)) {
		active.Add(1)
		started <- struct{}{}
		<-ctx.Done()
		canceled.Add(1)
		active.Add(-1)
	}

	fsm := replication.New(snapshotReader, nil)
	fsm.Submit(replication.SnapshotSyncRequest)
	<-started

	require.Equal(t, replication.InSnapshotSync, fsm.State())
	require.EqualValues(t, 1, active.Load())

	fsm.Submit(replication.SnapshotSyncRequest)
	<-started

	require.Eventually(t, func() bool { return active.Load() == 1 }, time.Second, time.Millisecond)
	require.EqualValues(t, 1, canceled.Load())
	require.Equal(t, replication.InSnapshotSync, fsm.State())
}

// TestLeadershipLostMidLogEntrySync exercises spec §8 scenario 6:
// from IN_LOG_ENTRY_SYNC, LEADERSHIP_LOST transitions to INITIALIZED,
// cancels the delta follower, and leaves no task scheduled.
func TestLeadershipLostMidLogEntrySync(t *testing.T) {
	followerDone := make(chan struct{})
	followerStarted := make(chan struct{})

	deltaFollower := func(ctx context.Context, emit func(replication.Event)) {
		close(followerStarted)
		<-ctx.Done()
		close(followerDone)
	}

	fsm := replication.New(nil, deltaFollower)
	fsm.Submit(replication.StartLogEntrySync)
	<-followerStarted
	require.Equal(t, replication.InLogEntrySync, fsm.State())

	fsm.Submit(replication.LeadershipLost)

	select {
	case <-followerDone:
	case <-time.After(time.Second):
		t.Fatal("delta follower was not canceled")
	}
	require.Equal(t, replication.Initialized, fsm.State())
}

func TestUnknownEventIsIgnored(t *testing.T) {
	fsm := replication.New(nil, nil)
	fsm.Submit(replication.TrimmedExceptionEvent)
	require.Never(t, func() bool { return fsm.State() != replication.Initialized }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestStopReachesTerminalState(t *testing.T) {
	fsm := replication.New(nil, nil)
	fsm.Submit(replication.LogReplicationStop)
	fsm.Wait()
	require.Equal(t, replication.Stopped, fsm.State())
}
