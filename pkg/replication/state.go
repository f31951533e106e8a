package replication

// State is the FSM's current position, exactly one of five values at
// all times (spec §4.F, §8 invariant 7).
type State int

const (
	Initialized State = iota
	InRequireSnapshotSync
	InSnapshotSync
	InLogEntrySync
	Stopped
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "INITIALIZED"
	case InRequireSnapshotSync:
		return "IN_REQUIRE_SNAPSHOT_SYNC"
	case InSnapshotSync:
		return "IN_SNAPSHOT_SYNC"
	case InLogEntrySync:
		return "IN_LOG_ENTRY_SYNC"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Event is an input to the FSM's transition table (spec §4.F).
type Event int

const (
	SnapshotSyncRequest Event = iota
	SnapshotSyncCancel
	TrimmedExceptionEvent
	LeadershipLost
	StartLogEntrySync
	LogReplicationStop
)

func (e Event) String() string {
	switch e {
	case SnapshotSyncRequest:
		return "SNAPSHOT_SYNC_REQUEST"
	case SnapshotSyncCancel:
		return "SNAPSHOT_SYNC_CANCEL"
	case TrimmedExceptionEvent:
		return "TRIMMED_EXCEPTION"
	case LeadershipLost:
		return "LEADERSHIP_LOST"
	case StartLogEntrySync:
		return "START_LOG_ENTRY_SYNC"
	case LogReplicationStop:
		return "LOG_REPLICATION_STOP"
	default:
		return "UNKNOWN"
	}
}

// transitions is the explicit registration table keyed by (state,
// event), replacing reflection/annotation-scanned dispatch per spec
// §9's corresponding design note. A missing entry means the event is
// unknown in that state: it is logged and ignored rather than treated
// as an error (spec §4.F).
var transitions = map[State]map[Event]State{
	Initialized: {
		SnapshotSyncRequest: InSnapshotSync,
		StartLogEntrySync:   InLogEntrySync,
		LogReplicationStop:  Stopped,
	},
	InSnapshotSync: {
		SnapshotSyncRequest: InSnapshotSync,
		SnapshotSyncCancel:  InRequireSnapshotSync,
		TrimmedExceptionEvent: InRequireSnapshotSync,
		LeadershipLost:      Initialized,
		StartLogEntrySync:   InLogEntrySync,
		LogReplicationStop:  Stopped,
	},
	InLogEntrySync: {
		TrimmedExceptionEvent: InRequireSnapshotSync,
		SnapshotSyncRequest:   InSnapshotSync,
		LeadershipLost:        Initialized,
		LogReplicationStop:    Stopped,
	},
	InRequireSnapshotSync: {
		SnapshotSyncRequest: InSnapshotSync,
		LeadershipLost:      Initialized,
		LogReplicationStop:  Stopped,
	},
	Stopped: {},
}
