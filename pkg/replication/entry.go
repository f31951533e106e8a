// Package replication implements the log-replication FSM (component F)
// and the replication transport adapter (component G). See
// SPEC_FULL.md §4.F-G.
package replication

import "github.com/sharedlog/corfu-go/pkg/address"

// EntryType tags a LogReplicationEntry's role in the replication
// stream (spec §6).
type EntryType int

const (
	SnapshotStart EntryType = iota
	SnapshotMessage
	SnapshotEnd
	LogEntry
	Heartbeat
)

// AckCode is the wire-level acknowledgement/error taxonomy (spec §6).
type AckCode int

const (
	Ack AckCode = iota
	Nack
	WrongEpoch
	WrongClusterID
	NotReady
	ErrorServerException
)

// LogReplicationEntry is one message of the replication wire protocol.
// Concrete framing/serialization is out of scope (spec §1's exclusion
// of wire transport); this type models the logical message only.
type LogReplicationEntry struct {
	Type              EntryType
	Epoch             uint64
	Timestamp         address.GlobalAddress
	SnapshotTimestamp address.GlobalAddress
	Payload           []byte
	Ack               AckCode
}
