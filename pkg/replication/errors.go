package replication

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errNotConnected = status.Error(codes.Unavailable, "replication transport has no active connection")

// AckCodeFromError maps an error observed while processing a
// replication entry to the wire-level AckCode taxonomy (spec §6),
// defaulting to ErrorServerException for anything unrecognized.
func AckCodeFromError(err error) AckCode {
	switch status.Code(err) {
	case codes.OK:
		return Ack
	case codes.Unavailable, codes.DeadlineExceeded:
		return NotReady
	case codes.FailedPrecondition:
		return WrongEpoch
	case codes.PermissionDenied:
		return WrongClusterID
	default:
		return ErrorServerException
	}
}
