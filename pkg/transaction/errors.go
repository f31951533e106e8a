package transaction

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errSnapshotReadOnly    = status.Error(codes.FailedPrecondition, "snapshot transactions permit no writes")
	errTerminalTransaction = status.Error(codes.FailedPrecondition, "transaction has already reached a terminal state")
	errWriteNotOk          = status.Error(codes.AlreadyExists, "commit write was rejected by the log unit")
)
