package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// RequireEqualStatus asserts that two grpc Statuses are equal.
func RequireEqualStatus(t *testing.T, want, got error) {
	t.Helper()
	wantProto := status.Convert(want).Proto()
	gotProto := status.Convert(got).Proto()
	if !proto.Equal(wantProto, gotProto) {
		t.Fatalf("Not equal:\nWant:\n\n%s\n\nGot:\n\n%s", mustMarshalToString(t, wantProto), mustMarshalToString(t, gotProto))
	}
}

// RequirePrefixedStatus compares two errors, assumed to be grpc
// Statuses, checking that got may have extra trailing characters in
// its message relative to want.
func RequirePrefixedStatus(t *testing.T, want, got error) {
	t.Helper()
	wantProto := status.Convert(want).Proto()
	gotProto := status.Convert(got).Proto()
	require.Condition(t, func() bool { return strings.HasPrefix(gotProto.GetMessage(), wantProto.GetMessage()) },
		"Want message of status\n%v\nto have prefix\n%v", mustMarshalToString(t, gotProto), wantProto.GetMessage())
	require.Equal(t, wantProto.GetCode(), gotProto.GetCode())
}

func mustMarshalToString(t *testing.T, message proto.Message) string {
	t.Helper()
	s, err := protojson.MarshalOptions{Multiline: true}.Marshal(message)
	require.NoError(t, err)
	return string(s)
}
