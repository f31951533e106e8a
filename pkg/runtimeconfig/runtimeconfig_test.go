package runtimeconfig_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharedlog/corfu-go/pkg/runtimeconfig"
	"github.com/sharedlog/corfu-go/pkg/util"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "*.jsonnet")
	require.NoError(t, err)
	_, err = f.WriteString(`{
		clientId: "node-a",
		tlsEnabled: true,
		socketType: "EPOLL",
		eventLoopThreads: 8,
	}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	config := runtimeconfig.Default()
	require.NoError(t, util.UnmarshalConfigurationFromFile(f.Name(), &config))

	require.Equal(t, "node-a", config.ClientID)
	require.True(t, config.TLSEnabled)
	require.Equal(t, runtimeconfig.SocketEpoll, config.SocketType)
	require.Equal(t, 8, config.EventLoopThreads)
	// Fields absent from the overlay retain their defaults.
	require.EqualValues(t, 10, config.HandshakeTimeoutSec)
	require.EqualValues(t, 3, config.WorkflowRetry)
}
