package util_test

import (
	"os"
	"testing"

	"github.com/sharedlog/corfu-go/pkg/util"
	"github.com/stretchr/testify/require"
)

type exampleConfiguration struct {
	ClientID             string `json:"clientId"`
	ConnectionTimeoutSec int    `json:"connectionTimeoutSec"`
}

func TestJsonnetUnmarshalConfigurationFromFile(t *testing.T) {
	t.Run("ValidFile", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "*.jsonnet")
		require.NoError(t, err)
		_, err = f.WriteString(`{ clientId: "runtime-1", connectionTimeoutSec: 5 }`)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		var configuration exampleConfiguration
		require.NoError(t, util.UnmarshalConfigurationFromFile(f.Name(), &configuration))
		require.Equal(t, "runtime-1", configuration.ClientID)
		require.Equal(t, 5, configuration.ConnectionTimeoutSec)
	})

	t.Run("NonExistentFile", func(t *testing.T) {
		var configuration exampleConfiguration
		require.Error(t, util.UnmarshalConfigurationFromFile("/nonexistent/path.jsonnet", &configuration))
	})
}
