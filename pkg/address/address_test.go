package address_test

import (
	"testing"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/stretchr/testify/require"
)

func TestIsAddress(t *testing.T) {
	require.True(t, address.IsAddress(0))
	require.True(t, address.IsAddress(42))
	require.False(t, address.IsAddress(address.NeverRead))
	require.False(t, address.IsAddress(address.NotFound))
	require.False(t, address.IsAddress(address.NonExist))
	require.False(t, address.IsAddress(address.NonAddress))
}
