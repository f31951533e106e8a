package logunit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharedlog/corfu-go/pkg/address"
)

func TestCheckpointPayloadCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newCheckpointPayloadCache()
	for i := 0; i < checkpointPayloadCacheCapacity; i++ {
		c.put(address.GlobalAddress(i), []byte{byte(i)})
	}
	// Touch address 0 so it is no longer the least recently used.
	_, ok := c.get(0)
	require.True(t, ok)

	c.put(address.GlobalAddress(checkpointPayloadCacheCapacity), []byte("new"))

	_, ok = c.get(0)
	require.True(t, ok, "recently touched entry should survive eviction")
	_, ok = c.get(1)
	require.False(t, ok, "least recently used entry should have been evicted")
}

func TestCheckpointPayloadCacheInvalidate(t *testing.T) {
	c := newCheckpointPayloadCache()
	c.put(5, []byte("payload"))
	c.invalidate(5)

	_, ok := c.get(5)
	require.False(t, ok)
}
