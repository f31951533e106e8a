package logunit

import (
	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/eviction"
)

// checkpointPayloadCacheCapacity bounds how many decompressed
// checkpoint payloads memoryUnit keeps around, since checkpoint
// snapshots can be large and repeated reads of the same CONTINUATION
// record (e.g. by several catching-up readers) would otherwise pay the
// Zstandard decompression cost every time.
const checkpointPayloadCacheCapacity = 64

// checkpointPayloadCache is an LRU cache of decompressed checkpoint
// payloads keyed by address, built on the teacher's cache replacement
// primitive rather than a hand-rolled recency list.
type checkpointPayloadCache struct {
	policy   eviction.Set[address.GlobalAddress]
	payloads map[address.GlobalAddress][]byte
}

func newCheckpointPayloadCache() *checkpointPayloadCache {
	return &checkpointPayloadCache{
		policy:   eviction.NewMetricsSet(eviction.NewLRUSet[address.GlobalAddress](), "checkpoint_payload_cache"),
		payloads: map[address.GlobalAddress][]byte{},
	}
}

func (c *checkpointPayloadCache) get(ga address.GlobalAddress) ([]byte, bool) {
	payload, ok := c.payloads[ga]
	if ok {
		c.policy.Touch(ga)
	}
	return payload, ok
}

func (c *checkpointPayloadCache) put(ga address.GlobalAddress, payload []byte) {
	if _, ok := c.payloads[ga]; ok {
		c.payloads[ga] = payload
		c.policy.Touch(ga)
		return
	}
	for len(c.payloads) >= checkpointPayloadCacheCapacity {
		evict := c.policy.Peek()
		c.policy.Remove()
		// Peek/Remove may surface an address already tombstoned by
		// invalidate; keep evicting until an actual payload is freed.
		if _, ok := c.payloads[evict]; ok {
			delete(c.payloads, evict)
			break
		}
	}
	c.payloads[ga] = payload
	c.policy.Insert(ga)
}

// invalidate drops ga's cached payload, called when its entry is
// trimmed so the cache never serves stale data. The eviction policy's
// Set has no arbitrary-removal operation (only Peek/Remove of the
// oldest element), so the entry is left tracked there until it is
// naturally evicted; deleting it from payloads is enough to stop it
// from being served, mirroring digest.ExistenceCache.Remove's
// tombstone-in-place approach.
func (c *checkpointPayloadCache) invalidate(ga address.GlobalAddress) {
	delete(c.payloads, ga)
}
