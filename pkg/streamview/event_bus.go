package streamview

import (
	"sync"

	"github.com/sharedlog/corfu-go/pkg/address"
)

// EventBus replaces the original's process-wide VloVersionListener
// registry (spec §5, §9) with an explicit, per-runtime-instance
// subscriber list. Subscribe returns an unsubscribe handle instead of
// requiring callers to remember and pass back their original
// listener value.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[int]func(address.GlobalAddress)
	nextID      int
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: map[int]func(address.GlobalAddress){}}
}

// Subscribe registers fn to be called every time the owning view
// advances to a new address. The returned function unsubscribes fn;
// it is safe to call more than once.
func (b *EventBus) Subscribe(fn func(address.GlobalAddress)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// publish notifies every current subscriber of the new address. The
// subscriber list is snapshotted before iteration so that a handler
// unsubscribing itself (or another handler) does not race the
// iteration.
func (b *EventBus) publish(a address.GlobalAddress) {
	b.mu.Lock()
	snapshot := make([]func(address.GlobalAddress), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		snapshot = append(snapshot, fn)
	}
	b.mu.Unlock()

	for _, fn := range snapshot {
		fn(a)
	}
}
