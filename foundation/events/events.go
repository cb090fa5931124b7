// Package events allows for the registering and receiving of last block
// notifications. The stream is best effort: a subscriber that is not ready
// to receive misses the intermediate value and only observes the newest one.
package events

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// BlockInfo is the notification published on every committed chain change.
type BlockInfo struct {
	ID     transaction.Digest
	Height uint64
	Score  *big.Int
	Ready  bool
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive last block notifications.
type Events struct {
	m  map[string]chan BlockInfo
	mu sync.RWMutex
}

// New constructs an events for registering and receiving notifications.
func New() *Events {
	return &Events{
		m: make(map[string]chan BlockInfo),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive notifications.
func (evt *Events) Acquire(id string) chan BlockInfo {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	// Since a message will be dropped if the receiver is not ready, this
	// arbitrary buffer should give the receiver enough time to not lose a
	// message. Websocket send could take long.
	const messageBuffer = 100

	evt.m[id] = make(chan BlockInfo, messageBuffer)
	return evt.m[id]
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Send signals a notification to every registered channel. Send will not
// block waiting for a receiver on any given channel.
func (evt *Events) Send(info BlockInfo) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- info:
		default:
		}
	}
}
