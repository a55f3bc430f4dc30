package docstore

import (
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// subscriberBuffer bounds how far a slow subscriber can lag before its
// oldest unread bulk is dropped — the stream is explicitly not guaranteed to
// retain backlog (spec §4.4, §9).
const subscriberBuffer = 64

// changeFeed is the broadcast publish/subscribe stream of EventBulk values,
// spec §4.4. Its subscriber registry is a concurrent map keyed by a random
// subscription id, the same role xsync.MapOf plays for the teacher's
// connection table in protocol/net.go — grounded here in a typed,
// in-process broadcaster rather than a wire-level peer table.
//
// mu arbitrates sends against channel closes: Publish holds it shared while
// delivering, Close and unsubscribe hold it exclusively while closing, so a
// channel is never closed mid-send.
type changeFeed struct {
	subs   *xsync.MapOf[string, chan EventBulk]
	mu     sync.RWMutex
	closed bool
}

func newChangeFeed() *changeFeed {
	return &changeFeed{subs: xsync.NewMapOf[string, chan EventBulk]()}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. The channel is closed when the feed itself closes.
func (f *changeFeed) Subscribe() (<-chan EventBulk, func()) {
	id := uuid.NewString()
	ch := make(chan EventBulk, subscriberBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subs.Store(id, ch)
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if ch, ok := f.subs.LoadAndDelete(id); ok {
			close(ch)
		}
	}
}

// Publish broadcasts bulk to every current subscriber without blocking the
// writer: a subscriber that isn't keeping up has its oldest bulk dropped
// rather than stalling the publisher (spec §5(d): "publication on the
// change stream (non-blocking)").
func (f *changeFeed) Publish(bulk EventBulk) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	f.subs.Range(func(_ string, ch chan EventBulk) bool {
		select {
		case ch <- bulk:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- bulk:
			default:
			}
		}
		return true
	})
}

// Close completes the stream for every current subscriber and rejects
// further subscriptions. Idempotent.
func (f *changeFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.subs.Range(func(id string, ch chan EventBulk) bool {
		f.subs.Delete(id)
		close(ch)
		return true
	})
}
