package kv

import (
	"sync"

	"github.com/cockroachdb/pebble"
)

// Txn is the multi-table read-write transaction primitive consumed by the
// write engine: one pebble.Batch shared by live, deleted and changes-meta,
// committed atomically. Table/ChangesLog writes into a Txn are safe to issue
// concurrently from multiple goroutines (spec §4.3 step 5 fans the four bulk
// mutations plus the changes-meta append out concurrently before joining),
// guarded by an internal mutex — pebble.Batch itself is not safe for
// concurrent mutation.
type Txn struct {
	batch *pebble.Batch
	mu    sync.Mutex
}

// Locked runs fn with the underlying pebble.Batch while holding the txn's
// mutex; every staged write (Table/ChangesLog) goes through it.
func (tx *Txn) Locked(fn func(batch *pebble.Batch) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return fn(tx.batch)
}

// Put, Delete and Append are thin, lock-safe wrappers so callers in
// docstore don't have to reach for Locked directly for the common case.
func (tx *Txn) Put(t Table, id string, doc Document) error {
	return tx.Locked(func(b *pebble.Batch) error { return t.Put(b, id, doc) })
}

func (tx *Txn) Delete(t Table, id string) error {
	return tx.Locked(func(b *pebble.Batch) error { return t.Delete(b, id) })
}

func (tx *Txn) Append(log *ChangesLog, id string) (uint64, error) {
	var seq uint64
	err := tx.Locked(func(b *pebble.Batch) error {
		var innerErr error
		seq, innerErr = log.Append(b, id)
		return innerErr
	})
	return seq, err
}
