package kv

import "sync"

// Collection binds the live/deleted/changes-meta tables for one named
// collection within a Store, and serializes its write transactions — the
// substrate's enforcement of spec §5's "no concurrent write transaction may
// be in flight for overlapping ids", implemented here as one writer at a
// time for the whole collection (simple, and sufficient: the core never
// needs finer-grained locking than this).
type Collection struct {
	store  *Store
	prefix []byte

	live    Table
	deleted Table
	changes ChangesLog

	writeMu sync.Mutex
}

// Live returns the live-document table.
func (c *Collection) Live() Table { return c.live }

// Deleted returns the tombstone table.
func (c *Collection) Deleted() Table { return c.deleted }

// Changes returns the changes-meta log.
func (c *Collection) Changes() *ChangesLog { return &c.changes }

// Update runs fn inside a single read-write transaction covering all three
// tables, committing fn's staged batch atomically on success. Only one
// Update runs at a time per Collection. On abort the changes-meta counter is
// invalidated so sequences staged by fn are reissued, keeping the log
// gap-free.
func (c *Collection) Update(fn func(tx *Txn) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx := &Txn{batch: c.store.db.NewBatch()}
	if err := fn(tx); err != nil {
		_ = tx.batch.Close()
		c.changes.invalidate()
		return err
	}
	if err := tx.batch.Commit(&WriteOptions); err != nil {
		_ = tx.batch.Close()
		c.changes.invalidate()
		return err
	}
	return nil
}

// Remove clears live and changes-meta (the deleted table is left for the
// substrate's own cleanup policy — spec §4.6).
func (c *Collection) Remove() error {
	if err := c.live.Clear(); err != nil {
		return err
	}
	return c.changes.Clear()
}
