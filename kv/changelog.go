package kv

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
)

// ChangeEntry is one row of the append-only changes-meta log: §3 "changes-meta"
// table, `{sequence, id}`.
type ChangeEntry struct {
	Sequence uint64 `json:"sequence"`
	ID       string `json:"id"`
}

// ChangesLog is the append-only, auto-sequenced changes-meta table. Sequence
// numbers are gap-free and strictly increasing in commit order (spec
// invariant 5). Append must only be called while holding the owning
// Collection's write lock (Collection.Update serializes this for you): mu
// keeps the in-memory counter itself consistent, but gap-free sequences also
// depend on only one transaction staging appends at a time.
type ChangesLog struct {
	db   *pebble.DB
	base []byte

	mu     sync.Mutex
	loaded bool
	next   uint64
}

func (c *ChangesLog) seqKey() []byte {
	return append(append([]byte{}, c.base...), tagSeq)
}

func (c *ChangesLog) entryKey(seq uint64) []byte {
	k := append(append([]byte{}, c.base...), tagChanges)
	return binary.BigEndian.AppendUint64(k, seq)
}

func (c *ChangesLog) load() error {
	if c.loaded {
		return nil
	}
	val, closer, err := c.db.Get(c.seqKey())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			c.next = 1
			c.loaded = true
			return nil
		}
		return err
	}
	defer closer.Close()
	c.next = binary.BigEndian.Uint64(val)
	c.loaded = true
	return nil
}

// Append stages one changes-meta row for id, returning its freshly assigned
// sequence number. The row and the updated counter are both staged into
// batch so they commit atomically with the rest of the write.
func (c *ChangesLog) Append(batch *pebble.Batch, id string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return 0, err
	}
	seq := c.next
	c.next++

	entry := ChangeEntry{Sequence: seq, ID: id}
	buf, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}
	if err := batch.Set(c.entryKey(seq), buf, nil); err != nil {
		return 0, err
	}
	counter := make([]byte, 8)
	binary.BigEndian.PutUint64(counter, c.next)
	if err := batch.Set(c.seqKey(), counter, nil); err != nil {
		return 0, err
	}
	return seq, nil
}

// LastAssigned returns the most recently assigned sequence number, 0 if no
// row has ever been appended.
func (c *ChangesLog) LastAssigned() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return 0, err
	}
	return c.next - 1, nil
}

// invalidate discards the in-memory counter so the next Append re-reads the
// persisted one. Called when a transaction that may have staged appends
// aborts: sequences handed out inside it were never committed, and reusing
// them keeps the log gap-free (spec invariant 5).
func (c *ChangesLog) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.next = 0
}

// Clear removes every changes-meta row and resets the sequence counter, used
// by Collection.Remove.
func (c *ChangesLog) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := append(append([]byte{}, c.base...), tagChanges)
	upper := append(append([]byte{}, prefix...), 0xff)
	batch := c.db.NewBatch()
	if err := batch.DeleteRange(prefix, upper, nil); err != nil {
		return err
	}
	if err := batch.Delete(c.seqKey(), nil); err != nil {
		return err
	}
	if err := batch.Commit(&WriteOptions); err != nil {
		return err
	}
	c.loaded = false
	c.next = 0
	return nil
}

// Direction selects which way GetChangedDocuments / RangeAfter/RangeBefore
// traverse the changes-meta log.
type Direction string

const (
	After  Direction = "after"
	Before Direction = "before"
)

// RangeAfter returns, ascending, entries with sequence > since, up to limit
// entries (0 meaning unbounded).
func (c *ChangesLog) RangeAfter(since uint64, limit int) ([]ChangeEntry, error) {
	prefix := append(append([]byte{}, c.base...), tagChanges)
	from := c.entryKey(since + 1)

	iter, err := c.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ChangeEntry
	for iter.SeekGE(from); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var e ChangeEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// RangeBefore returns, descending, entries with sequence < since, up to
// limit entries (0 meaning unbounded).
func (c *ChangesLog) RangeBefore(since uint64, limit int) ([]ChangeEntry, error) {
	prefix := append(append([]byte{}, c.base...), tagChanges)
	if since == 0 {
		return nil, nil
	}
	from := c.entryKey(since)

	iter, err := c.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ChangeEntry
	for iter.SeekLT(from); iter.Valid(); iter.Prev() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var e ChangeEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}
