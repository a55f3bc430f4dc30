package kv

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Document is the wire shape stored in live/deleted: an arbitrary
// JSON-serializable document body keyed by id at the kv layer (the id itself
// lives in the key, not necessarily the body).
type Document = map[string]any

// Table is one of the two document partitions (live, deleted) within a
// Collection: a flat id -> document mapping, encoded as JSON and keyed by a
// per-collection, per-table byte prefix, the same "prefix byte then payload"
// key convention as the teacher's OKey. Alongside the primary keyspace each
// table maintains a secondary index over the document's $lastWriteAt
// timestamp, kept in step on every Put/Delete.
type Table struct {
	db     *pebble.DB
	tag    byte
	idxTag byte
	base   []byte
}

func (t Table) key(id string) []byte {
	k := make([]byte, 0, len(t.base)+1+len(id))
	k = append(k, t.base...)
	k = append(k, t.tag)
	k = append(k, id...)
	return k
}

func (t Table) prefix() []byte {
	return append(append([]byte{}, t.base...), t.tag)
}

func (t Table) idxPrefix() []byte {
	return append(append([]byte{}, t.base...), t.idxTag)
}

// idxKey orders index entries by timestamp then id. The timestamp is
// sign-flipped into uint64 so big-endian byte order matches int64 order even
// for negative values.
func (t Table) idxKey(millis int64, id string) []byte {
	k := make([]byte, 0, len(t.base)+1+8+1+len(id))
	k = append(k, t.base...)
	k = append(k, t.idxTag)
	k = binary.BigEndian.AppendUint64(k, uint64(millis)^(1<<63))
	k = append(k, 0)
	k = append(k, id...)
	return k
}

func decodeIdxKey(prefix, key []byte) (millis int64, id string, ok bool) {
	rest := key[len(prefix):]
	if len(rest) < 9 || rest[8] != 0 {
		return 0, "", false
	}
	return int64(binary.BigEndian.Uint64(rest[:8]) ^ (1 << 63)), string(rest[9:]), true
}

// lastWriteMillis reads a document's $lastWriteAt. Values arrive as int64
// when staged by the engine and as float64 after a JSON round trip.
func lastWriteMillis(doc Document) int64 {
	switch v := doc["$lastWriteAt"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// IndexEntry is one row of a table's $lastWriteAt secondary index.
type IndexEntry struct {
	ID          string
	LastWriteAt int64
}

// Get fetches a single document. ok is false if absent.
func (t Table) Get(id string) (doc Document, ok bool, err error) {
	val, closer, err := t.db.Get(t.key(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	var out Document
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// BulkGet fetches documents for ids, preserving order. Missing ids yield a
// nil entry at the corresponding position rather than an error.
func (t Table) BulkGet(ids []string) ([]Document, error) {
	out := make([]Document, len(ids))
	for i, id := range ids {
		doc, ok, err := t.Get(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = doc
		}
	}
	return out, nil
}

// Put stages a single document write into the given batch, replacing the
// document's $lastWriteAt index entry along with it.
func (t Table) Put(batch *pebble.Batch, id string, doc Document) error {
	buf, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	old, ok, err := t.Get(id)
	if err != nil {
		return err
	}
	if ok {
		if err := batch.Delete(t.idxKey(lastWriteMillis(old), id), nil); err != nil {
			return err
		}
	}
	if err := batch.Set(t.idxKey(lastWriteMillis(doc), id), nil, nil); err != nil {
		return err
	}
	return batch.Set(t.key(id), buf, nil)
}

// Delete stages a single document removal into the given batch, dropping its
// index entry too.
func (t Table) Delete(batch *pebble.Batch, id string) error {
	old, ok, err := t.Get(id)
	if err != nil {
		return err
	}
	if ok {
		if err := batch.Delete(t.idxKey(lastWriteMillis(old), id), nil); err != nil {
			return err
		}
	}
	return batch.Delete(t.key(id), nil)
}

// Clear removes every document in this table along with its index, outside
// of any transaction — used by Collection.Remove.
func (t Table) Clear() error {
	batch := t.db.NewBatch()
	for _, prefix := range [][]byte{t.prefix(), t.idxPrefix()} {
		upper := append(append([]byte{}, prefix...), 0xff)
		if err := batch.DeleteRange(prefix, upper, nil); err != nil {
			return err
		}
	}
	return batch.Commit(&WriteOptions)
}

// Scan walks every document in the table in key order, calling fn for each.
// fn returning false stops the scan early. This backs the unindexed full
// scan §4.5's query() performs.
func (t Table) Scan(fn func(id string, doc Document) (keepGoing bool, err error)) error {
	prefix := t.prefix()
	iter, err := t.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		id := string(key[len(prefix):])
		var doc Document
		if err := json.Unmarshal(iter.Value(), &doc); err != nil {
			return err
		}
		keepGoing, err := fn(id, doc)
		if err != nil {
			return err
		}
		if !keepGoing {
			break
		}
	}
	return iter.Error()
}

// RangeByLastWrite walks the $lastWriteAt index and returns entries with
// above < lastWriteAt < below (both bounds exclusive), ascending, or
// descending when reverse is set. limit caps the result count, 0 meaning
// unbounded.
func (t Table) RangeByLastWrite(above, below int64, reverse bool, limit int) ([]IndexEntry, error) {
	prefix := t.idxPrefix()
	iter, err := t.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []IndexEntry
	if reverse {
		// upper bound: first key at or past `below`
		from := t.idxKey(below, "")
		for iter.SeekLT(from); iter.Valid(); iter.Prev() {
			if !bytes.HasPrefix(iter.Key(), prefix) {
				break
			}
			millis, id, ok := decodeIdxKey(prefix, iter.Key())
			if !ok {
				break
			}
			if millis <= above {
				break
			}
			out = append(out, IndexEntry{ID: id, LastWriteAt: millis})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return out, iter.Error()
	}

	from := t.idxKey(above, "\xff")
	for iter.SeekGE(from); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		millis, id, ok := decodeIdxKey(prefix, iter.Key())
		if !ok {
			break
		}
		if millis <= above {
			continue
		}
		if millis >= below {
			break
		}
		out = append(out, IndexEntry{ID: id, LastWriteAt: millis})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// Count returns the number of documents currently in the table.
func (t Table) Count() (int, error) {
	n := 0
	err := t.Scan(func(string, Document) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}
