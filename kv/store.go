// Package kv adapts github.com/cockroachdb/pebble into the three-table,
// transactional substrate the document storage core is built on: a "live"
// table, a "deleted" table, and an append-only "changes-meta" log, all
// sharing one pebble.DB keyed by a per-collection prefix — the same
// big-endian-prefixed-key convention the teacher uses in chotki.go/objects.go
// (OKey/VKey), adapted from CRDT object ids to plain document ids.
package kv

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Options configures a Store, following the teacher's zero-value-friendly
// Options{...}/SetDefaults() convention (chotki.go's Options).
type Options struct {
	// ReadOnly opens the underlying pebble.DB read-only.
	ReadOnly bool
}

func (o *Options) setDefaults() {}

// WriteOptions is the write durability policy used for every batch commit:
// unsynced, matching the teacher's package-level `WriteOptions = pebble.WriteOptions{Sync: false}`.
var WriteOptions = pebble.WriteOptions{Sync: false}

// Store owns one pebble.DB shared by every collection opened against it.
// Collections are namespaced within it by key prefix; there is one Store per
// on-disk database directory.
type Store struct {
	db   *pebble.DB
	dir  string
	opts Options
}

// Open opens (creating if necessary) the pebble database rooted at dir.
func Open(dir string, opts Options) (*Store, error) {
	opts.setDefaults()
	popts := &pebble.Options{
		ReadOnly: opts.ReadOnly,
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, errors.Wrapf(err, "kv: opening %s", dir)
	}
	return &Store{db: db, dir: dir, opts: opts}, nil
}

// Close releases the underlying pebble.DB. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Collection binds a (database, name) pair to its three tables within this
// Store. database and name are opaque strings used only to namespace keys.
func (s *Store) Collection(database, name string) (*Collection, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	prefix := append([]byte(database), 0)
	prefix = append(prefix, []byte(name)...)
	prefix = append(prefix, 0)
	return &Collection{
		store:  s,
		prefix: prefix,
		live: Table{
			db:     s.db,
			tag:    tagLive,
			idxTag: tagLiveIdx,
			base:   prefix,
		},
		deleted: Table{
			db:     s.db,
			tag:    tagDeleted,
			idxTag: tagDeletedIdx,
			base:   prefix,
		},
		changes: ChangesLog{
			db:   s.db,
			base: prefix,
		},
	}, nil
}

const (
	tagLive       byte = 'L'
	tagDeleted    byte = 'D'
	tagChanges    byte = 'C'
	tagSeq        byte = 'S'
	tagLiveIdx    byte = 'l'
	tagDeletedIdx byte = 'd'
)
