package docstore

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/drpcorg/docstore/internal/logging"
	"github.com/drpcorg/docstore/kv"
	"github.com/drpcorg/docstore/primarykey"
)

// Schema identifies a caller's schema for primary-key discovery: a stable
// identity plus the schema's raw primaryKey declaration (a plain field name,
// or a compound specification — spec §6).
type Schema struct {
	ID         string
	PrimaryKey any
}

// Options configures a Collection, following the teacher's
// zero-value-friendly Options{...}/SetDefaults() convention.
type Options struct {
	// PrimaryKey describes how to find a document's id. Ignored when Schema
	// is set; defaults to a simple "id" field.
	PrimaryKey primarykey.Descriptor
	// Schema, when set, resolves the primary key from the schema's declared
	// primaryKey through a process-wide cached resolver.
	Schema *Schema
	// Logger receives the collection's structured logs. Defaults to a
	// slog-backed logger at Info level.
	Logger logging.Logger
	// Clock stamps $lastWriteAt/startTime/endTime; defaults to time.Now.
	// Injectable so tests can make write timestamps deterministic.
	Clock func() time.Time
}

func (o *Options) setDefaults() {
	if o.PrimaryKey.IsZero() && o.Schema == nil {
		o.PrimaryKey = primarykey.Simple("id")
	}
	if o.Logger == nil {
		o.Logger = logging.New(slog.LevelInfo)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// pkResolver caches schema primaryKey resolution across every collection
// opened in this process; collections sharing a schema parse its declaration
// once.
var pkResolver = func() *primarykey.Resolver {
	r, err := primarykey.NewResolver(1024)
	if err != nil {
		panic(err)
	}
	return r
}()

// Collection is the storage instance façade, spec §4.6: a named
// (database, collection) pair binding the write engine, the change feed and
// the read paths together.
type Collection struct {
	database string
	name     string

	kv    *kv.Collection
	pk    primarykey.Descriptor
	clock func() time.Time
	log   logging.Logger

	feed *changeFeed

	closed atomic.Bool
}

// Open binds a Collection to its three tables within store, spec §3
// "Lifecycle: An instance is created by opening the substrate's three
// tables."
func Open(store *kv.Store, database, name string, opts Options) (*Collection, error) {
	opts.setDefaults()

	pk := opts.PrimaryKey
	if opts.Schema != nil {
		var err error
		pk, err = pkResolver.Resolve(opts.Schema.ID, opts.Schema.PrimaryKey)
		if err != nil {
			return nil, err
		}
	}

	kvCollection, err := store.Collection(database, name)
	if err != nil {
		return nil, err
	}

	return &Collection{
		database: database,
		name:     name,
		kv:       kvCollection,
		pk:       pk,
		clock:    opts.Clock,
		log:      opts.Logger,
		feed:     newChangeFeed(),
	}, nil
}

func (c *Collection) isClosed() bool { return c.closed.Load() }

// ChangeStream returns a subscription to this collection's change feed and
// an unsubscribe function. Subscribers only see bulks published after they
// subscribe; no backlog is retained (spec §4.4).
func (c *Collection) ChangeStream() (<-chan EventBulk, func()) {
	return c.feed.Subscribe()
}

// FindDocumentsById looks documents up by id, spec §4.5. Missing ids are
// simply absent from the result.
func (c *Collection) FindDocumentsById(ids []string, withDeleted bool) (map[string]Document, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	out := make(map[string]Document, len(ids))
	liveDocs, err := c.kv.Live().BulkGet(ids)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if liveDocs[i] != nil {
			out[id] = stripEnginePrivate(liveDocs[i])
		}
	}

	if !withDeleted {
		return out, nil
	}

	var missing []string
	for i, id := range ids {
		if liveDocs[i] == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	deletedDocs, err := c.kv.Deleted().BulkGet(missing)
	if err != nil {
		return nil, err
	}
	for i, id := range missing {
		if deletedDocs[i] != nil {
			out[id] = stripEnginePrivate(deletedDocs[i])
		}
	}
	return out, nil
}

// Stats is a read-only snapshot of collection size, analogous to the
// teacher's Last()/VersionVector() introspection accessors.
type Stats struct {
	Live         int
	Deleted      int
	LastSequence uint64
}

// Stats reports current row counts and the last assigned sequence.
func (c *Collection) Stats() (Stats, error) {
	if c.isClosed() {
		return Stats{}, ErrClosed
	}
	live, err := c.kv.Live().Count()
	if err != nil {
		return Stats{}, err
	}
	deleted, err := c.kv.Deleted().Count()
	if err != nil {
		return Stats{}, err
	}
	lastSeq, err := c.kv.Changes().LastAssigned()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Live: live, Deleted: deleted, LastSequence: lastSeq}, nil
}

// Cleanup purges tombstones whose last write is older than minAge, on behalf
// of an external cleanup driver. Purging is not a document change: no event
// is published and no changes-meta row is written — a replicator that never
// saw the tombstone missed the deletion anyway, and one that did has already
// consumed it. Returns how many tombstones were removed.
func (c *Collection) Cleanup(minAge time.Duration) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	cutoff := c.clock().Add(-minAge).UnixMilli()
	entries, err := c.kv.Deleted().RangeByLastWrite(math.MinInt64, cutoff, false, 0)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	err = c.kv.Update(func(tx *kv.Txn) error {
		for _, e := range entries {
			if err := tx.Delete(c.kv.Deleted(), e.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.log.Debug("cleanup purged tombstones", "collection", c.name, "purged", len(entries))
	return len(entries), nil
}

// Remove clears live and changes-meta, then closes the instance (spec §4.6).
func (c *Collection) Remove() error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.kv.Remove(); err != nil {
		return err
	}
	return c.Close()
}

// Close completes the change stream and marks the instance closed.
// Idempotent.
func (c *Collection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.feed.Close()
	return nil
}

// GetAttachmentData always fails: attachments are explicitly unsupported by
// this core (spec §1, §4.6).
func (c *Collection) GetAttachmentData(_ string, _ string) ([]byte, error) {
	return nil, ErrUnsupported
}
