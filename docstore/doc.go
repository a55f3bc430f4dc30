// Package docstore implements the storage core described by this module's
// specification: a per-collection, revision-tracked, conflict-aware document
// store layered over the kv substrate, publishing a change feed for
// replication. The write categorizer (categorize.go) is the pure heart of
// it; engine.go, feed.go and changed.go are the orchestration around it.
package docstore

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/drpcorg/docstore/primarykey"
)

// Document is an application-defined record: at minimum an id at the
// schema-declared primary path, `_rev`, `_deleted` and `_attachments` (spec
// §3). It is otherwise a free-form JSON object.
type Document = map[string]any

// ErrMissingID is returned when a document has no value at the primary-key
// path.
var ErrMissingID = errors.New("docstore: document missing id")

func isDeleted(d Document) bool {
	v, _ := d["_deleted"].(bool)
	return v
}

func rev(d Document) string {
	v, _ := d["_rev"].(string)
	return v
}

func setRev(d Document, r string) { d["_rev"] = r }

func setDeleted(d Document, v bool) { d["_deleted"] = v }

func setLastWriteAt(d Document, t time.Time) { d["$lastWriteAt"] = t.UnixMilli() }

func ensureAttachments(d Document) {
	if _, ok := d["_attachments"]; !ok {
		d["_attachments"] = map[string]any{}
	}
}

// idOf extracts the document id per the collection's primary-key descriptor;
// compound descriptors join their field values.
func idOf(d Document, pk primarykey.Descriptor) (string, error) {
	id, err := pk.Extract(d)
	if err != nil || id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

// clone deep-copies a Document via a JSON round trip: simple, correct for
// the free-form JSON documents this store holds, and not a hot path (the
// spec's own open question on query() notes correctness, not performance, is
// the contract here).
func clone(d Document) Document {
	if d == nil {
		return nil
	}
	buf, err := json.Marshal(d)
	if err != nil {
		// d only ever contains values that came from JSON or literals we
		// produced ourselves; a document that fails to round-trip is a
		// programmer error, not a runtime condition to recover from.
		panic(errors.Wrap(err, "docstore: document failed to marshal"))
	}
	out := make(Document)
	if err := json.Unmarshal(buf, &out); err != nil {
		panic(errors.Wrap(err, "docstore: document failed to unmarshal"))
	}
	return out
}

// stripEnginePrivate returns a copy of d with engine-private bookkeeping
// fields removed before it's handed back to a caller (spec §4.5). $lastWriteAt
// is the engine's own secondary-index timestamp; _rev/_deleted/_attachments
// stay, since replicators and calling code need them for the next write.
func stripEnginePrivate(d Document) Document {
	if d == nil {
		return nil
	}
	out := clone(d)
	delete(out, "$lastWriteAt")
	return out
}
