package docstore

import (
	"time"

	"github.com/drpcorg/docstore/primarykey"
	"github.com/drpcorg/docstore/revision"
)

// WriteRow is one row of a bulkWrite batch: the new document, and optionally
// the caller's view of the document it's based on (spec §4.2).
type WriteRow struct {
	Document Document
	Previous Document // nil if the caller supplied none
}

// categorized is the pure output of running a batch through the write
// categorizer: everything the bulk write engine needs to stage into a
// transaction and everything it needs to publish, spec §4.2.
type categorized struct {
	PutLive       map[string]Document
	RemoveLive    []string
	PutDeleted    map[string]Document
	RemoveDeleted []string
	ChangeIDs     []string
	Events        []ChangeEvent
	Errors        map[string]error
}

func newCategorized() *categorized {
	return &categorized{
		PutLive:    make(map[string]Document),
		PutDeleted: make(map[string]Document),
		Errors:     make(map[string]error),
	}
}

// categorizeBulkWrite implements spec §4.2's client-write categorization
// table: a pure function of (primary key, current, rows) → the four substrate
// mutation sets, the ids to log, and the events to publish. It returns
// ErrShouldNotHappen (aborting the whole transaction) the moment any row
// fails to resolve to an insert, update, delete, or reported conflict.
func categorizeBulkWrite(pk primarykey.Descriptor, current map[string]Document, rows []WriteRow, now time.Time) (*categorized, error) {
	out := newCategorized()

	for _, row := range rows {
		id, err := idOf(row.Document, pk)
		if err != nil {
			return nil, err
		}

		existing, hasExisting := current[id]
		if !hasExisting {
			wasDeleted := isDeleted(row.Document)
			doc := clone(row.Document)
			ensureAttachments(doc)
			setDeleted(doc, wasDeleted)
			setLastWriteAt(doc, now)
			setRev(doc, revision.NewRoot(row.Document))
			if wasDeleted {
				out.PutDeleted[id] = doc
				out.ChangeIDs = append(out.ChangeIDs, id)
				// spec: absent + _deleted=true inserts with no event.
			} else {
				out.PutLive[id] = doc
				out.ChangeIDs = append(out.ChangeIDs, id)
				out.Events = append(out.Events, ChangeEvent{
					ID: id, Operation: Insert, Previous: nil, Doc: stripEnginePrivate(doc), StartTime: now,
				})
			}
			continue
		}

		var prev Document
		if !isDeleted(existing) {
			if row.Previous == nil || rev(row.Previous) != rev(existing) {
				out.Errors[id] = newConflict(id)
				continue
			}
			prev = existing
		} else {
			if row.Previous == nil {
				// spec: "insert already-deleted documents" resurrect path —
				// treat previous := existing and continue.
				prev = existing
			} else if rev(row.Previous) != rev(existing) {
				out.Errors[id] = newConflict(id)
				continue
			} else {
				prev = existing
			}
		}

		newDeleted := isDeleted(row.Document)
		prevDeleted := isDeleted(prev)
		newRev := revision.Next(rev(existing), row.Document)

		switch {
		case prevDeleted && !newDeleted:
			doc := clone(row.Document)
			ensureAttachments(doc)
			setRev(doc, newRev)
			setDeleted(doc, false)
			setLastWriteAt(doc, now)
			out.PutLive[id] = doc
			out.RemoveDeleted = append(out.RemoveDeleted, id)
			out.ChangeIDs = append(out.ChangeIDs, id)
			out.Events = append(out.Events, ChangeEvent{
				ID: id, Operation: Insert, Previous: nil, Doc: stripEnginePrivate(doc), StartTime: now,
			})

		case !prevDeleted && !newDeleted:
			doc := clone(row.Document)
			ensureAttachments(doc)
			setRev(doc, newRev)
			setLastWriteAt(doc, now)
			out.PutLive[id] = doc
			out.ChangeIDs = append(out.ChangeIDs, id)
			out.Events = append(out.Events, ChangeEvent{
				ID: id, Operation: Update, Previous: stripEnginePrivate(prev), Doc: stripEnginePrivate(doc), StartTime: now,
			})

		case !prevDeleted && newDeleted:
			doc := clone(row.Document)
			ensureAttachments(doc)
			setRev(doc, newRev)
			setDeleted(doc, true)
			setLastWriteAt(doc, now)
			out.PutDeleted[id] = doc
			out.RemoveLive = append(out.RemoveLive, id)
			out.ChangeIDs = append(out.ChangeIDs, id)

			rewrittenPrev := clone(prev)
			setRev(rewrittenPrev, newRev)
			out.Events = append(out.Events, ChangeEvent{
				ID: id, Operation: Delete, Previous: stripEnginePrivate(rewrittenPrev), Doc: nil, StartTime: now,
			})

		default: // prevDeleted && newDeleted
			return nil, ErrShouldNotHappen
		}
	}

	return out, nil
}

// categorizeBulkAddRevisions implements spec §4.2's remote-revision
// categorization: documents arrive with their own already-minted _rev, and
// whichever side has the dominant revision (by revision.Compare) wins. No
// conflict errors are ever produced; losing revisions are silently dropped.
func categorizeBulkAddRevisions(pk primarykey.Descriptor, current map[string]Document, docs []Document, now time.Time) (*categorized, error) {
	out := newCategorized()

	for _, d := range docs {
		id, err := idOf(d, pk)
		if err != nil {
			return nil, err
		}

		existing, hasExisting := current[id]
		if !hasExisting {
			doc := clone(d)
			ensureAttachments(doc)
			setLastWriteAt(doc, now)
			if isDeleted(doc) {
				out.PutDeleted[id] = doc
			} else {
				out.PutLive[id] = doc
			}
			out.ChangeIDs = append(out.ChangeIDs, id)
			out.Events = append(out.Events, ChangeEvent{
				ID: id, Operation: Insert, Previous: nil, Doc: stripEnginePrivate(doc), StartTime: now,
			})
			continue
		}

		incoming, ierr := revision.Parse(rev(d))
		stored, serr := revision.Parse(rev(existing))
		if ierr != nil || serr != nil || revision.Compare(incoming, stored) <= 0 {
			continue // not strictly dominant: ignored
		}

		prevDeleted := isDeleted(existing)
		newDeleted := isDeleted(d)

		doc := clone(d)
		ensureAttachments(doc)
		setLastWriteAt(doc, now)

		switch {
		case prevDeleted && !newDeleted:
			out.PutLive[id] = doc
			out.RemoveDeleted = append(out.RemoveDeleted, id)
			out.ChangeIDs = append(out.ChangeIDs, id)
			out.Events = append(out.Events, ChangeEvent{
				ID: id, Operation: Insert, Previous: nil, Doc: stripEnginePrivate(doc), StartTime: now,
			})

		case !prevDeleted && !newDeleted:
			out.PutLive[id] = doc
			out.ChangeIDs = append(out.ChangeIDs, id)
			out.Events = append(out.Events, ChangeEvent{
				ID: id, Operation: Update, Previous: stripEnginePrivate(existing), Doc: stripEnginePrivate(doc), StartTime: now,
			})

		case !prevDeleted && newDeleted:
			out.PutDeleted[id] = doc
			out.RemoveLive = append(out.RemoveLive, id)
			out.ChangeIDs = append(out.ChangeIDs, id)

			rewrittenPrev := clone(existing)
			setRev(rewrittenPrev, rev(d))
			out.Events = append(out.Events, ChangeEvent{
				ID: id, Operation: Delete, Previous: stripEnginePrivate(rewrittenPrev), Doc: nil, StartTime: now,
			})

		default: // prevDeleted && newDeleted: update the tombstone in place,
			// no event, no changes-meta row (spec §4.2's two extras).
			out.PutDeleted[id] = doc
		}
	}

	return out, nil
}
