package docstore

import "github.com/drpcorg/docstore/kv"

// Direction selects which way GetChangedDocuments walks the changes-meta
// log relative to SinceSequence.
type Direction = kv.Direction

const (
	After  = kv.After
	Before = kv.Before
)

// ChangedDocumentsQuery is the input to GetChangedDocuments, spec §4.4.
type ChangedDocumentsQuery struct {
	SinceSequence uint64
	Direction     Direction
	Limit         int // 0 means unbounded
}

// ChangedDocument is one changes-meta row: the id that changed, and the
// sequence at which that change was recorded.
type ChangedDocument struct {
	ID       string `json:"id"`
	Sequence uint64 `json:"sequence"`
}

// ChangedDocumentsResult is GetChangedDocuments' return value.
type ChangedDocumentsResult struct {
	ChangedDocuments []ChangedDocument
	LastSequence     uint64
}

// GetChangedDocuments reads the changes-meta log, spec §4.4:
//   - direction "after": entries with sequence > SinceSequence, ascending.
//   - direction "before": entries with sequence < SinceSequence, descending.
//
// LastSequence is the last element's sequence in the traversal direction, or
// SinceSequence itself if the result is empty.
func (c *Collection) GetChangedDocuments(q ChangedDocumentsQuery) (ChangedDocumentsResult, error) {
	if c.isClosed() {
		return ChangedDocumentsResult{}, ErrClosed
	}

	var (
		entries []kv.ChangeEntry
		err     error
	)
	switch q.Direction {
	case Before:
		entries, err = c.kv.Changes().RangeBefore(q.SinceSequence, q.Limit)
	default:
		entries, err = c.kv.Changes().RangeAfter(q.SinceSequence, q.Limit)
	}
	if err != nil {
		return ChangedDocumentsResult{}, err
	}

	result := ChangedDocumentsResult{LastSequence: q.SinceSequence}
	for _, e := range entries {
		result.ChangedDocuments = append(result.ChangedDocuments, ChangedDocument{ID: e.ID, Sequence: e.Sequence})
	}
	if len(entries) > 0 {
		result.LastSequence = entries[len(entries)-1].Sequence
	}
	return result, nil
}
