package docstore

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrClosed is returned by any operation on a Collection after Close.
var ErrClosed = errors.New("docstore: collection is closed")

// ErrEmptyBatch is the "P2" caller error: bulkWrite called with zero rows.
var ErrEmptyBatch = errors.New("docstore: bulkWrite called with an empty batch")

// ErrShouldNotHappen is the "SNH" invariant-violation error: the categorizer
// fell through without producing INSERT/UPDATE/DELETE for a row. It aborts
// the whole transaction rather than being reported per-row.
var ErrShouldNotHappen = errors.New("docstore: should not happen: write categorized to no operation")

// ErrUnsupported is returned by GetAttachmentData: attachments are
// unsupported by this core (spec §1).
var ErrUnsupported = errors.New("docstore: attachments are not supported")

// ConflictError is the per-row 409 produced by bulkWrite when a row's
// previous revision doesn't match what's actually stored. It never aborts
// the bulk — it's collected into the returned error map.
type ConflictError struct {
	ID     string
	Status int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("docstore: conflict on %q (status %d)", e.ID, e.Status)
}

func newConflict(id string) error {
	return &ConflictError{ID: id, Status: 409}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
