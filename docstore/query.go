package docstore

import "sort"

// Matcher and Comparator are the opaque matcher/comparator pair the query
// planner supplies; this core treats them as black boxes (spec §1: "the
// query planner and sort comparator used by query" are external
// collaborators).
type Matcher interface {
	Match(doc Document) bool
}

// Comparator orders two documents for a query's requested sort.
type Comparator interface {
	Less(a, b Document) bool
}

// PreparedQuery is the already-planned query this core executes: a full,
// unindexed scan of live filtered by Matcher, ordered by Comparator, then
// paginated by Skip/Limit (spec §4.5). The contract here is correctness,
// not performance — an index-driven plan is a valid implementation choice
// but not one this core makes, since Matcher exposes no bound hints.
type PreparedQuery struct {
	Matcher    Matcher
	Comparator Comparator
	Skip       int
	Limit      int // 0 means unbounded
}

// QueryResult is Query's return value: the matched, sorted, paginated
// documents with engine-private fields stripped.
type QueryResult struct {
	Documents []Document
}

// Query performs a full scan of the live table, spec §4.5.
func (c *Collection) Query(q PreparedQuery) (QueryResult, error) {
	if c.isClosed() {
		return QueryResult{}, ErrClosed
	}

	var matched []Document
	err := c.kv.Live().Scan(func(_ string, doc Document) (bool, error) {
		if q.Matcher == nil || q.Matcher.Match(doc) {
			matched = append(matched, stripEnginePrivate(doc))
		}
		return true, nil
	})
	if err != nil {
		return QueryResult{}, err
	}

	if q.Comparator != nil {
		sort.SliceStable(matched, func(i, j int) bool {
			return q.Comparator.Less(matched[i], matched[j])
		})
	}

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Skip:]
		}
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	return QueryResult{Documents: matched}, nil
}
