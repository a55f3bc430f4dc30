package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpcorg/docstore/kv"
)

func TestFindDocumentsByIdMissingIdsAreAbsent(t *testing.T) {
	c := openTestCollection(t)

	_, err := c.BulkWrite([]WriteRow{{Document: Document{"id": "a", "_deleted": false}}})
	require.Nil(t, err)

	found, err := c.FindDocumentsById([]string{"a", "ghost"}, false)
	require.Nil(t, err)
	assert.Contains(t, found, "a")
	assert.NotContains(t, found, "ghost")
}

func TestFindDocumentsByIdWithDeletedIncludesTombstones(t *testing.T) {
	c := openTestCollection(t)

	res, err := c.BulkWrite([]WriteRow{{Document: Document{"id": "a", "_deleted": false}}})
	require.Nil(t, err)
	inserted := res.Success["a"]

	_, err = c.BulkWrite([]WriteRow{{
		Document: Document{"id": "a", "_deleted": true},
		Previous: inserted,
	}})
	require.Nil(t, err)

	withoutDeleted, err := c.FindDocumentsById([]string{"a"}, false)
	require.Nil(t, err)
	assert.NotContains(t, withoutDeleted, "a")

	withDeleted, err := c.FindDocumentsById([]string{"a"}, true)
	require.Nil(t, err)
	require.Contains(t, withDeleted, "a")
	assert.True(t, isDeleted(withDeleted["a"]))
}

func TestFindDocumentsByIdStripsEnginePrivateFields(t *testing.T) {
	c := openTestCollection(t)
	_, err := c.BulkWrite([]WriteRow{{Document: Document{"id": "a", "_deleted": false}}})
	require.Nil(t, err)

	found, err := c.FindDocumentsById([]string{"a"}, false)
	require.Nil(t, err)
	_, hasLastWrite := found["a"]["$lastWriteAt"]
	assert.False(t, hasLastWrite)
	assert.Contains(t, found["a"], "_rev")
}

func TestStatsTracksLiveDeletedAndSequence(t *testing.T) {
	c := openTestCollection(t)

	res, err := c.BulkWrite([]WriteRow{{Document: Document{"id": "a", "_deleted": false}}})
	require.Nil(t, err)
	stats, err := c.Stats()
	require.Nil(t, err)
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 0, stats.Deleted)
	assert.Equal(t, uint64(1), stats.LastSequence)

	_, err = c.BulkWrite([]WriteRow{{
		Document: Document{"id": "a", "_deleted": true},
		Previous: res.Success["a"],
	}})
	require.Nil(t, err)

	stats, err = c.Stats()
	require.Nil(t, err)
	assert.Equal(t, 0, stats.Live)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, uint64(2), stats.LastSequence)
}

func TestCleanupPurgesOldTombstonesOnly(t *testing.T) {
	store, err := kv.Open(t.TempDir(), kv.Options{})
	require.Nil(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now()
	c, err := Open(store, "db", "docs", Options{Clock: func() time.Time { return now }})
	require.Nil(t, err)
	t.Cleanup(func() { _ = c.Close() })

	res, err := c.BulkWrite([]WriteRow{
		{Document: Document{"id": "old", "_deleted": false}},
		{Document: Document{"id": "live", "_deleted": false}},
	})
	require.Nil(t, err)
	_, err = c.BulkWrite([]WriteRow{{
		Document: Document{"id": "old", "_deleted": true},
		Previous: res.Success["old"],
	}})
	require.Nil(t, err)

	// advance the clock past the retention window and tombstone another doc
	now = now.Add(time.Hour)
	_, err = c.BulkWrite([]WriteRow{{
		Document: Document{"id": "live", "_deleted": true},
		Previous: res.Success["live"],
	}})
	require.Nil(t, err)

	purged, err := c.Cleanup(30 * time.Minute)
	require.Nil(t, err)
	assert.Equal(t, 1, purged)

	found, err := c.FindDocumentsById([]string{"old", "live"}, true)
	require.Nil(t, err)
	assert.NotContains(t, found, "old")
	assert.Contains(t, found, "live")
}

func TestRemoveClosesTheCollection(t *testing.T) {
	c := openTestCollection(t)
	_, err := c.BulkWrite([]WriteRow{{Document: Document{"id": "a", "_deleted": false}}})
	require.Nil(t, err)

	require.Nil(t, c.Remove())
	assert.True(t, c.isClosed())

	_, err = c.BulkWrite([]WriteRow{{Document: Document{"id": "b", "_deleted": false}}})
	assert.Equal(t, ErrClosed, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := openTestCollection(t)
	require.Nil(t, c.Close())
	require.Nil(t, c.Close())
}

func TestGetAttachmentDataIsUnsupported(t *testing.T) {
	c := openTestCollection(t)
	_, err := c.GetAttachmentData("a", "att")
	assert.Equal(t, ErrUnsupported, err)
}

func TestQueryFiltersSortsAndPaginates(t *testing.T) {
	c := openTestCollection(t)
	for i, id := range []string{"a", "b", "c", "d"} {
		_, err := c.BulkWrite([]WriteRow{{Document: Document{"id": id, "rank": float64(i), "_deleted": false}}})
		require.Nil(t, err)
	}

	result, err := c.Query(PreparedQuery{
		Matcher:    matcherFunc(func(d Document) bool { return d["rank"].(float64) > 0 }),
		Comparator: comparatorFunc(func(a, b Document) bool { return a["rank"].(float64) > b["rank"].(float64) }),
		Skip:       1,
		Limit:      1,
	})
	require.Nil(t, err)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "c", result.Documents[0]["id"])
}

type matcherFunc func(Document) bool

func (f matcherFunc) Match(d Document) bool { return f(d) }

type comparatorFunc func(a, b Document) bool

func (f comparatorFunc) Less(a, b Document) bool { return f(a, b) }
