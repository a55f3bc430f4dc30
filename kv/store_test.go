package kv

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "docstore-kv-*")
	require.Nil(t, err)
	s, err := Open(dir, Options{})
	require.Nil(t, err)
	return s, func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	}
}

func TestOpenCloseIdempotent(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	assert.Nil(t, s.Close())
	assert.Nil(t, s.Close())
}

func TestCollectionPutGet(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	col, err := s.Collection("db1", "widgets")
	require.Nil(t, err)

	err = col.Update(func(tx *Txn) error {
		return tx.Put(col.Live(), "a", Document{"id": "a", "v": 1})
	})
	require.Nil(t, err)

	doc, ok, err := col.Live().Get("a")
	require.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(1), doc["v"])

	_, ok, err = col.Deleted().Get("a")
	require.Nil(t, err)
	assert.False(t, ok)
}

func TestCollectionsAreNamespaced(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	a, err := s.Collection("db1", "widgets")
	require.Nil(t, err)
	b, err := s.Collection("db1", "gadgets")
	require.Nil(t, err)

	require.Nil(t, a.Update(func(tx *Txn) error {
		return tx.Put(a.Live(), "x", Document{"id": "x"})
	}))

	_, ok, err := b.Live().Get("x")
	require.Nil(t, err)
	assert.False(t, ok)
}
