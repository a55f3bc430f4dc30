package kv

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangesLogSequenceGapFree(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	col, err := s.Collection("db1", "widgets")
	require.Nil(t, err)

	for i := 0; i < 5; i++ {
		err := col.Update(func(tx *Txn) error {
			_, err := tx.Append(col.Changes(), "doc")
			return err
		})
		require.Nil(t, err)
	}

	entries, err := col.Changes().RangeAfter(0, 0)
	require.Nil(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Sequence)
	}
}

func TestChangesLogAbortedTxnLeavesNoGap(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	col, err := s.Collection("db1", "widgets")
	require.Nil(t, err)

	require.Nil(t, col.Update(func(tx *Txn) error {
		_, err := tx.Append(col.Changes(), "doc")
		return err
	}))

	boom := errors.New("boom")
	err = col.Update(func(tx *Txn) error {
		if _, err := tx.Append(col.Changes(), "doc"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Nil(t, col.Update(func(tx *Txn) error {
		_, err := tx.Append(col.Changes(), "doc")
		return err
	}))

	entries, err := col.Changes().RangeAfter(0, 0)
	require.Nil(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].Sequence)
	assert.Equal(t, uint64(2), entries[1].Sequence)
}

func TestChangesLogRangeAfterLimit(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	col, err := s.Collection("db1", "widgets")
	require.Nil(t, err)

	for i := 0; i < 4; i++ {
		require.Nil(t, col.Update(func(tx *Txn) error {
			_, err := tx.Append(col.Changes(), "doc")
			return err
		}))
	}

	first, err := col.Changes().RangeAfter(0, 2)
	require.Nil(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, uint64(1), first[0].Sequence)
	assert.Equal(t, uint64(2), first[1].Sequence)

	rest, err := col.Changes().RangeAfter(2, 0)
	require.Nil(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, uint64(3), rest[0].Sequence)
	assert.Equal(t, uint64(4), rest[1].Sequence)
}

func TestChangesLogRangeBeforeDescending(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	col, err := s.Collection("db1", "widgets")
	require.Nil(t, err)

	for i := 0; i < 3; i++ {
		require.Nil(t, col.Update(func(tx *Txn) error {
			_, err := tx.Append(col.Changes(), "doc")
			return err
		}))
	}

	before, err := col.Changes().RangeBefore(3, 0)
	require.Nil(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, uint64(2), before[0].Sequence)
	assert.Equal(t, uint64(1), before[1].Sequence)
}
