package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	r, err := Parse("12-abcxyz")
	assert.Nil(t, err)
	assert.Equal(t, Revision{Height: 12, Hash: "abcxyz"}, r)

	_, err = Parse("noheight")
	assert.NotNil(t, err)

	_, err = Parse("0-abc")
	assert.NotNil(t, err)

	_, err = Parse("5-")
	assert.NotNil(t, err)
}

func TestHeightOf(t *testing.T) {
	assert.Equal(t, 3, HeightOf("3-xyz"))
	assert.Equal(t, 0, HeightOf("garbage"))
}

func TestHashStableAndOrderIndependent(t *testing.T) {
	a := map[string]any{"id": "x", "v": 1, "_rev": "1-aaa", "_deleted": false}
	b := map[string]any{"_deleted": false, "v": 1, "id": "x", "_rev": "9-zzz"}
	assert.Equal(t, Hash(a), Hash(b))
}

func TestHashChangesWithContent(t *testing.T) {
	a := map[string]any{"id": "x", "v": 1}
	b := map[string]any{"id": "x", "v": 2}
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestCompareOrdering(t *testing.T) {
	assert.True(t, Compare(Revision{Height: 1, Hash: "a"}, Revision{Height: 2, Hash: "a"}) < 0)
	assert.True(t, Compare(Revision{Height: 2, Hash: "b"}, Revision{Height: 2, Hash: "a"}) > 0)
	assert.Equal(t, 0, Compare(Revision{Height: 2, Hash: "a"}, Revision{Height: 2, Hash: "a"}))
}

func TestNewRootAndNext(t *testing.T) {
	doc := map[string]any{"id": "a", "v": 1}
	root := NewRoot(doc)
	assert.Equal(t, 1, HeightOf(root))

	next := Next(root, map[string]any{"id": "a", "v": 2})
	assert.Equal(t, 2, HeightOf(next))
	assert.NotEqual(t, root, next)
}
