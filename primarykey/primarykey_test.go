package primarykey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleExtract(t *testing.T) {
	d := Simple("id")
	id, err := d.Extract(map[string]any{"id": "doc1", "v": 1})
	assert.Nil(t, err)
	assert.Equal(t, "doc1", id)
}

func TestCompoundExtract(t *testing.T) {
	d := Descriptor{Fields: []string{"tenant", "id"}}
	id, err := d.Extract(map[string]any{"tenant": "acme", "id": "doc1"})
	assert.Nil(t, err)
	assert.Equal(t, "acme|doc1", id)
}

func TestCompoundExtractCustomSeparator(t *testing.T) {
	d := Descriptor{Fields: []string{"tenant", "id"}, Separator: "::"}
	id, err := d.Extract(map[string]any{"tenant": "acme", "id": "doc1"})
	assert.Nil(t, err)
	assert.Equal(t, "acme::doc1", id)
}

func TestExtractMissingField(t *testing.T) {
	d := Simple("id")
	_, err := d.Extract(map[string]any{"v": 1})
	assert.NotNil(t, err)
}

func TestFromSchema(t *testing.T) {
	cases := []struct {
		name     string
		declared any
		want     Descriptor
		wantErr  bool
	}{
		{"plain field name", "id", Simple("id"), false},
		{
			"compound specification",
			map[string]any{"key": "id", "fields": []any{"tenant", "id"}, "separator": "::"},
			Descriptor{Fields: []string{"tenant", "id"}, Separator: "::"},
			false,
		},
		{"empty string", "", Descriptor{}, true},
		{"compound without fields", map[string]any{"key": "id"}, Descriptor{}, true},
		{"unsupported type", 42, Descriptor{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromSchema(tc.declared)
			if tc.wantErr {
				assert.NotNil(t, err)
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolverCaches(t *testing.T) {
	r, err := NewResolver(8)
	assert.Nil(t, err)

	d, err := r.Resolve("schema-a", "id")
	assert.Nil(t, err)
	assert.Equal(t, Simple("id"), d)

	// second call hits the cache: the (invalid) declaration is never parsed.
	d2, err := r.Resolve("schema-a", 42)
	assert.Nil(t, err)
	assert.Equal(t, Simple("id"), d2)
}
