// Package primarykey resolves a schema's primaryKey declaration into a
// usable descriptor and computes document ids from it. Schema parsing itself
// is out of scope (spec §1); the declaration here is whatever the caller's
// schema layer already produced — a plain field name, or a compound
// specification.
package primarykey

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// ErrBadDescriptor is returned when a primaryKey declaration names no field.
var ErrBadDescriptor = errors.New("primarykey: bad primaryKey descriptor")

// Descriptor is the resolved form of a schema's `primaryKey` declaration:
// either a single field name, or a compound key made of an ordered list of
// top-level document fields joined by a separator.
type Descriptor struct {
	// Fields is the ordered list of top-level document fields making up the
	// primary key. Length 1 for a simple primary key.
	Fields []string
	// Separator joins Fields into the final document id for a compound key.
	// Ignored when len(Fields) == 1; defaults to "|".
	Separator string
}

// Simple builds a single-field Descriptor.
func Simple(field string) Descriptor {
	return Descriptor{Fields: []string{field}}
}

// IsZero reports whether d names no field at all.
func (d Descriptor) IsZero() bool { return len(d.Fields) == 0 }

// Extract computes the document id implied by this descriptor, joining
// compound fields with Separator.
func (d Descriptor) Extract(doc map[string]any) (string, error) {
	if len(d.Fields) == 0 {
		return "", ErrBadDescriptor
	}
	if len(d.Fields) == 1 {
		v, ok := doc[d.Fields[0]]
		if !ok {
			return "", errors.Wrapf(ErrBadDescriptor, "missing field %q", d.Fields[0])
		}
		return toString(v), nil
	}
	sep := d.Separator
	if sep == "" {
		sep = "|"
	}
	parts := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		v, ok := doc[f]
		if !ok {
			return "", errors.Wrapf(ErrBadDescriptor, "missing field %q", f)
		}
		parts[i] = toString(v)
	}
	return strings.Join(parts, sep), nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// FromSchema interprets a schema's primaryKey declaration: either a plain
// field name, or a compound specification shaped
// {"key": <id field>, "fields": [...], "separator": <string>}.
func FromSchema(declared any) (Descriptor, error) {
	switch v := declared.(type) {
	case string:
		if v == "" {
			return Descriptor{}, ErrBadDescriptor
		}
		return Simple(v), nil
	case map[string]any:
		raw, ok := v["fields"].([]any)
		if !ok || len(raw) == 0 {
			return Descriptor{}, errors.Wrap(ErrBadDescriptor, "compound primaryKey without fields")
		}
		fields := make([]string, len(raw))
		for i, f := range raw {
			s, ok := f.(string)
			if !ok || s == "" {
				return Descriptor{}, errors.Wrapf(ErrBadDescriptor, "compound primaryKey field %d", i)
			}
			fields[i] = s
		}
		sep, _ := v["separator"].(string)
		return Descriptor{Fields: fields, Separator: sep}, nil
	default:
		return Descriptor{}, errors.Wrapf(ErrBadDescriptor, "unsupported primaryKey declaration %T", declared)
	}
}

// Resolver caches resolved descriptors per schema, the same role the
// teacher's IndexManager.classCache plays for (type id → fields): a schema's
// declaration is parsed once and then read on every subsequent collection
// open against it.
type Resolver struct {
	cache *lru.Cache[string, Descriptor]
}

// NewResolver builds a Resolver caching up to size schema → descriptor
// mappings.
func NewResolver(size int) (*Resolver, error) {
	cache, err := lru.New[string, Descriptor](size)
	if err != nil {
		return nil, err
	}
	return &Resolver{cache: cache}, nil
}

// Resolve parses and caches the descriptor declared by the schema identified
// by schemaID. Callers pass whatever stable identity their schema object has
// (a name, a hash — the resolver doesn't care).
func (r *Resolver) Resolve(schemaID string, declared any) (Descriptor, error) {
	if d, ok := r.cache.Get(schemaID); ok {
		return d, nil
	}
	d, err := FromSchema(declared)
	if err != nil {
		return Descriptor{}, err
	}
	r.cache.Add(schemaID, d)
	return d, nil
}
