// Package revision implements the "<height>-<hash>" revision codec used to
// version documents: parsing, formatting, hashing document bodies, and the
// ordering rule bulkAddRevisions uses to decide whether an incoming remote
// revision should win.
package revision

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// ErrMalformed is returned when a string does not parse as "<height>-<hash>".
var ErrMalformed = errors.New("revision: malformed revision string")

// Revision is the parsed form of a "<height>-<hash>" string.
type Revision struct {
	Height int
	Hash   string
}

// String renders a Revision back to its canonical "<height>-<hash>" form.
func (r Revision) String() string {
	return strconv.Itoa(r.Height) + "-" + r.Hash
}

// IsZero reports whether r is the unset Revision.
func (r Revision) IsZero() bool {
	return r.Height == 0 && r.Hash == ""
}

// Parse splits "H-Hash" into its height and hash components.
func Parse(rev string) (Revision, error) {
	idx := strings.IndexByte(rev, '-')
	if idx <= 0 || idx == len(rev)-1 {
		return Revision{}, errors.Wrapf(ErrMalformed, "revision %q", rev)
	}
	height, err := strconv.Atoi(rev[:idx])
	if err != nil || height <= 0 {
		return Revision{}, errors.Wrapf(ErrMalformed, "revision %q", rev)
	}
	return Revision{Height: height, Hash: rev[idx+1:]}, nil
}

// HeightOf returns the height component of a "H-Hash" revision string, or 0
// if it doesn't parse.
func HeightOf(rev string) int {
	parsed, err := Parse(rev)
	if err != nil {
		return 0
	}
	return parsed.Height
}

// Compare orders two revisions strictly by height ascending, then strictly
// by lexicographic hash ascending on ties. Used only by bulkAddRevisions.
// Returns <0, 0, >0 the way bytes.Compare does.
func Compare(a, b Revision) int {
	if a.Height != b.Height {
		return a.Height - b.Height
	}
	return strings.Compare(a.Hash, b.Hash)
}

// privateFields are excluded from the content hash: they are engine-assigned
// metadata, not part of the document's identity.
var privateFields = map[string]bool{
	"_rev":         true,
	"_meta":        true,
	"_deleted":     true,
	"_attachments": true,
	"$lastWriteAt": true,
}

// Hash computes a stable, content-derived fingerprint of a document body,
// excluding _rev/_meta/_deleted/_attachments/$lastWriteAt. The document is
// canonicalized by sorting map keys before hashing so that field order never
// affects the result. Collision resistance is not required, only stability
// for identical content across reruns within a deployment, so a fast
// non-cryptographic hash (xxhash) is used.
func Hash(doc map[string]any) string {
	canon := canonicalize(doc)
	h := xxhash.New()
	_ = json.NewEncoder(h).Encode(canon)
	return strconv.FormatUint(h.Sum64(), 36)
}

// canonicalize produces a deterministically ordered copy of doc (engine
// fields stripped, map keys sorted at every level) suitable for hashing.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			if privateFields[k] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			out = append(out, k, canonicalize(t[k]))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return t
	}
}

// NewRoot returns the revision string for a document's very first write:
// height 1, hash of its body.
func NewRoot(doc map[string]any) string {
	return "1-" + Hash(doc)
}

// Next returns the revision string that follows an existing one, given the
// new document body: height+1, hash of the new body.
func Next(existingRev string, doc map[string]any) string {
	return strconv.Itoa(HeightOf(existingRev)+1) + "-" + Hash(doc)
}
