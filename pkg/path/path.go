// Package path turns field addresses into canonical segment sequences and
// performs persistent get/set/delete operations on nested value trees built
// from map[string]any and []any containers.
//
// Two notations are accepted at the boundary and normalise to the same Path:
//
//	path.Normalize("items.0.name")
//	path.Normalize([]any{"items", 0, "name"})
//
// Bracket indices ("items[0].name") are accepted as well.
package path

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmpty is returned when a descriptor resolves to zero segments.
	ErrEmpty = errors.New("path: empty path")
	// ErrInvalidSegment is returned for segments that cannot be represented.
	ErrInvalidSegment = errors.New("path: invalid segment")
	// ErrUnsupportedDescriptor is returned for descriptor types Normalize does
	// not understand.
	ErrUnsupportedDescriptor = errors.New("path: unsupported descriptor")
)

// Segment is one step of a Path: either a map key or a sequence index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key constructs a key segment.
func Key(key string) Segment {
	return Segment{key: key}
}

// Index constructs an index segment.
func Index(index int) Segment {
	return Segment{index: index, isIndex: true}
}

// IsIndex reports whether the segment addresses a sequence position.
func (s Segment) IsIndex() bool { return s.isIndex }

// Key returns the key of a key segment; empty for index segments.
func (s Segment) Key() string { return s.key }

// Index returns the index of an index segment; -1 for key segments.
func (s Segment) Index() int {
	if !s.isIndex {
		return -1
	}
	return s.index
}

// String renders the segment the way it appears in dot notation.
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Path is a canonical, ordered address into a value tree.
type Path []Segment

// Of builds a Path from literal segments.
func Of(segments ...Segment) Path {
	return append(Path(nil), segments...)
}

// Normalize converts a descriptor into a canonical Path. Accepted
// descriptors: string (dot or bracket notation), int, Path, []Segment, []any
// mixing strings and ints, []string and []int. Strings made only of decimal
// digits become index segments in both notations so that equivalent
// descriptors always normalise identically.
func Normalize(descriptor any) (Path, error) {
	var (
		out Path
		err error
	)
	switch d := descriptor.(type) {
	case Path:
		out = d.Clone()
	case []Segment:
		out = Path(d).Clone()
	case string:
		out, err = Parse(d)
	case int:
		out = Path{Index(d)}
	case []string:
		for _, part := range d {
			out = append(out, literalSegment(part))
		}
	case []int:
		for _, idx := range d {
			out = append(out, Index(idx))
		}
	case []any:
		out, err = fromMixed(d)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedDescriptor, descriptor)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	for _, seg := range out {
		if seg.isIndex && seg.index < 0 {
			return nil, fmt.Errorf("%w: negative index %d", ErrInvalidSegment, seg.index)
		}
		if !seg.isIndex && seg.key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidSegment)
		}
	}
	return out, nil
}

// MustNormalize is Normalize for literals known to be valid.
func MustNormalize(descriptor any) Path {
	p, err := Normalize(descriptor)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse reads dot and bracket notation ("a.b", "a[0].b", "a.0.b").
func Parse(raw string) (Path, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return nil, ErrEmpty
	}
	replacer := strings.NewReplacer("[", ".", "]", "")
	clean = replacer.Replace(clean)

	parts := strings.Split(clean, ".")
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidSegment, raw)
		}
		out = append(out, literalSegment(segment))
	}
	return out, nil
}

func fromMixed(parts []any) (Path, error) {
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			out = append(out, literalSegment(v))
		case int:
			out = append(out, Index(v))
		case int32:
			out = append(out, Index(int(v)))
		case int64:
			out = append(out, Index(int(v)))
		case uint:
			out = append(out, Index(int(v)))
		case Segment:
			out = append(out, v)
		default:
			return nil, fmt.Errorf("%w: %T in mixed path", ErrInvalidSegment, part)
		}
	}
	return out, nil
}

// Literal converts one raw name component into a segment using the same
// rule as the notations: canonical decimal integers become indices.
func Literal(raw string) Segment {
	return literalSegment(raw)
}

func literalSegment(raw string) Segment {
	if idx, ok := parseIndex(raw); ok {
		return Index(idx)
	}
	return Key(raw)
}

// parseIndex accepts canonical decimal integers only ("0", "12"; not "012").
func parseIndex(raw string) (int, bool) {
	if raw == "" || (len(raw) > 1 && raw[0] == '0') {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// String renders the path in dot notation. The result is the canonical
// registry key for the path.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".")
}

// Clone returns an independent copy.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	return append(Path(nil), p...)
}

// Equal reports whether both paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Append returns a new path with the segments added.
func (p Path) Append(segments ...Segment) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// With returns a copy of p with the segment at position replaced.
func (p Path) With(position int, segment Segment) Path {
	out := p.Clone()
	out[position] = segment
	return out
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1].Clone()
}

// Last returns the final segment; ok is false for an empty path.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}
