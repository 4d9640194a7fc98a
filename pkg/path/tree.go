package path

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ErrNotContainer is returned when a write has to descend through a scalar.
var ErrNotContainer = errors.New("path: cannot descend into non-container value")

// Get resolves p inside tree. Index segments also address decimal map keys
// and decimal key segments also address sequence positions, so both
// notations resolve identically.
func Get(tree any, p Path) (any, bool) {
	current := tree
	for _, seg := range p {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[mapKey(seg)]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, ok := sliceIndex(seg)
			if !ok || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set returns a tree in which p holds value. Only the containers along p are
// copied; every untouched sibling is shared with the input tree. Missing
// containers are created (sequences for index segments, maps otherwise) and
// writes past the end of a sequence fill the gap with nil.
func Set(tree any, p Path, value any) (any, error) {
	return setIn(tree, p, value, 0)
}

func setIn(node any, p Path, value any, depth int) (any, error) {
	if depth == len(p) {
		return value, nil
	}
	seg := p[depth]

	switch n := node.(type) {
	case nil:
		if seg.isIndex {
			return setIn([]any{}, p, value, depth)
		}
		return setIn(map[string]any{}, p, value, depth)

	case map[string]any:
		key := mapKey(seg)
		child, err := setIn(n[key], p, value, depth+1)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(n)+1)
		for k, v := range n {
			out[k] = v
		}
		out[key] = child
		return out, nil

	case []any:
		idx, ok := sliceIndex(seg)
		if !ok {
			return nil, fmt.Errorf("%w: key %q on sequence at %q", ErrNotContainer, seg.key, p[:depth].String())
		}
		size := len(n)
		if idx >= size {
			size = idx + 1
		}
		out := make([]any, size)
		copy(out, n)
		var current any
		if idx < len(n) {
			current = n[idx]
		}
		child, err := setIn(current, p, value, depth+1)
		if err != nil {
			return nil, err
		}
		out[idx] = child
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %T at %q", ErrNotContainer, node, p[:depth].String())
	}
}

// Delete returns a tree without the value at p. Removing a sequence element
// splices it out so sequences stay dense. A map emptied by the deletion is
// removed from its parent map instead of being left behind. The boolean is
// false when nothing was addressed, in which case tree is returned unchanged.
func Delete(tree any, p Path) (any, bool) {
	if len(p) == 0 {
		return tree, false
	}
	return deleteIn(tree, p, 0)
}

func deleteIn(node any, p Path, depth int) (any, bool) {
	seg := p[depth]
	last := depth == len(p)-1

	switch n := node.(type) {
	case map[string]any:
		key := mapKey(seg)
		child, exists := n[key]
		if !exists {
			return node, false
		}
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = v
		}
		if last {
			delete(out, key)
			return out, true
		}
		next, ok := deleteIn(child, p, depth+1)
		if !ok {
			return node, false
		}
		if emptied, isMap := next.(map[string]any); isMap && len(emptied) == 0 {
			delete(out, key)
		} else {
			out[key] = next
		}
		return out, true

	case []any:
		idx, ok := sliceIndex(seg)
		if !ok || idx >= len(n) {
			return node, false
		}
		if last {
			out := make([]any, 0, len(n)-1)
			out = append(out, n[:idx]...)
			return append(out, n[idx+1:]...), true
		}
		next, removed := deleteIn(n[idx], p, depth+1)
		if !removed {
			return node, false
		}
		out := make([]any, len(n))
		copy(out, n)
		out[idx] = next
		return out, true

	default:
		return node, false
	}
}

// SameRef reports whether a and b are the same container instance (maps and
// slices) or equal comparable scalars. Persistent updates keep untouched
// subtrees referentially identical, so SameRef is a cheap "did this subtree
// change" check.
func SameRef(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Slice:
		return va.UnsafePointer() == vb.UnsafePointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

func mapKey(seg Segment) string {
	if seg.isIndex {
		return strconv.Itoa(seg.index)
	}
	return seg.key
}

func sliceIndex(seg Segment) (int, bool) {
	if seg.isIndex {
		return seg.index, seg.index >= 0
	}
	return parseIndex(seg.key)
}
