package form

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/mohae/deepcopy"

	"github.com/goliatone/go-form2/pkg/path"
)

// store owns the value tree. values is only ever replaced through persistent
// updates, so a root captured at any moment is a stable snapshot.
type store struct {
	values  map[string]any
	initial map[string]any
}

func (s *store) initialize(initial map[string]any) {
	s.initial = cloneTree(initial)
	s.values = s.initial
}

func (s *store) reset() {
	s.values = s.initial
}

// get returns the live value at p, falling back to the initial snapshot.
func (s *store) get(p path.Path) (any, bool) {
	if value, ok := path.Get(s.values, p); ok {
		return value, true
	}
	return path.Get(s.initial, p)
}

func (s *store) set(p path.Path, value any) error {
	next, err := path.Set(s.values, p, value)
	if err != nil {
		return err
	}
	s.values = asRoot(next)
	return nil
}

func asRoot(tree any) map[string]any {
	if root, ok := tree.(map[string]any); ok {
		return root
	}
	return map[string]any{}
}

// cloneTree deep copies caller data and converts it to the canonical
// container shapes (map[string]any and []any) the path package operates on.
func cloneTree(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	copied, _ := deepcopy.Copy(values).(map[string]any)
	return asRoot(canonicalize(copied))
}

// cloneValue detaches a value before it leaves or enters the form.
func cloneValue(value any) any {
	if value == nil {
		return nil
	}
	return canonicalize(deepcopy.Copy(value))
}

func canonicalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		for key, child := range v {
			v[key] = canonicalize(child)
		}
		return v
	case []any:
		for i, child := range v {
			v[i] = canonicalize(child)
		}
		return v
	case []byte:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = canonicalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return value
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = canonicalize(rv.Index(i).Interface())
		}
		return out
	}
	return value
}

// equalValues reports whether two tree values are equal. NaN equals NaN so a
// rewrite of the same NaN is not a change.
func equalValues(a, b any) (equal bool) {
	if path.SameRef(a, b) {
		return true
	}
	defer func() {
		// cmp refuses structs with unexported fields.
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return cmp.Equal(a, b, cmpopts.EquateNaNs())
}
