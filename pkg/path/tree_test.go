package path

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGet(t *testing.T) {
	tree := map[string]any{
		"users": []any{
			map[string]any{"name": "A"},
		},
		"meta": map[string]any{"0": "zero"},
	}

	cases := []struct {
		path  string
		want  any
		found bool
	}{
		{"users.0.name", "A", true},
		{"users.1.name", nil, false},
		{"users.0.missing", nil, false},
		{"meta.0", "zero", true},
		{"users.0.name.deeper", nil, false},
	}
	for _, tc := range cases {
		got, ok := Get(tree, MustNormalize(tc.path))
		if ok != tc.found || got != tc.want {
			t.Fatalf("Get(%q) = (%v, %v), want (%v, %v)", tc.path, got, ok, tc.want, tc.found)
		}
	}
}

func TestSet_SharesUntouchedSiblings(t *testing.T) {
	profile := map[string]any{"age": 30}
	tags := []any{"x", "y"}
	tree := map[string]any{
		"user": map[string]any{"name": "A", "profile": profile},
		"tags": tags,
	}

	next, err := Set(tree, MustNormalize("user.name"), "B")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	root := next.(map[string]any)

	if SameRef(root, tree) {
		t.Fatalf("root must be replaced")
	}
	if SameRef(root["user"], tree["user"]) {
		t.Fatalf("container along the path must be replaced")
	}
	if !SameRef(root["tags"], tags) {
		t.Fatalf("untouched sibling must be shared")
	}
	if !SameRef(root["user"].(map[string]any)["profile"], profile) {
		t.Fatalf("untouched nested sibling must be shared")
	}
	if tree["user"].(map[string]any)["name"] != "A" {
		t.Fatalf("input tree must not be mutated")
	}
	if got, _ := Get(next, MustNormalize("user.name")); got != "B" {
		t.Fatalf("expected B, got %v", got)
	}
}

func TestSet_CreatesContainersAndDensifies(t *testing.T) {
	next, err := Set(nil, MustNormalize("items.2.name"), "c")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	want := map[string]any{
		"items": []any{nil, nil, map[string]any{"name": "c"}},
	}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}

	extended, err := Set(next, MustNormalize("items.4"), "e")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	items, _ := Get(extended, MustNormalize("items"))
	if got := len(items.([]any)); got != 5 {
		t.Fatalf("expected dense length 5, got %d", got)
	}
}

func TestSet_ThroughScalarFails(t *testing.T) {
	tree := map[string]any{"title": "hello"}
	_, err := Set(tree, MustNormalize("title.sub"), 1)
	if !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer, got %v", err)
	}

	_, err = Set(map[string]any{"list": []any{1}}, MustNormalize("list.name"), 1)
	if !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer for key on sequence, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	tree := map[string]any{
		"a":     map[string]any{"b": map[string]any{"c": 1}},
		"list":  []any{"x", "y", "z"},
		"items": []any{map[string]any{"only": true}},
		"keep":  true,
	}

	next, ok := Delete(tree, MustNormalize("a.b.c"))
	if !ok {
		t.Fatalf("expected delete to report removal")
	}
	if _, exists := next.(map[string]any)["a"]; exists {
		t.Fatalf("emptied ancestors must be pruned, got %v", next)
	}

	next, ok = Delete(next, MustNormalize("list.1"))
	if !ok {
		t.Fatalf("expected removal of list.1")
	}
	if diff := cmp.Diff([]any{"x", "z"}, next.(map[string]any)["list"]); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}

	next, _ = Delete(next, MustNormalize("items.0.only"))
	if diff := cmp.Diff([]any{map[string]any{}}, next.(map[string]any)["items"]); diff != "" {
		t.Fatalf("sequence elements stay in place (-want +got):\n%s", diff)
	}

	same, ok := Delete(next, MustNormalize("missing.key"))
	if ok || !SameRef(same, next) {
		t.Fatalf("deleting an absent path must return the tree untouched")
	}
	if _, exists := tree["a"]; !exists {
		t.Fatalf("input tree must not be mutated")
	}
}
