package schema_test

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-form2/pkg/form"
	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/testsupport"
)

func TestParse_Fixture(t *testing.T) {
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))

	if def.ID != "signup" || def.Title != "Create account" {
		t.Fatalf("unexpected header: %q %q", def.ID, def.Title)
	}
	var names []string
	for _, item := range def.Items {
		names = append(names, item.Name)
	}
	want := []string{"email", "password", "age", "country", "profile.bio", "newsletter", "users", "tags"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("item names mismatch (-want +got):\n%s", diff)
	}

	users := def.Items[6]
	if !users.List || len(users.Fields) != 2 {
		t.Fatalf("expected users list with two fields, got %+v", users)
	}
	if got := *def.Items[1].Rules[0].Value; got != 8 {
		t.Fatalf("expected password min 8, got %v", got)
	}
}

func TestParse_JSON(t *testing.T) {
	raw := []byte(`{"id":"j","items":[{"name":"a","required":true,"rules":[{"kind":"max","value":3}]}]}`)
	def, err := schema.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(def.Items) != 1 || !def.Items[0].Required || *def.Items[0].Rules[0].Value != 3 {
		t.Fatalf("unexpected definition: %+v", def)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty document", raw: ""},
		{name: "no items", raw: "id: x\nitems: []\n"},
		{name: "unknown key", raw: "items:\n  - name: a\n    colour: red\n"},
		{name: "missing name", raw: "items:\n  - label: A\n"},
		{name: "bad path", raw: "items:\n  - name: a..b\n"},
		{name: "duplicate", raw: "items:\n  - name: a\n  - name: a\n"},
		{name: "unknown rule", raw: "items:\n  - name: a\n    rules: [{kind: shout}]\n"},
		{name: "bound without value", raw: "items:\n  - name: a\n    rules: [{kind: min}]\n"},
		{name: "bad pattern", raw: "items:\n  - name: a\n    rules: [{kind: pattern, pattern: '('}]\n"},
		{name: "unknown type", raw: "items:\n  - name: a\n    type: colour\n"},
		{name: "unknown trigger", raw: "items:\n  - name: a\n    trigger: hover\n"},
		{name: "unknown normalizer", raw: "items:\n  - name: a\n    normalize: [reverse]\n"},
		{name: "list without fields", raw: "items:\n  - name: a\n    list: true\n"},
		{name: "fields without list", raw: "items:\n  - name: a\n    fields: [{name: b}]\n"},
		{name: "unnamed sibling", raw: "items:\n  - name: a\n    list: true\n    fields: [{name: ''}, {name: b}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.raw))
			if !errors.Is(err, schema.ErrInvalidDefinition) {
				t.Fatalf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
}

func TestParseTriggers(t *testing.T) {
	got, err := schema.ParseTriggers("change|blur")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != form.OnChange|form.OnBlur {
		t.Fatalf("unexpected trigger %v", got)
	}
	if got, _ := schema.ParseTriggers(""); got != 0 {
		t.Fatalf("expected zero trigger, got %v", got)
	}
}

func TestInitialValues(t *testing.T) {
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	values, err := def.InitialValues()
	if err != nil {
		t.Fatalf("initial values: %v", err)
	}
	want := map[string]any{"country": "NZ", "newsletter": false}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("initial values mismatch (-want +got):\n%s", diff)
	}
}

func TestItemNewItem(t *testing.T) {
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	if diff := cmp.Diff(map[string]any{"role": "member"}, def.Items[6].NewItem()); diff != "" {
		t.Fatalf("users element mismatch (-want +got):\n%s", diff)
	}
	if got := def.Items[7].NewItem(); got != nil {
		t.Fatalf("expected nil tag element, got %#v", got)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	raw, err := os.ReadFile(testsupport.Fixture("signup.yaml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	def, err := schema.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := def.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, err := schema.Parse(out)
	if err != nil {
		t.Fatalf("parse marshalled: %v\n%s", err, out)
	}
	if diff := cmp.Diff(def, again, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
