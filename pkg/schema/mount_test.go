package schema_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-form2/pkg/form"
	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/testsupport"
	"github.com/goliatone/go-form2/pkg/validation"
)

func signupValidators() *validation.Registry {
	reg := validation.NewRegistry()
	reg.Register("unique-email", func(_ context.Context, value any, _ map[string]any) error {
		if value == "taken@example.com" {
			return errors.New("email already registered")
		}
		return nil
	})
	return reg
}

func mountSignup(t *testing.T) *schema.Mounted {
	t.Helper()
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	initial, err := def.InitialValues()
	require.NoError(t, err)
	m, err := schema.Mount(form.New(initial), def, schema.WithValidators(signupValidators()))
	require.NoError(t, err)
	return m
}

func fieldNames(f *form.Form) []string {
	var names []string
	for _, meta := range f.Fields() {
		names = append(names, meta.Name)
	}
	return names
}

func TestMount_RegistersTopLevelItems(t *testing.T) {
	m := mountSignup(t)
	assert.Equal(t, []string{
		"email", "password", "age", "country", "profile.bio", "newsletter", "users", "tags",
	}, fieldNames(m.Form()))
}

func TestMount_MountsExistingListElements(t *testing.T) {
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	f := form.New(map[string]any{
		"users": []any{map[string]any{"name": "Ann"}, map[string]any{"name": "Bo"}},
	})
	m, err := schema.Mount(f, def, schema.WithValidators(signupValidators()))
	require.NoError(t, err)

	users, err := m.List("users")
	require.NoError(t, err)
	assert.Equal(t, 2, users.Len())
	assert.Equal(t, 2, f.CountUnder("users"))
	_, ok := f.FieldMeta("users.1.role")
	assert.True(t, ok)
}

func TestMount_UnknownValidator(t *testing.T) {
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	_, err := schema.Mount(form.New(nil), def)
	assert.ErrorIs(t, err, schema.ErrUnknownValidator)
}

func TestMounted_AddItemUsesDefaults(t *testing.T) {
	m := mountSignup(t)
	f := m.Form()

	element, err := m.AddItem("users", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, element.Name)
	assert.Equal(t, "member", f.GetFieldValue("users.0.role"))
	_, ok := f.FieldMeta("users.0.name")
	assert.True(t, ok)

	_, err = m.AddItem("tags", "go")
	require.NoError(t, err)
	_, ok = f.FieldMeta("tags.0")
	assert.True(t, ok)

	_, err = m.AddItem("email", nil)
	assert.ErrorIs(t, err, schema.ErrInvalidDefinition)

	require.NoError(t, m.RemoveItem("users", 0))
	_, ok = f.FieldMeta("users.0.name")
	assert.False(t, ok)
}

func TestMounted_SubmitAppliesCompiledRules(t *testing.T) {
	m := mountSignup(t)
	f := m.Form()
	_, err := m.AddItem("users", map[string]any{"name": "   "})
	require.NoError(t, err)
	_, err = m.AddItem("tags", nil)
	require.NoError(t, err)

	require.NoError(t, f.SetFieldsValue(map[string]any{
		"email":    "  Ada@Example.com ",
		"password": "secret",
		"age":      17,
		"country":  "NZ",
		"profile":  map[string]any{"bio": "<p>Hi</p>"},
	}))
	assert.Equal(t, "ada@example.com", f.GetFieldValue("email"))
	assert.Equal(t, "Hi", f.GetFieldValue("profile.bio"))

	outcome := f.Submit(context.Background())
	assert.Equal(t, map[string]string{
		"password":     "use at least 8 characters",
		"age":          "'Age' must be at least 18",
		"users.0.name": "'Name' is required",
		"tags.0":       "'Tag' is required",
	}, outcome.ErrorMap())

	var order []string
	for _, fe := range outcome.Errors {
		order = append(order, fe.Name)
	}
	assert.Equal(t, []string{"password", "age", "users.0.name", "tags.0"}, order)
}

func TestMounted_NamedValidator(t *testing.T) {
	m := mountSignup(t)
	f := m.Form()

	require.NoError(t, f.SetFieldValue("email", "taken@example.com"))
	require.NoError(t, f.Wait(context.Background()))
	assert.Equal(t, "email already registered", f.GetFieldError("email"))
}

func TestMounted_BlurTriggerFromDefinition(t *testing.T) {
	m := mountSignup(t)
	f := m.Form()

	require.NoError(t, f.SetFieldValue("password", "short"))
	assert.Empty(t, f.GetFieldError("password"))
	require.NoError(t, f.Blur("password"))
	assert.Equal(t, "use at least 8 characters", f.GetFieldError("password"))
}

func TestMounted_NestedLists(t *testing.T) {
	def, err := schema.Parse([]byte(`
items:
  - name: teams
    list: true
    fields:
      - name: title
        required: true
      - name: members
        list: true
        fields:
          - name: ""
            required: true
`))
	require.NoError(t, err)
	f := form.New(nil)
	m, err := schema.Mount(f, def)
	require.NoError(t, err)

	team, err := m.AddItem("teams", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, f.GetFieldValue("teams.0.members"))

	_, err = m.AddItem(team.Sub("members"), "ann")
	require.NoError(t, err)
	_, ok := f.FieldMeta("teams.0.members.0")
	assert.True(t, ok)

	subs, err := m.ItemFields("teams.0.members")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Required)
}

func TestMounted_SyncAfterReset(t *testing.T) {
	def := testsupport.MustLoadDefinition(t, testsupport.Fixture("signup.yaml"))
	f := form.New(map[string]any{"users": []any{map[string]any{"name": "Ann"}}})
	m, err := schema.Mount(f, def, schema.WithValidators(signupValidators()))
	require.NoError(t, err)

	_, err = m.AddItem("users", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.CountUnder("users"))

	f.Reset()
	require.NoError(t, m.Sync())
	users, err := m.List("users")
	require.NoError(t, err)
	assert.Equal(t, 1, users.Len())
	assert.Equal(t, users.Len(), f.CountUnder("users"))
}

func TestMounted_WritesThatShrinkListsDropItemFields(t *testing.T) {
	m := mountSignup(t)
	f := m.Form()
	if _, err := m.AddItem("users", nil); err != nil {
		t.Fatalf("add user: %v", err)
	}

	if err := f.SetFieldValue("users", []any{}); err != nil {
		t.Fatalf("clear users: %v", err)
	}

	if got := f.CountUnder("users"); got != 0 {
		t.Fatalf("expected no user fields, got %d", got)
	}
	for name := range f.Submit(context.Background()).ErrorMap() {
		if strings.HasPrefix(name, "users.") {
			t.Fatalf("submit reported dropped item field %s", name)
		}
	}

	err := f.SetFieldsValue(map[string]any{
		"users": []any{map[string]any{"name": "Ann"}, map[string]any{"name": "Bo"}},
	})
	if err != nil {
		t.Fatalf("set users: %v", err)
	}
	if err := m.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	users, err := m.List("users")
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if users.Len() != 2 || f.CountUnder("users") != 2 {
		t.Fatalf("expected two mounted users, len=%d countUnder=%d", users.Len(), f.CountUnder("users"))
	}
	if _, ok := f.FieldMeta("users.1.role"); !ok {
		t.Fatalf("expected users.1.role mounted by sync")
	}
}
