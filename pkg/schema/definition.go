// Package schema defines the declarative form format: a Definition lists the
// fields of a form with their labels, rules, triggers and normalizers, and
// Mount registers them on a form.Form. Definitions are written in YAML or
// JSON.
//
//	id: signup
//	items:
//	  - name: email
//	    type: email
//	    required: true
//	    normalize: [trim, lower]
//	  - name: users
//	    list: true
//	    fields:
//	      - name: name
//	        required: true
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-form2/pkg/form"
	"github.com/goliatone/go-form2/pkg/path"
	"github.com/goliatone/go-form2/pkg/validation"
)

var (
	// ErrInvalidDefinition wraps every structural problem found in a
	// definition.
	ErrInvalidDefinition = errors.New("schema: invalid definition")
	// ErrUnknownValidator is returned when a rule names a validator that is
	// not in the registry passed to Mount.
	ErrUnknownValidator = errors.New("schema: unknown validator")
	// ErrFormNotFound is returned when an adapter cannot find the requested
	// form in a document.
	ErrFormNotFound = errors.New("schema: form not found")
)

// Definition describes one form.
type Definition struct {
	ID          string         `yaml:"id,omitempty" json:"id,omitempty"`
	Title       string         `yaml:"title,omitempty" json:"title,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Trigger     string         `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	Initial     map[string]any `yaml:"initial,omitempty" json:"initial,omitempty"`
	Items       []Item         `yaml:"items" json:"items"`
}

// Item describes one field. A list item describes a dynamic group; its
// Fields are mounted under every element. A sub-field with an empty name
// addresses the element itself, which is how lists of scalars are declared.
type Item struct {
	Name        string     `yaml:"name" json:"name"`
	Label       string     `yaml:"label,omitempty" json:"label,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Type        string     `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Trigger     string     `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	Rules       []RuleSpec `yaml:"rules,omitempty" json:"rules,omitempty"`
	Normalize   []string   `yaml:"normalize,omitempty" json:"normalize,omitempty"`
	Options     []any      `yaml:"options,omitempty" json:"options,omitempty"`
	Default     any        `yaml:"default,omitempty" json:"default,omitempty"`
	Secret      bool       `yaml:"secret,omitempty" json:"secret,omitempty"`
	Multiline   bool       `yaml:"multiline,omitempty" json:"multiline,omitempty"`
	List        bool       `yaml:"list,omitempty" json:"list,omitempty"`
	Fields      []Item     `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// RuleSpec is the serialized form of a validation.Rule. Validator names a
// function registered in a validation.Registry.
type RuleSpec struct {
	Kind       string   `yaml:"kind" json:"kind"`
	Message    string   `yaml:"message,omitempty" json:"message,omitempty"`
	Value      *float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Pattern    string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Enum       []any    `yaml:"enum,omitempty" json:"enum,omitempty"`
	Type       string   `yaml:"type,omitempty" json:"type,omitempty"`
	Whitespace bool     `yaml:"whitespace,omitempty" json:"whitespace,omitempty"`
	Validator  string   `yaml:"validator,omitempty" json:"validator,omitempty"`
}

// Parse decodes a YAML or JSON definition and validates its structure.
// Unknown keys are rejected.
func Parse(raw []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return Definition{}, fmt.Errorf("%w: document is empty", ErrInvalidDefinition)
		}
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Marshal renders the definition as YAML.
func (d Definition) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("schema: encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("schema: encode definition: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks names, rule kinds, triggers, types and normalizers.
func (d Definition) Validate() error {
	if len(d.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidDefinition)
	}
	if _, err := ParseTriggers(d.Trigger); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return validateItems(d.Items, "", false)
}

func validateItems(items []Item, scope string, inList bool) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		where := joinName(scope, item.Name)
		if item.Name == "" {
			if !inList || len(items) > 1 {
				return fmt.Errorf("%w: item under %q has no name", ErrInvalidDefinition, scope)
			}
		} else if _, err := path.Parse(item.Name); err != nil {
			return fmt.Errorf("%w: item %q: %v", ErrInvalidDefinition, where, err)
		}
		if _, dup := seen[item.Name]; dup {
			return fmt.Errorf("%w: duplicate item %q", ErrInvalidDefinition, where)
		}
		seen[item.Name] = struct{}{}

		if err := item.validate(where); err != nil {
			return err
		}
		if item.List {
			if len(item.Fields) == 0 {
				return fmt.Errorf("%w: list %q declares no fields", ErrInvalidDefinition, where)
			}
			if err := validateItems(item.Fields, where+".*", true); err != nil {
				return err
			}
		} else if len(item.Fields) > 0 {
			return fmt.Errorf("%w: item %q has fields but is not a list", ErrInvalidDefinition, where)
		}
	}
	return nil
}

func (it Item) validate(where string) error {
	if _, err := ParseTriggers(it.Trigger); err != nil {
		return fmt.Errorf("%w: item %q: %v", ErrInvalidDefinition, where, err)
	}
	if it.Type != "" && !knownType(it.Type) {
		return fmt.Errorf("%w: item %q: unknown type %q", ErrInvalidDefinition, where, it.Type)
	}
	for _, name := range it.Normalize {
		if _, err := validation.NormalizerByName(name); err != nil {
			return fmt.Errorf("%w: item %q: %v", ErrInvalidDefinition, where, err)
		}
	}
	for i, spec := range it.Rules {
		if _, err := spec.compile(nil); err != nil && !errors.Is(err, ErrUnknownValidator) {
			return fmt.Errorf("%w: item %q rule %d: %v", ErrInvalidDefinition, where, i, err)
		}
	}
	return nil
}

func joinName(scope, name string) string {
	switch {
	case scope == "":
		return name
	case name == "":
		return scope
	default:
		return scope + "." + name
	}
}

func knownType(typ string) bool {
	switch typ {
	case validation.TypeString, validation.TypeNumber, validation.TypeInteger,
		validation.TypeBoolean, validation.TypeArray, validation.TypeObject,
		validation.TypeEmail, validation.TypeURL:
		return true
	}
	return false
}

// ParseTriggers reads a trigger list such as "change|blur" or "blur, submit".
// An empty string yields zero, which selects the form default.
func ParseTriggers(raw string) (form.Trigger, error) {
	var out form.Trigger
	names := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})
	for _, name := range names {
		trigger, err := form.ParseTrigger(name)
		if err != nil {
			return 0, err
		}
		out |= trigger
	}
	return out, nil
}

// compile turns the spec into a rule. Validator names resolve through reg;
// a nil registry resolves nothing.
func (s RuleSpec) compile(reg *validation.Registry) (validation.Rule, error) {
	kind := validation.Kind(strings.ToLower(strings.TrimSpace(s.Kind)))
	switch kind {
	case validation.KindRequired:
		rule := validation.Required(s.Message)
		rule.Whitespace = s.Whitespace
		return rule, nil
	case validation.KindMin, validation.KindMax, validation.KindLen:
		if s.Value == nil {
			return validation.Rule{}, fmt.Errorf("%s rule requires a value", kind)
		}
		return validation.Rule{Kind: kind, Bound: *s.Value, Message: s.Message}, nil
	case validation.KindPattern:
		if s.Pattern == "" {
			return validation.Rule{}, errors.New("pattern rule requires a pattern")
		}
		return validation.Pattern(s.Pattern, s.Message)
	case validation.KindEnum:
		if len(s.Enum) == 0 {
			return validation.Rule{}, errors.New("enum rule requires values")
		}
		return validation.OneOf(s.Enum, s.Message), nil
	case validation.KindType:
		if !knownType(s.Type) {
			return validation.Rule{}, fmt.Errorf("unknown type %q", s.Type)
		}
		return validation.TypeOf(s.Type, s.Message), nil
	case validation.KindValidator:
		if s.Validator == "" {
			return validation.Rule{}, errors.New("validator rule requires a validator name")
		}
		fn, ok := reg.Lookup(s.Validator)
		if !ok {
			return validation.Rule{}, fmt.Errorf("%w: %q", ErrUnknownValidator, s.Validator)
		}
		return validation.Validator(fn, s.Message), nil
	default:
		return validation.Rule{}, fmt.Errorf("unknown rule kind %q", s.Kind)
	}
}

// InitialValues returns d.Initial with every item default filled in where
// the initial values leave the path absent. List item defaults apply to
// elements added later, not here.
func (d Definition) InitialValues() (map[string]any, error) {
	var tree any = map[string]any{}
	for key, value := range d.Initial {
		next, err := path.Set(tree, path.Of(path.Key(key)), value)
		if err != nil {
			return nil, fmt.Errorf("schema: initial value %q: %w", key, err)
		}
		tree = next
	}
	for _, item := range d.Items {
		if item.Default == nil || item.Name == "" {
			continue
		}
		p, err := path.Parse(item.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q: %v", ErrInvalidDefinition, item.Name, err)
		}
		if _, exists := path.Get(tree, p); exists {
			continue
		}
		next, err := path.Set(tree, p, item.Default)
		if err != nil {
			return nil, fmt.Errorf("schema: default for %q: %w", item.Name, err)
		}
		tree = next
	}
	values, _ := tree.(map[string]any)
	return values, nil
}

// NewItem returns the value a fresh list element starts with: a map of the
// sub-field defaults, or the default of the element itself.
func (it Item) NewItem() any {
	if len(it.Fields) == 1 && it.Fields[0].Name == "" {
		return it.Fields[0].Default
	}
	var tree any = map[string]any{}
	for _, sub := range it.Fields {
		if sub.Default == nil && !sub.List {
			continue
		}
		p, err := path.Parse(sub.Name)
		if err != nil {
			continue
		}
		value := sub.Default
		if sub.List && value == nil {
			value = []any{}
		}
		if next, err := path.Set(tree, p, value); err == nil {
			tree = next
		}
	}
	return tree
}
