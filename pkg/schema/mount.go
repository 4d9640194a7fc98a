package schema

import (
	"fmt"

	"github.com/goliatone/go-form2/pkg/form"
	"github.com/goliatone/go-form2/pkg/path"
	"github.com/goliatone/go-form2/pkg/validation"
)

// MountOption configures Mount.
type MountOption func(*mountConfig)

type mountConfig struct {
	validators *validation.Registry
}

// WithValidators resolves validator rules by name against reg.
func WithValidators(reg *validation.Registry) MountOption {
	return func(cfg *mountConfig) {
		cfg.validators = reg
	}
}

// Mounted is a definition registered on a form. It keeps the compiled item
// options so list elements added later get the same fields.
type Mounted struct {
	form  *form.Form
	def   Definition
	items []compiledItem
}

type compiledItem struct {
	item   Item
	opts   []form.ItemOption
	fields []compiledItem
}

// Mount compiles def and registers its fields on f. List groups are opened
// and every existing element gets its fields mounted.
func Mount(f *form.Form, def Definition, opts ...MountOption) (*Mounted, error) {
	var cfg mountConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	defaultTrigger, _ := ParseTriggers(def.Trigger)

	items, err := compileItems(def.Items, cfg.validators, defaultTrigger)
	if err != nil {
		return nil, err
	}
	m := &Mounted{form: f, def: def, items: items}
	if err := m.Sync(); err != nil {
		return nil, err
	}
	return m, nil
}

func compileItems(items []Item, reg *validation.Registry, defaultTrigger form.Trigger) ([]compiledItem, error) {
	out := make([]compiledItem, 0, len(items))
	for _, item := range items {
		opts, err := item.compile(reg, defaultTrigger)
		if err != nil {
			return nil, err
		}
		compiled := compiledItem{item: item, opts: opts}
		if item.List {
			compiled.fields, err = compileItems(item.Fields, reg, defaultTrigger)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, compiled)
	}
	return out, nil
}

// compile turns the item into registration options. The chain is: presence,
// value type, allowed options, then the declared rules in order.
func (it Item) compile(reg *validation.Registry, defaultTrigger form.Trigger) ([]form.ItemOption, error) {
	var rules []validation.Rule
	if it.Type != "" && it.Type != validation.TypeString {
		rules = append(rules, validation.TypeOf(it.Type, ""))
	}
	if len(it.Options) > 0 {
		rules = append(rules, validation.OneOf(it.Options, ""))
	}
	for i, spec := range it.Rules {
		rule, err := spec.compile(reg)
		if err != nil {
			return nil, fmt.Errorf("schema: item %q rule %d: %w", it.Name, i, err)
		}
		rules = append(rules, rule)
	}

	opts := []form.ItemOption{form.Rules(rules...)}
	if it.Required {
		opts = append(opts, form.Required())
	}
	if it.Label != "" {
		opts = append(opts, form.Label(it.Label))
	}
	trigger, _ := ParseTriggers(it.Trigger)
	if trigger == 0 {
		trigger = defaultTrigger
	}
	if trigger != 0 {
		opts = append(opts, form.ValidateTrigger(trigger))
	}
	if len(it.Normalize) > 0 {
		normalizers := make([]validation.Normalizer, 0, len(it.Normalize))
		for _, name := range it.Normalize {
			fn, err := validation.NormalizerByName(name)
			if err != nil {
				return nil, fmt.Errorf("schema: item %q: %w", it.Name, err)
			}
			normalizers = append(normalizers, fn)
		}
		opts = append(opts, form.Normalize(validation.Chain(normalizers...)))
	}
	return opts, nil
}

// Form returns the form the definition is mounted on.
func (m *Mounted) Form() *form.Form {
	return m.form
}

// Definition returns the mounted definition.
func (m *Mounted) Definition() Definition {
	return m.def
}

// Sync registers every field the definition implies for the current values:
// top level items plus the fields of every list element. Registration is
// idempotent and the form itself releases the fields of list items a write
// dropped, so after Reset, SetFieldsValue or list edits made outside Mounted
// Sync only adds the fields of items that appeared.
func (m *Mounted) Sync() error {
	return m.mountItems(nil, m.items)
}

func (m *Mounted) mountItems(base path.Path, items []compiledItem) error {
	for _, ci := range items {
		p := base.Clone()
		if ci.item.Name != "" {
			rel, err := path.Parse(ci.item.Name)
			if err != nil {
				return fmt.Errorf("%w: item %q: %v", ErrInvalidDefinition, ci.item.Name, err)
			}
			p = p.Append(rel...)
		}
		if _, err := m.form.Register(p, ci.opts...); err != nil {
			return fmt.Errorf("schema: mount %q: %w", p.String(), err)
		}
		if !ci.item.List {
			continue
		}
		list, err := m.form.List(p)
		if err != nil {
			return fmt.Errorf("schema: mount list %q: %w", p.String(), err)
		}
		for _, element := range list.Fields() {
			if err := m.mountItems(element.Path, ci.fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// Items returns the definition items in declaration order.
func (m *Mounted) Items() []Item {
	out := make([]Item, len(m.items))
	for i, ci := range m.items {
		out[i] = ci.item
	}
	return out
}

// List returns the list group at name, which may address a nested list
// such as "teams.0.members".
func (m *Mounted) List(name any) (*form.List, error) {
	return m.form.List(name)
}

// AddItem appends an element to the list at name and mounts its fields. A
// nil value starts the element from the declared defaults.
func (m *Mounted) AddItem(name any, value any) (form.ListField, error) {
	list, ci, err := m.lookupList(name)
	if err != nil {
		return form.ListField{}, err
	}
	if value == nil {
		value = ci.item.NewItem()
	}
	if err := list.Add(value); err != nil {
		return form.ListField{}, err
	}
	fields := list.Fields()
	element := fields[len(fields)-1]
	if err := m.mountItems(element.Path, ci.fields); err != nil {
		return form.ListField{}, err
	}
	return element, nil
}

// RemoveItem removes the elements at indices from the list at name.
func (m *Mounted) RemoveItem(name any, indices ...int) error {
	list, _, err := m.lookupList(name)
	if err != nil {
		return err
	}
	return list.Remove(indices...)
}

// ItemFields returns the compiled sub-items of the list at name.
func (m *Mounted) ItemFields(name any) ([]Item, error) {
	_, ci, err := m.lookupList(name)
	if err != nil {
		return nil, err
	}
	out := make([]Item, len(ci.fields))
	for i, sub := range ci.fields {
		out[i] = sub.item
	}
	return out, nil
}

// lookupList resolves name against the definition, skipping element
// indices, so "teams.1.members" finds the members sub-item of teams.
func (m *Mounted) lookupList(name any) (*form.List, compiledItem, error) {
	p, err := path.Normalize(name)
	if err != nil {
		return nil, compiledItem{}, fmt.Errorf("schema: list %v: %w", name, err)
	}
	ci, ok := findList(m.items, p)
	if !ok {
		return nil, compiledItem{}, fmt.Errorf("%w: %q is not a declared list", ErrInvalidDefinition, p.String())
	}
	list, err := m.form.List(p)
	if err != nil {
		return nil, compiledItem{}, err
	}
	return list, ci, nil
}

func findList(items []compiledItem, p path.Path) (compiledItem, bool) {
	for _, ci := range items {
		rel, err := path.Parse(ci.item.Name)
		if ci.item.Name == "" {
			rel, err = nil, nil
		}
		if err != nil || !p.HasPrefix(rel) {
			continue
		}
		rest := p[len(rel):]
		if len(rest) == 0 {
			if ci.item.List {
				return ci, true
			}
			continue
		}
		if !ci.item.List || !rest[0].IsIndex() {
			continue
		}
		if found, ok := findList(ci.fields, rest[1:]); ok {
			return found, true
		}
	}
	return compiledItem{}, false
}
