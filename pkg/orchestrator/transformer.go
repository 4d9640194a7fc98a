package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-form2/pkg/schema"
)

// Transformer rewrites a definition after an adapter produced it and before
// it is mounted.
type Transformer interface {
	Transform(ctx context.Context, def *schema.Definition) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, def *schema.Definition) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, def *schema.Definition) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, def)
}

// PresetTransformer applies declarative overrides read from YAML or JSON.
// Items are addressed by name; list sub-items by "list.sub", and the
// unnamed element of a scalar list by "list.*":
//
//	title: Join the team
//	trigger: blur
//	items:
//	  email: {label: Work email}
//	  users.role: {default: admin}
//	  age: {hidden: true}
type PresetTransformer struct {
	preset preset
}

type preset struct {
	Title       string               `yaml:"title"`
	Description string               `yaml:"description"`
	Trigger     string               `yaml:"trigger"`
	Items       map[string]itemPatch `yaml:"items"`
	Initial     map[string]any       `yaml:"initial"`
}

type itemPatch struct {
	Label       string            `yaml:"label"`
	Description string            `yaml:"description"`
	Required    *bool             `yaml:"required"`
	Trigger     string            `yaml:"trigger"`
	Default     any               `yaml:"default"`
	Hidden      bool              `yaml:"hidden"`
	Rules       []schema.RuleSpec `yaml:"rules"`
}

// NewPresetTransformer parses a preset document.
func NewPresetTransformer(data []byte) (*PresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("preset transformer: document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p preset
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("preset transformer: parse document: %w", err)
	}
	return &PresetTransformer{preset: p}, nil
}

// NewPresetTransformerFromFS reads a preset document from fsys.
func NewPresetTransformerFromFS(fsys fs.FS, name string) (*PresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("preset transformer: read %s: %w", name, err)
	}
	return NewPresetTransformer(data)
}

// Transform applies the preset. Patching an item the definition does not
// declare is an error.
func (t *PresetTransformer) Transform(ctx context.Context, def *schema.Definition) error {
	if def == nil {
		return errors.New("preset transformer: definition is nil")
	}
	if t.preset.Title != "" {
		def.Title = t.preset.Title
	}
	if t.preset.Description != "" {
		def.Description = t.preset.Description
	}
	if t.preset.Trigger != "" {
		def.Trigger = t.preset.Trigger
	}
	if len(t.preset.Initial) > 0 {
		if def.Initial == nil {
			def.Initial = make(map[string]any, len(t.preset.Initial))
		}
		for key, value := range t.preset.Initial {
			def.Initial[key] = value
		}
	}

	for name, patch := range t.preset.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, index := findItem(&def.Items, name)
		if items == nil {
			return fmt.Errorf("preset transformer: item %q not found", name)
		}
		if patch.Hidden {
			*items = append((*items)[:index], (*items)[index+1:]...)
			continue
		}
		patch.apply(&(*items)[index])
	}
	return nil
}

func (p itemPatch) apply(item *schema.Item) {
	if p.Label != "" {
		item.Label = p.Label
	}
	if p.Description != "" {
		item.Description = p.Description
	}
	if p.Required != nil {
		item.Required = *p.Required
	}
	if p.Trigger != "" {
		item.Trigger = p.Trigger
	}
	if p.Default != nil {
		item.Default = p.Default
	}
	item.Rules = append(item.Rules, p.Rules...)
}

// findItem locates name and returns the slice holding it plus its index.
func findItem(items *[]schema.Item, name string) (*[]schema.Item, int) {
	for i, item := range *items {
		if item.Name == name || (item.Name == "" && name == "*") {
			return items, i
		}
	}
	for i := range *items {
		item := &(*items)[i]
		if !item.List || item.Name == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(name, item.Name+"."); ok {
			if found, index := findItem(&item.Fields, rest); found != nil {
				return found, index
			}
		}
	}
	return nil, -1
}
