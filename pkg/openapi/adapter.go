package openapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/validation"
)

// AdapterName identifies the OpenAPI adapter in the orchestrator registry.
const AdapterName = "openapi"

// ErrNoRequestBody reports an operation without an object request body.
var ErrNoRequestBody = errors.New("openapi: operation has no object request body")

// Adapter builds definitions from the request bodies of OpenAPI operations.
type Adapter struct {
	parser Parser
}

var _ schema.Adapter = (*Adapter)(nil)

// NewAdapter constructs an adapter backed by parser.
func NewAdapter(parser Parser) *Adapter {
	return &Adapter{parser: parser}
}

// Name returns the adapter registry identifier.
func (a *Adapter) Name() string {
	return AdapterName
}

// Detect reports whether raw is an OpenAPI or Swagger document.
func (a *Adapter) Detect(_ schema.Source, raw []byte) bool {
	return detectOpenAPI(raw)
}

// Definition builds the form for the operation named by opts.FormID. With
// no id the document must hold exactly one operation with a request body.
func (a *Adapter) Definition(ctx context.Context, doc schema.Document, opts schema.AdapterOptions) (schema.Definition, error) {
	operations, err := a.operations(ctx, doc)
	if err != nil {
		return schema.Definition{}, err
	}
	op, err := selectOperation(operations, strings.TrimSpace(opts.FormID))
	if err != nil {
		return schema.Definition{}, err
	}
	return DefinitionFromOperation(op)
}

// Forms lists the operations with a request body, ordered by id.
func (a *Adapter) Forms(ctx context.Context, doc schema.Document) ([]schema.FormRef, error) {
	operations, err := a.operations(ctx, doc)
	if err != nil {
		return nil, err
	}
	var refs []schema.FormRef
	for _, op := range operations {
		if !op.HasRequestBody() {
			continue
		}
		refs = append(refs, schema.FormRef{ID: op.ID, Title: op.Summary})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (a *Adapter) operations(ctx context.Context, doc schema.Document) (map[string]Operation, error) {
	if a == nil || a.parser == nil {
		return nil, errors.New("openapi adapter: parser is nil")
	}
	return a.parser.Operations(ctx, doc)
}

func selectOperation(operations map[string]Operation, id string) (Operation, error) {
	if id != "" {
		op, ok := operations[id]
		if !ok {
			return Operation{}, fmt.Errorf("%w: operation %q", schema.ErrFormNotFound, id)
		}
		return op, nil
	}
	var candidates []Operation
	for _, op := range operations {
		if op.HasRequestBody() {
			candidates = append(candidates, op)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return Operation{}, fmt.Errorf("%w: no operation accepts a request body", schema.ErrFormNotFound)
	default:
		return Operation{}, fmt.Errorf("%w: document defines %d forms, pick one by operation id", schema.ErrFormNotFound, len(candidates))
	}
}

// DefinitionFromOperation converts the request body of op into a definition.
// Nested objects flatten into dotted item names, arrays become lists and
// read-only properties are left out. Properties are ordered by name.
func DefinitionFromOperation(op Operation) (schema.Definition, error) {
	if !op.HasRequestBody() {
		return schema.Definition{}, fmt.Errorf("%w: %q", ErrNoRequestBody, op.ID)
	}
	title := op.Summary
	if title == "" {
		title = labelFor(op.ID)
	}
	def := schema.Definition{
		ID:          op.ID,
		Title:       title,
		Description: op.Description,
		Items:       convertProperties(op.RequestBody, ""),
	}
	if err := def.Validate(); err != nil {
		return schema.Definition{}, fmt.Errorf("openapi: operation %q: %w", op.ID, err)
	}
	return def, nil
}

func convertProperties(parent Schema, prefix string) []schema.Item {
	names := make([]string, 0, len(parent.Properties))
	for name := range parent.Properties {
		if name == "" || strings.Contains(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var items []schema.Item
	for _, name := range names {
		prop := parent.Properties[name]
		if prop.ReadOnly {
			continue
		}
		full := prefix + name
		required := parent.IsRequired(name)
		switch {
		case primaryType(prop) == "object" && len(prop.Properties) > 0:
			items = append(items, convertProperties(prop, full+".")...)
		case primaryType(prop) == "array":
			items = append(items, listItem(full, name, prop))
		default:
			items = append(items, scalarItem(full, name, prop, required))
		}
	}
	return items
}

func listItem(full, name string, prop Schema) schema.Item {
	item := schema.Item{
		Name:        full,
		Label:       labelOf(prop, name),
		Description: prop.Description,
		List:        true,
	}
	if values, ok := prop.Default.([]any); ok {
		item.Default = values
	}
	switch {
	case prop.Items == nil:
		item.Fields = []schema.Item{{Label: item.Label}}
	case primaryType(*prop.Items) == "object" && len(prop.Items.Properties) > 0:
		item.Fields = convertProperties(*prop.Items, "")
	}
	if len(item.Fields) == 0 && prop.Items != nil {
		element := scalarItem("", name, *prop.Items, false)
		element.Label = labelOf(*prop.Items, name)
		item.Fields = []schema.Item{element}
	}
	return item
}

func scalarItem(full, name string, prop Schema, required bool) schema.Item {
	item := schema.Item{
		Name:        full,
		Label:       labelOf(prop, name),
		Description: prop.Description,
		Type:        itemType(prop),
		Required:    required,
		Default:     prop.Default,
		Secret:      prop.Format == "password",
	}
	if len(prop.Enum) > 0 {
		item.Options = append([]any(nil), prop.Enum...)
	}
	if item.Type == validation.TypeEmail {
		item.Normalize = []string{"trim", "lower"}
	}
	if prop.MinLength != nil {
		item.Rules = append(item.Rules, boundRule(validation.KindMin, float64(*prop.MinLength)))
	}
	if prop.MaxLength != nil {
		item.Rules = append(item.Rules, boundRule(validation.KindMax, float64(*prop.MaxLength)))
	}
	if prop.Minimum != nil {
		item.Rules = append(item.Rules, boundRule(validation.KindMin, *prop.Minimum))
	}
	if prop.Maximum != nil {
		item.Rules = append(item.Rules, boundRule(validation.KindMax, *prop.Maximum))
	}
	if prop.Pattern != "" {
		item.Rules = append(item.Rules, schema.RuleSpec{Kind: string(validation.KindPattern), Pattern: prop.Pattern})
	}
	return item
}

func boundRule(kind validation.Kind, value float64) schema.RuleSpec {
	return schema.RuleSpec{Kind: string(kind), Value: &value}
}

func labelOf(prop Schema, name string) string {
	if prop.Title != "" {
		return prop.Title
	}
	return labelFor(name)
}

// primaryType picks the first non-null entry of a type list such as
// "string,null".
func primaryType(s Schema) string {
	for _, typ := range strings.Split(s.Type, ",") {
		if typ = strings.TrimSpace(typ); typ != "" && typ != "null" {
			return typ
		}
	}
	if len(s.Properties) > 0 {
		return "object"
	}
	return ""
}

func itemType(s Schema) string {
	switch primaryType(s) {
	case "integer":
		return validation.TypeInteger
	case "number":
		return validation.TypeNumber
	case "boolean":
		return validation.TypeBoolean
	case "object":
		return validation.TypeObject
	case "string":
		switch strings.ToLower(s.Format) {
		case "email":
			return validation.TypeEmail
		case "uri", "url":
			return validation.TypeURL
		}
	}
	return ""
}

func detectOpenAPI(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	var probe map[string]any
	if err := yaml.Unmarshal(trimmed, &probe); err != nil {
		return false
	}
	if _, ok := probe["openapi"]; ok {
		return true
	}
	_, ok := probe["swagger"]
	return ok
}
