package schema

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AdapterOptions selects what an adapter extracts from a document.
type AdapterOptions struct {
	// FormID picks one form out of documents holding several (an OpenAPI
	// operationId, for instance). Empty selects the only form.
	FormID string
}

// FormRef names a form available in a document.
type FormRef struct {
	ID    string
	Title string
}

// Adapter turns a loaded document of one format into definitions.
type Adapter interface {
	Name() string
	Detect(src Source, raw []byte) bool
	Definition(ctx context.Context, doc Document, opts AdapterOptions) (Definition, error)
	Forms(ctx context.Context, doc Document) ([]FormRef, error)
}

// NativeAdapterName identifies the YAML/JSON definition format.
const NativeAdapterName = "form2"

// NativeAdapter reads documents written in the Definition format.
type NativeAdapter struct{}

var _ Adapter = NativeAdapter{}

// Name returns the adapter registry identifier.
func (NativeAdapter) Name() string {
	return NativeAdapterName
}

// Detect reports whether raw looks like a definition: a mapping with an
// items key that is not an OpenAPI document.
func (NativeAdapter) Detect(_ Source, raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	var probe map[string]any
	if err := yaml.Unmarshal(trimmed, &probe); err != nil {
		return false
	}
	if _, ok := probe["openapi"]; ok {
		return false
	}
	_, ok := probe["items"]
	return ok
}

// Definition parses the document.
func (NativeAdapter) Definition(_ context.Context, doc Document, opts AdapterOptions) (Definition, error) {
	def, err := Parse(doc.Raw())
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", doc.Location(), err)
	}
	want := strings.TrimSpace(opts.FormID)
	if want != "" && def.ID != "" && def.ID != want {
		return Definition{}, fmt.Errorf("%w: %q (document defines %q)", ErrFormNotFound, want, def.ID)
	}
	return def, nil
}

// Forms lists the single form the document defines.
func (a NativeAdapter) Forms(ctx context.Context, doc Document) ([]FormRef, error) {
	def, err := a.Definition(ctx, doc, AdapterOptions{})
	if err != nil {
		return nil, err
	}
	return []FormRef{{ID: def.ID, Title: def.Title}}, nil
}
