package openapi

import (
	"context"

	"github.com/goliatone/go-form2/pkg/schema"
)

// Parser reads an OpenAPI document into operations keyed by operationId.
// The kin-openapi implementation is built with form2.NewParser.
type Parser interface {
	Operations(ctx context.Context, doc schema.Document) (map[string]Operation, error)
}

// ParserOptions toggles parser behaviour.
type ParserOptions struct {
	// ResolveReferences follows external $ref pointers and validates the
	// document after loading. Defaults to true.
	ResolveReferences bool

	// AllowPartialDocuments accepts documents that define no operations.
	AllowPartialDocuments bool
}

// ParserOption mutates ParserOptions during construction.
type ParserOption func(*ParserOptions)

// WithReferenceResolution toggles reference resolution and validation.
func WithReferenceResolution(enabled bool) ParserOption {
	return func(opts *ParserOptions) {
		opts.ResolveReferences = enabled
	}
}

// WithPartialDocuments toggles support for component-only documents.
func WithPartialDocuments(enabled bool) ParserOption {
	return func(opts *ParserOptions) {
		opts.AllowPartialDocuments = enabled
	}
}

// NewParserOptions applies options over the defaults.
func NewParserOptions(options ...ParserOption) ParserOptions {
	cfg := ParserOptions{ResolveReferences: true}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
