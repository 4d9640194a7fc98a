// Package form2 is the entry point of the form engine: it builds loaders,
// OpenAPI parsers and orchestrators without exposing their internal
// implementations. The engine itself lives in pkg/form; the declarative
// format in pkg/schema.
package form2

import (
	"context"

	internalloader "github.com/goliatone/go-form2/internal/loader"
	internalparser "github.com/goliatone/go-form2/internal/openapi/parser"
	pkgopenapi "github.com/goliatone/go-form2/pkg/openapi"
	"github.com/goliatone/go-form2/pkg/orchestrator"
	"github.com/goliatone/go-form2/pkg/schema"
)

// NewLoader constructs a document loader.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	return internalloader.New(schema.NewLoaderOptions(options...))
}

// NewParser constructs the kin-openapi backed OpenAPI parser.
func NewParser(options ...pkgopenapi.ParserOption) pkgopenapi.Parser {
	return internalparser.New(pkgopenapi.NewParserOptions(options...))
}

// NewOrchestrator exposes the orchestrator constructor from the module root.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// MountSource loads src, converts it with the detected adapter and mounts
// the resulting definition on a new form. formID picks one form out of
// documents that define several.
func MountSource(ctx context.Context, src schema.Source, formID string, options ...orchestrator.Option) (*schema.Mounted, error) {
	return orchestrator.New(options...).Mount(ctx, orchestrator.Request{
		Source: src,
		FormID: formID,
	})
}
