// Package parser reads OpenAPI 3 documents with kin-openapi and converts
// them into the wrappers defined by pkg/openapi.
package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	pkgopenapi "github.com/goliatone/go-form2/pkg/openapi"
	"github.com/goliatone/go-form2/pkg/schema"
)

// Parser implements pkgopenapi.Parser using kin-openapi.
type Parser struct {
	options pkgopenapi.ParserOptions
}

var _ pkgopenapi.Parser = (*Parser)(nil)

// New constructs a Parser with the given options.
func New(options pkgopenapi.ParserOptions) *Parser {
	return &Parser{options: options}
}

// requestMediaTypes lists the request content types tried in order before
// falling back to whichever one the operation declares.
var requestMediaTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// Operations converts doc into operations keyed by operationId. Operations
// without an id are keyed "method:path".
func (p *Parser) Operations(ctx context.Context, doc schema.Document) (map[string]pkgopenapi.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := doc.Raw()
	if len(raw) == 0 {
		return nil, errors.New("openapi parser: document payload is empty")
	}

	spec, err := p.load(ctx, doc.Source(), raw)
	if err != nil {
		return nil, err
	}
	if p.options.ResolveReferences {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi parser: validate: %w", err)
		}
	}

	operations := make(map[string]pkgopenapi.Operation)
	if spec.Paths != nil {
		for path, item := range spec.Paths.Map() {
			if item == nil {
				continue
			}
			for method, operation := range item.Operations() {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				op, ok := convertOperation(method, path, operation)
				if ok {
					operations[op.ID] = op
				}
			}
		}
	}
	if len(operations) == 0 && !p.options.AllowPartialDocuments {
		return nil, errors.New("openapi parser: document does not contain any operations")
	}
	return operations, nil
}

func (p *Parser) load(ctx context.Context, src schema.Source, raw []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = p.options.ResolveReferences

	var (
		spec *openapi3.T
		err  error
	)
	switch location := documentLocation(src); {
	case location != nil && p.options.ResolveReferences:
		spec, err = loader.LoadFromDataWithPath(raw, location)
	default:
		spec, err = loader.LoadFromData(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("openapi parser: load document: %w", err)
	}
	return spec, nil
}

// documentLocation returns the base used to resolve relative external
// references, or nil when the source has none.
func documentLocation(src schema.Source) *url.URL {
	if src == nil || src.Location() == "" {
		return nil
	}
	switch src.Kind() {
	case schema.SourceKindFile:
		abs, err := filepath.Abs(src.Location())
		if err != nil {
			return nil
		}
		return &url.URL{Path: filepath.ToSlash(abs)}
	case schema.SourceKindURL:
		u, err := url.Parse(src.Location())
		if err != nil {
			return nil
		}
		return u
	}
	return nil
}

func convertOperation(method, path string, operation *openapi3.Operation) (pkgopenapi.Operation, bool) {
	if operation == nil {
		return pkgopenapi.Operation{}, false
	}
	id := operation.OperationID
	if id == "" {
		id = strings.ToLower(method) + ":" + path
	}
	op, err := pkgopenapi.NewOperation(id, method, path, requestSchema(operation.RequestBody), responseSchemas(operation.Responses))
	if err != nil {
		return pkgopenapi.Operation{}, false
	}
	op.Summary = operation.Summary
	op.Description = operation.Description
	return op, true
}

func requestSchema(body *openapi3.RequestBodyRef) pkgopenapi.Schema {
	if body == nil {
		return pkgopenapi.Schema{}
	}
	if body.Value == nil {
		return pkgopenapi.Schema{Ref: body.Ref}
	}
	content := body.Value.Content
	for _, mediaType := range requestMediaTypes {
		if mt, ok := content[mediaType]; ok && mt != nil {
			return newConverter().convert(mt.Schema)
		}
	}
	for _, mt := range content {
		if mt != nil {
			return newConverter().convert(mt.Schema)
		}
	}
	return pkgopenapi.Schema{}
}

func responseSchemas(responses *openapi3.Responses) map[string]pkgopenapi.Schema {
	if responses == nil || responses.Len() == 0 {
		return nil
	}
	result := make(map[string]pkgopenapi.Schema)
	for status, ref := range responses.Map() {
		if ref == nil || ref.Value == nil {
			continue
		}
		var (
			converted pkgopenapi.Schema
			found     bool
		)
		if mt, ok := ref.Value.Content["application/json"]; ok && mt != nil {
			converted, found = newConverter().convert(mt.Schema), true
		} else {
			for _, mt := range ref.Value.Content {
				if mt != nil {
					converted, found = newConverter().convert(mt.Schema), true
					break
				}
			}
		}
		if !found {
			continue
		}
		if converted.Description == "" && ref.Value.Description != nil {
			converted.Description = *ref.Value.Description
		}
		result[status] = converted
	}
	return result
}
