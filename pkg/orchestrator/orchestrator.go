package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"

	internalloader "github.com/goliatone/go-form2/internal/loader"
	internalparser "github.com/goliatone/go-form2/internal/openapi/parser"
	"github.com/goliatone/go-form2/pkg/form"
	pkgopenapi "github.com/goliatone/go-form2/pkg/openapi"
	"github.com/goliatone/go-form2/pkg/path"
	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/validation"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLoader injects the document loader used for Request.Source.
func WithLoader(loader schema.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = loader
	}
}

// WithParser injects the OpenAPI parser backing the default openapi adapter.
func WithParser(parser pkgopenapi.Parser) Option {
	return func(o *Orchestrator) {
		o.parser = parser
	}
}

// WithAdapterRegistry replaces the adapter registry. The built-in adapters
// are added to it unless names collide.
func WithAdapterRegistry(registry *AdapterRegistry) Option {
	return func(o *Orchestrator) {
		o.adapters = registry
	}
}

// WithAdapters registers additional format adapters.
func WithAdapters(adapters ...schema.Adapter) Option {
	return func(o *Orchestrator) {
		o.extra = append(o.extra, adapters...)
	}
}

// WithDefaultAdapter names the adapter used when detection finds nothing.
func WithDefaultAdapter(name string) Option {
	return func(o *Orchestrator) {
		o.defaultAdapter = name
	}
}

// WithValidators resolves named validator rules when mounting.
func WithValidators(reg *validation.Registry) Option {
	return func(o *Orchestrator) {
		o.validators = reg
	}
}

// WithTransformer registers a Transformer run on every definition before it
// is returned or mounted.
func WithTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		o.transformers = append(o.transformers, t)
	}
}

// WithLogger routes pipeline logs, and the logs of mounted forms, to logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFormOptions adds options applied to every form created by Mount.
func WithFormOptions(opts ...form.Option) Option {
	return func(o *Orchestrator) {
		o.formOptions = append(o.formOptions, opts...)
	}
}

// Orchestrator coordinates source → adapter → definition → mounted form.
// Missing dependencies fall back to the built-in implementations.
type Orchestrator struct {
	loader         schema.Loader
	parser         pkgopenapi.Parser
	adapters       *AdapterRegistry
	extra          []schema.Adapter
	defaultAdapter string
	validators     *validation.Registry
	transformers   []Transformer
	formOptions    []form.Option
	logger         logrus.FieldLogger
	initialiseErr  error
}

// New constructs an Orchestrator applying the provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	o.applyDefaults()
	return o
}

func (o *Orchestrator) applyDefaults() {
	if o.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.logger = discard
	}
	if o.loader == nil {
		o.loader = internalloader.New(schema.NewLoaderOptions())
	}
	if o.parser == nil {
		o.parser = internalparser.New(pkgopenapi.NewParserOptions())
	}
	if o.adapters == nil {
		o.adapters = NewAdapterRegistry()
	}
	builtin := []schema.Adapter{schema.NativeAdapter{}, pkgopenapi.NewAdapter(o.parser)}
	for _, adapter := range builtin {
		if !o.adapters.has(adapter.Name()) {
			o.adapters.MustRegister(adapter)
		}
	}
	for _, adapter := range o.extra {
		if err := o.adapters.Register(adapter); err != nil && o.initialiseErr == nil {
			o.initialiseErr = err
		}
	}
}

// Adapters exposes the registry so callers can inspect or extend it.
func (o *Orchestrator) Adapters() *AdapterRegistry {
	return o.adapters
}

// Request describes where a form comes from.
type Request struct {
	// Source is loaded through the configured loader. Optional when
	// Document is set.
	Source schema.Source

	// Document bypasses the loader.
	Document *schema.Document

	// Format names the adapter to use. Empty means detect.
	Format string

	// FormID selects one form from documents that define several.
	FormID string

	// Values are merged over the definition's initial values by Mount.
	Values map[string]any
}

// Definition loads the request document and converts it into a definition.
func (o *Orchestrator) Definition(ctx context.Context, req Request) (schema.Definition, error) {
	doc, adapter, err := o.resolve(ctx, req)
	if err != nil {
		return schema.Definition{}, err
	}
	def, err := adapter.Definition(ctx, doc, schema.AdapterOptions{FormID: req.FormID})
	if err != nil {
		return schema.Definition{}, fmt.Errorf("orchestrator: %s adapter: %w", adapter.Name(), err)
	}
	for _, t := range o.transformers {
		if t == nil {
			continue
		}
		if err := t.Transform(ctx, &def); err != nil {
			return schema.Definition{}, fmt.Errorf("orchestrator: transform definition: %w", err)
		}
	}
	if err := def.Validate(); err != nil {
		return schema.Definition{}, fmt.Errorf("orchestrator: %w", err)
	}
	o.logger.WithFields(logrus.Fields{
		"adapter": adapter.Name(),
		"form":    def.ID,
		"items":   len(def.Items),
	}).Debug("definition resolved")
	return def, nil
}

// Forms lists the forms available in the request document.
func (o *Orchestrator) Forms(ctx context.Context, req Request) ([]schema.FormRef, error) {
	doc, adapter, err := o.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	refs, err := adapter.Forms(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %s adapter: %w", adapter.Name(), err)
	}
	return refs, nil
}

// Mount resolves the definition and mounts it on a new form. Initial values
// are the definition defaults overlaid with req.Values.
func (o *Orchestrator) Mount(ctx context.Context, req Request, opts ...form.Option) (*schema.Mounted, error) {
	def, err := o.Definition(ctx, req)
	if err != nil {
		return nil, err
	}
	initial, err := def.InitialValues()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	initial, err = overlay(initial, req.Values)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: initial values: %w", err)
	}

	formOpts := []form.Option{form.WithLogger(o.logger)}
	if def.ID != "" {
		formOpts = append(formOpts, form.WithID(def.ID))
	}
	if trigger, _ := schema.ParseTriggers(def.Trigger); trigger != 0 {
		formOpts = append(formOpts, form.WithValidateTrigger(trigger))
	}
	formOpts = append(formOpts, o.formOptions...)
	formOpts = append(formOpts, opts...)

	mounted, err := schema.Mount(form.New(initial, formOpts...), def, schema.WithValidators(o.validators))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: mount %q: %w", def.ID, err)
	}
	return mounted, nil
}

func (o *Orchestrator) resolve(ctx context.Context, req Request) (schema.Document, schema.Adapter, error) {
	if ctx == nil {
		return schema.Document{}, nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return schema.Document{}, nil, err
	}
	if o.initialiseErr != nil {
		return schema.Document{}, nil, o.initialiseErr
	}

	var doc schema.Document
	switch {
	case req.Document != nil:
		doc = *req.Document
	case req.Source != nil:
		loaded, err := o.loader.Load(ctx, req.Source)
		if err != nil {
			return schema.Document{}, nil, fmt.Errorf("orchestrator: load document: %w", err)
		}
		doc = loaded
	default:
		return schema.Document{}, nil, errors.New("orchestrator: source or document is required")
	}

	adapter, err := o.adapterFor(req.Format, doc)
	if err != nil {
		return schema.Document{}, nil, err
	}
	return doc, adapter, nil
}

func (o *Orchestrator) adapterFor(format string, doc schema.Document) (schema.Adapter, error) {
	if format = strings.TrimSpace(format); format != "" {
		return o.adapters.Get(format)
	}
	matches := o.adapters.Detect(doc.Source(), doc.Raw())
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if o.defaultAdapter == "" {
			return nil, fmt.Errorf("orchestrator: unable to detect format of %q", doc.Location())
		}
		return o.adapters.Get(o.defaultAdapter)
	default:
		return nil, fmt.Errorf("orchestrator: multiple adapters matched payload (%s), specify format", adapterNames(matches))
	}
}

// overlay deep merges values over base, path by path.
func overlay(base, values map[string]any) (map[string]any, error) {
	if len(values) == 0 {
		return base, nil
	}
	var tree any = base
	if tree == nil {
		tree = map[string]any{}
	}
	var walk func(prefix path.Path, node map[string]any) error
	walk = func(prefix path.Path, node map[string]any) error {
		for key, value := range node {
			p := prefix.Append(path.Key(key))
			if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
				if err := walk(p, nested); err != nil {
					return err
				}
				continue
			}
			next, err := path.Set(tree, p, deepcopy.Copy(value))
			if err != nil {
				return err
			}
			tree = next
		}
		return nil
	}
	if err := walk(nil, values); err != nil {
		return nil, err
	}
	out, _ := tree.(map[string]any)
	return out, nil
}
