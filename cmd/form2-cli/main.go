package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	form2 "github.com/goliatone/go-form2"
	"github.com/goliatone/go-form2/internal/config"
	"github.com/goliatone/go-form2/pkg/orchestrator"
	"github.com/goliatone/go-form2/pkg/renderers/tui"
	"github.com/goliatone/go-form2/pkg/schema"
)

type flags struct {
	source    string
	format    string
	formID    string
	values    string
	preset    string
	output    string
	outFile   string
	envFile   string
	listForms bool
	debug     bool
}

func main() {
	var f flags
	flag.StringVar(&f.source, "source", "", "definition or OpenAPI document path or URL")
	flag.StringVar(&f.format, "format", "", "adapter name (form2, openapi); detected when empty")
	flag.StringVar(&f.formID, "form", "", "form to fill (definition id or OpenAPI operationId)")
	flag.StringVar(&f.values, "values", "", "YAML or JSON file with initial values")
	flag.StringVar(&f.preset, "preset", "", "YAML preset applied to the definition")
	flag.StringVar(&f.output, "output", "", "output format: json, form or pretty")
	flag.StringVar(&f.outFile, "out", "", "write the result to this file instead of stdout")
	flag.StringVar(&f.envFile, "env", ".env", "dotenv file read before the environment")
	flag.BoolVar(&f.listForms, "list-forms", false, "list the forms in the document and exit")
	flag.BoolVar(&f.debug, "debug", false, "log at debug level and dump the resolved definition")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, f, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, tui.ErrAborted) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "form2:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags, stdout, stderr io.Writer) error {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return err
	}
	if f.output != "" {
		cfg.Output = f.output
	}
	if f.debug {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.Logger(stderr)

	src := parseSource(f.source)
	if src == nil {
		return fmt.Errorf("-source is required")
	}

	var loaderOpts []schema.LoaderOption
	if cfg.AllowHTTP {
		loaderOpts = append(loaderOpts, schema.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}
	options := []orchestrator.Option{
		orchestrator.WithLoader(form2.NewLoader(loaderOpts...)),
		orchestrator.WithLogger(logger),
	}
	if f.preset != "" {
		data, err := os.ReadFile(f.preset)
		if err != nil {
			return fmt.Errorf("read preset: %w", err)
		}
		preset, err := orchestrator.NewPresetTransformer(data)
		if err != nil {
			return err
		}
		options = append(options, orchestrator.WithTransformer(preset))
	}
	gen := form2.NewOrchestrator(options...)

	req := orchestrator.Request{Source: src, Format: f.format, FormID: f.formID}
	if f.listForms {
		refs, err := gen.Forms(ctx, req)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			fmt.Fprintf(stdout, "%s\t%s\n", ref.ID, ref.Title)
		}
		return nil
	}

	if f.values != "" {
		req.Values, err = readValues(f.values)
		if err != nil {
			return err
		}
	}

	mounted, err := gen.Mount(ctx, req)
	if err != nil {
		return err
	}
	defer mounted.Form().Close()
	if f.debug {
		spew.Fdump(stderr, mounted.Definition())
	}

	renderer, err := tui.New(
		tui.WithPromptDriver(tui.NewSurveyDriver(stderr)),
		tui.WithOutputFormat(tui.OutputFormat(cfg.Output)),
		tui.WithMaxAttempts(cfg.MaxAttempts),
		tui.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	out, err := renderer.Render(ctx, mounted)
	if err != nil {
		return err
	}

	if f.outFile != "" {
		if err := os.WriteFile(f.outFile, out, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		logger.WithField("file", f.outFile).Info("form written")
		return nil
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

func parseSource(raw string) schema.Source {
	location := strings.TrimSpace(raw)
	if location == "" {
		return nil
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return schema.SourceFromURL(location)
	}
	return schema.SourceFromFile(location)
}

func readValues(file string) (map[string]any, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode values %s: %w", file, err)
	}
	return values, nil
}
