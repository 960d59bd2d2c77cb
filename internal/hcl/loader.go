package hcl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/toucan/internal/config"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// hclFile is the top-level structure of a configuration file.
type hclFile struct {
	Backend *hclBackend `hcl:"backend,block"`
	Store   *hclStore   `hcl:"store,block"`
	Tracing *hclTracing `hcl:"tracing,block"`
	Catalog *hclCatalog `hcl:"catalog,block"`
}

type hclBackend struct {
	BaseURL            *string `hcl:"base_url,optional"`
	Timeout            *string `hcl:"timeout,optional"`
	Transport          *string `hcl:"transport,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
}

type hclStore struct {
	Driver *string `hcl:"driver,optional"`
	Path   *string `hcl:"path,optional"`
}

type hclTracing struct {
	Enabled    *bool    `hcl:"enabled,optional"`
	Exporter   *string  `hcl:"exporter,optional"`
	FilePath   *string  `hcl:"file_path,optional"`
	Endpoint   *string  `hcl:"endpoint,optional"`
	SampleRate *float64 `hcl:"sample_rate,optional"`
}

type hclCatalog struct {
	TTL *string `hcl:"ttl,optional"`
}

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	// lookupEnv backs the env() function.
	lookupEnv func(string) (string, bool)
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a loader that reads the process environment.
func NewLoader() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// Load parses the file at path and overlays it on config.Default.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := config.Default()
	if path == "" {
		logger.Debug("No configuration file given, using defaults.")
		return model, nil
	}

	logger.Debug("Loading configuration file.", "path", path)
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, l.evalContext(), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	if err := translate(&parsed, model); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	logger.Debug("Configuration loaded.", "path", path, "base_url", model.Backend.BaseURL, "store", model.Store.Driver)
	return model, nil
}

// evalContext exposes the functions configuration expressions may call.
func (l *Loader) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env":       l.envFunc(),
			"coalesce":  stdlib.CoalesceFunc,
			"lower":     stdlib.LowerFunc,
			"upper":     stdlib.UpperFunc,
			"trimspace": stdlib.TrimSpaceFunc,
		},
	}
}

// envFunc returns the value of an environment variable, or "" when unset,
// so it composes with coalesce.
func (l *Loader) envFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "name", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			value, _ := l.lookupEnv(args[0].AsString())
			return cty.StringVal(value), nil
		},
	})
}

// translate copies every attribute that was set onto m.
func translate(f *hclFile, m *config.Model) error {
	if b := f.Backend; b != nil {
		setIf(&m.Backend.BaseURL, b.BaseURL)
		setIf(&m.Backend.Transport, b.Transport)
		setIf(&m.Backend.InsecureSkipVerify, b.InsecureSkipVerify)
		if err := setDuration(&m.Backend.Timeout, b.Timeout, "backend.timeout"); err != nil {
			return err
		}
	}
	if s := f.Store; s != nil {
		setIf(&m.Store.Driver, s.Driver)
		setIf(&m.Store.Path, s.Path)
	}
	if t := f.Tracing; t != nil {
		setIf(&m.Tracing.Enabled, t.Enabled)
		setIf(&m.Tracing.Exporter, t.Exporter)
		setIf(&m.Tracing.FilePath, t.FilePath)
		setIf(&m.Tracing.Endpoint, t.Endpoint)
		setIf(&m.Tracing.SampleRate, t.SampleRate)
	}
	if c := f.Catalog; c != nil {
		if err := setDuration(&m.Catalog.TTL, c.TTL, "catalog.ttl"); err != nil {
			return err
		}
	}
	return m.Validate()
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, name string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
