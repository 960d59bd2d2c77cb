package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/toucan/internal/app"
	"github.com/specialistvlad/toucan/internal/config"
	"github.com/specialistvlad/toucan/internal/hcl"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is reported by --version. It is overridden at build time.
var Version = "dev"

// Keys shared by flags, TOUCAN_* environment variables and viper.
const (
	keyConfig          = "config"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
	keyHealthcheckPort = "healthcheck-port"
	keyOutput          = "output"
	keyBackendURL      = "backend-url"
	keyBackendTimeout  = "backend-timeout"
	keyTransport       = "transport"
	keyInsecure        = "insecure"
	keyStore           = "store"
	keyStorePath       = "store-path"
	keyTrace           = "trace"
	keyTraceExporter   = "trace-exporter"
	keyTraceEndpoint   = "trace-endpoint"
	keyTraceFile       = "trace-file"
	keyCatalogTTL      = "catalog-ttl"
	keyReconnectDelay  = "reconnect-delay"
)

// options is the state shared by every command of one invocation.
type options struct {
	v      *viper.Viper
	loader config.Loader
	in     io.Reader
	outW   io.Writer
	errW   io.Writer

	cfg    *app.Config
	output string
}

// Execute runs the command tree with args. Logs go to errW, results to outW.
func Execute(ctx context.Context, args []string, in io.Reader, outW, errW io.Writer) error {
	root := NewRootCommand(in, outW, errW)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. Every call gets its own viper
// instance.
func NewRootCommand(in io.Reader, outW, errW io.Writer) *cobra.Command {
	o := &options{v: viper.New(), loader: hcl.NewLoader(), in: in, outW: outW, errW: errW}

	root := &cobra.Command{
		Use:   "toucan",
		Short: "Validate, queue and monitor ComfyUI workflows",
		Long: `toucan works with ComfyUI node-graph workflows from the command line.

It checks connections and required inputs against the backend's node catalog,
compiles workflows into prompt requests, submits them and follows their
execution over the backend's event stream.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: o.prepare,
	}
	root.SetIn(in)
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err.Error())
	})

	flags := root.PersistentFlags()
	flags.StringP(keyConfig, "c", "", "path to an HCL config file")
	flags.String(keyLogLevel, "warn", "logging level: debug, info, warn, error")
	flags.String(keyLogFormat, "text", "log output format: text or json")
	flags.Int(keyHealthcheckPort, 0, "port for the HTTP health check server while monitoring; 0 disables it")
	flags.StringP(keyOutput, "o", "text", "result format: text, json or yaml")
	flags.String(keyBackendURL, "", "ComfyUI base URL (default from config, then http://127.0.0.1:8188)")
	flags.Duration(keyBackendTimeout, 0, "timeout for backend requests")
	flags.String(keyTransport, "", "event stream transport: websocket or socketio")
	flags.Bool(keyInsecure, false, "skip TLS certificate verification")
	flags.String(keyStore, "", "state store driver: memory or sqlite")
	flags.String(keyStorePath, "", "SQLite state file")
	flags.Bool(keyTrace, false, "record OpenTelemetry spans")
	flags.String(keyTraceExporter, "", "span exporter: file, stdout, otlp or none")
	flags.String(keyTraceEndpoint, "", "OTLP gRPC collector address")
	flags.String(keyTraceFile, "", "file the file exporter appends spans to")
	flags.Duration(keyCatalogTTL, 0, "how long the node catalog is cached")
	flags.Duration(keyReconnectDelay, 0, "pause before the event stream is dialed again")

	_ = o.v.BindPFlags(flags)
	o.v.SetEnvPrefix("TOUCAN")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()

	root.AddCommand(
		newCatalogCommand(o),
		newValidateCommand(o),
		newQueueCommand(o),
		newMonitorCommand(o),
		newInterruptCommand(o),
		newWorkflowCommand(o),
	)
	return root
}

// prepare merges the configuration layers before any command runs.
func (o *options) prepare(cmd *cobra.Command, _ []string) error {
	output := strings.ToLower(o.v.GetString(keyOutput))
	switch output {
	case "text", "json", "yaml":
	default:
		return usageError("invalid output: must be 'text', 'json' or 'yaml'")
	}
	o.output = output

	cfg, err := o.resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// resolveConfig loads the config file and overlays environment and flags.
func (o *options) resolveConfig(ctx context.Context) (*app.Config, error) {
	settings, err := o.loader.Load(ctx, o.v.GetString(keyConfig))
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	o.overlay(settings)

	cfg, err := app.NewConfig(app.Config{
		Settings:        *settings,
		LogFormat:       strings.ToLower(o.v.GetString(keyLogFormat)),
		LogLevel:        strings.ToLower(o.v.GetString(keyLogLevel)),
		HealthcheckPort: o.v.GetInt(keyHealthcheckPort),
		ReconnectDelay:  o.v.GetDuration(keyReconnectDelay),
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid configuration: %v", err)}
	}
	return cfg, nil
}

// overlay copies every key set by a flag or environment variable onto m.
func (o *options) overlay(m *config.Model) {
	v := o.v
	if v.IsSet(keyBackendURL) {
		m.Backend.BaseURL = v.GetString(keyBackendURL)
	}
	if v.IsSet(keyBackendTimeout) {
		m.Backend.Timeout = v.GetDuration(keyBackendTimeout)
	}
	if v.IsSet(keyTransport) {
		m.Backend.Transport = strings.ToLower(v.GetString(keyTransport))
	}
	if v.IsSet(keyInsecure) {
		m.Backend.InsecureSkipVerify = v.GetBool(keyInsecure)
	}
	if v.IsSet(keyStore) {
		m.Store.Driver = strings.ToLower(v.GetString(keyStore))
	}
	if v.IsSet(keyStorePath) {
		m.Store.Path = v.GetString(keyStorePath)
	}
	if v.IsSet(keyTrace) {
		m.Tracing.Enabled = v.GetBool(keyTrace)
	}
	if v.IsSet(keyTraceExporter) {
		m.Tracing.Exporter = v.GetString(keyTraceExporter)
	}
	if v.IsSet(keyTraceEndpoint) {
		m.Tracing.Endpoint = v.GetString(keyTraceEndpoint)
	}
	if v.IsSet(keyTraceFile) {
		m.Tracing.FilePath = v.GetString(keyTraceFile)
	}
	if v.IsSet(keyCatalogTTL) {
		m.Catalog.TTL = v.GetDuration(keyCatalogTTL)
	}
}

// openApp wires the application for one command. The caller closes it.
func (o *options) openApp(cmd *cobra.Command) (*app.App, error) {
	a, err := app.New(cmd.Context(), o.errW, o.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}
