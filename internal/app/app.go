package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/specialistvlad/toucan/internal/catalog"
	"github.com/specialistvlad/toucan/internal/clientid"
	"github.com/specialistvlad/toucan/internal/comfy"
	"github.com/specialistvlad/toucan/internal/config"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/execution"
	"github.com/specialistvlad/toucan/internal/inmemorystore"
	"github.com/specialistvlad/toucan/internal/kvstore"
	"github.com/specialistvlad/toucan/internal/sqlitestore"
	"github.com/specialistvlad/toucan/internal/stream"
	"github.com/specialistvlad/toucan/internal/tracing"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx    context.Context
	logger *slog.Logger
	config *Config

	tracing  *tracing.Provider
	store    kvstore.Store
	client   *comfy.Client
	catalog  *catalog.Catalog
	monitor  *execution.Monitor
	dialer   stream.Dialer
	clientID string

	httpServer *http.Server
}

// New wires every component described by cfg. Log output goes to logW.
func New(ctx context.Context, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	settings := cfg.Settings
	a := &App{ctx: ctx, logger: logger, config: cfg}

	traceFile := settings.Tracing.FilePath
	if traceFile == "" && settings.Tracing.Exporter == tracing.ExporterFile {
		traceFile = defaultStatePath("traces.jsonl")
	}
	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     settings.Tracing.Enabled,
		Exporter:    settings.Tracing.Exporter,
		FilePath:    traceFile,
		Endpoint:    settings.Tracing.Endpoint,
		SampleRate:  settings.Tracing.SampleRate,
		ServiceName: "toucan",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.tracing = tp

	store, err := openStore(ctx, settings.Store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = store

	client, err := comfy.NewClient(comfy.Options{
		BaseURL:            settings.Backend.BaseURL,
		Timeout:            settings.Backend.Timeout,
		InsecureSkipVerify: settings.Backend.InsecureSkipVerify,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.client = client
	a.catalog = catalog.New(client, settings.Catalog.TTL)
	a.monitor = execution.NewMonitor(client)
	a.dialer = newDialer(settings.Backend)
	a.clientID = clientid.Get(ctx, store)

	logger.Debug("Application wired.",
		"backend", client.BaseURL(),
		"transport", settings.Backend.Transport,
		"store", settings.Store.Driver,
		"client_id", a.clientID,
	)
	return a, nil
}

// Context returns the application context carrying its logger.
func (a *App) Context() context.Context { return a.ctx }

// ClientID returns the id this installation uses with the backend.
func (a *App) ClientID() string { return a.clientID }

// Monitor returns the execution monitor.
func (a *App) Monitor() *execution.Monitor { return a.monitor }

// Close releases every resource New acquired. It is safe on a partially
// built App.
func (a *App) Close() error {
	var errs []error
	if err := a.closeHealthCheckServer(); err != nil {
		errs = append(errs, err)
	}
	if a.monitor != nil {
		a.monitor.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(context.WithoutCancel(a.ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.Store) (kvstore.Store, error) {
	if cfg.Driver == config.DriverMemory {
		return inmemorystore.New(), nil
	}
	path := cfg.Path
	if path == "" {
		path = defaultStatePath("toucan.db")
	}
	store, err := sqlitestore.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// defaultStatePath places name in the user config directory, falling back to
// the working directory.
func defaultStatePath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".toucan", name)
	}
	return filepath.Join(dir, "toucan", name)
}

func newDialer(cfg config.Backend) stream.Dialer {
	if cfg.Transport == config.TransportSocketIO {
		return stream.SocketIODialer{InsecureSkipVerify: cfg.InsecureSkipVerify}
	}
	return stream.WebSocketDialer{HandshakeTimeout: cfg.Timeout, InsecureSkipVerify: cfg.InsecureSkipVerify}
}
