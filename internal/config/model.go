package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Transport names for Backend.Transport.
const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Store drivers for Store.Driver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Model is the unified representation of the configuration file.
type Model struct {
	Backend Backend
	Store   Store
	Tracing Tracing
	Catalog Catalog
}

// Backend locates the ComfyUI server.
type Backend struct {
	BaseURL            string
	Timeout            time.Duration
	Transport          string
	InsecureSkipVerify bool
}

// Store selects where the workflow and client id are kept.
type Store struct {
	Driver string
	// Path is the SQLite database file. Empty selects the default location.
	Path string
}

// Tracing configures span export.
type Tracing struct {
	Enabled    bool
	Exporter   string
	FilePath   string
	Endpoint   string
	SampleRate float64
}

// Catalog controls node catalog caching.
type Catalog struct {
	TTL time.Duration
}

// Default returns the configuration used when no file is given.
func Default() *Model {
	return &Model{
		Backend: Backend{
			BaseURL:   "http://127.0.0.1:8188",
			Timeout:   30 * time.Second,
			Transport: TransportWebSocket,
		},
		Store:   Store{Driver: DriverSQLite},
		Tracing: Tracing{Exporter: "file", SampleRate: 1},
		Catalog: Catalog{TTL: 5 * time.Minute},
	}
}

// Validate checks the values a loader cannot check by type alone.
func (m *Model) Validate() error {
	var errs []error
	if u, err := url.Parse(m.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url must be an http(s) URL, got %q", m.Backend.BaseURL))
	}
	if m.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend.timeout must not be negative"))
	}
	if !slices.Contains([]string{TransportWebSocket, TransportSocketIO}, m.Backend.Transport) {
		errs = append(errs, fmt.Errorf("backend.transport must be %q or %q, got %q", TransportWebSocket, TransportSocketIO, m.Backend.Transport))
	}
	if !slices.Contains([]string{DriverMemory, DriverSQLite}, m.Store.Driver) {
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, m.Store.Driver))
	}
	if m.Tracing.SampleRate < 0 || m.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %v", m.Tracing.SampleRate))
	}
	return errors.Join(errs...)
}
