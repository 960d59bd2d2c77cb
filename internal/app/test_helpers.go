package app

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/toucan/internal/config"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates an App talking to backendURL with an in-memory store
// and tracing disabled. mutate, when non-nil, adjusts the config first.
func SetupAppTest(t *testing.T, backendURL string, mutate func(*Config)) (*App, *SafeBuffer) {
	t.Helper()

	settings := config.Default()
	settings.Backend.BaseURL = backendURL
	settings.Backend.Timeout = 5 * time.Second
	settings.Store.Driver = config.DriverMemory
	settings.Tracing.Enabled = false

	cfg := &Config{
		Settings:       *settings,
		LogFormat:      "text",
		LogLevel:       "debug",
		ReconnectDelay: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(cfg)
	}

	logBuffer := &SafeBuffer{}
	testApp, err := New(context.Background(), logBuffer, cfg)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("TOUCAN_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
