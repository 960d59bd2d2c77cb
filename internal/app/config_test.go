package app

import (
	"testing"
	"time"

	"github.com/specialistvlad/toucan/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	valid := Config{Settings: *config.Default(), LogFormat: "json", LogLevel: "info"}

	cfg, err := NewConfig(valid)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay, "reconnect delay gets a default")

	testCases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"port", func(c *Config) { c.HealthcheckPort = 70000 }, "healthcheck port"},
		{"settings", func(c *Config) { c.Settings.Store.Driver = "redis" }, "store.driver"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			_, err := NewConfig(c)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf SafeBuffer
	newLogger("warn", "json", &buf).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger("debug", "json", &buf).Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
