package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GENERATION_MIN_INTERVAL", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 21*time.Second, cfg.GenerationMinInterval)
	assert.Equal(t, 24*time.Hour, cfg.AutoScanLookback)
	assert.Equal(t, 3, cfg.AutoScanMaxItems)
	assert.Equal(t, 10, cfg.ManualScanMaxItems)
	assert.Equal(t, 5*time.Minute, cfg.TokenExpiryBuffer)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, GetEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "45")
	assert.Equal(t, 45*time.Second, GetEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Second, GetEnvDuration("TEST_DURATION", time.Second))

	assert.Equal(t, time.Minute, GetEnvDuration("TEST_DURATION_UNSET", time.Minute))
}

func TestGetEnvIntAndBool(t *testing.T) {
	t.Setenv("TEST_INT", "7")
	t.Setenv("TEST_BOOL", "false")
	assert.Equal(t, 7, GetEnvInt("TEST_INT", 1))
	assert.False(t, GetEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_INT", "seven")
	assert.Equal(t, 1, GetEnvInt("TEST_INT", 1))
}

func validConfig() *Config {
	return &Config{
		SessionSecret:         "secret",
		AIKey:                 "key",
		DatabaseDriver:        "sqlite",
		GenerationMinInterval: 21 * time.Second,
		ExternalCallTimeout:   30 * time.Second,
		ScanTickInterval:      time.Minute,
		AutoScanMaxItems:      3,
		ManualScanMaxItems:    10,
		NotifyChannel:         "log",
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing session secret", func(c *Config) { c.SessionSecret = "" }},
		{"missing ai key", func(c *Config) { c.AIKey = "" }},
		{"google id without secret", func(c *Config) { c.GoogleClientID = "id" }},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"zero timeout", func(c *Config) { c.ExternalCallTimeout = 0 }},
		{"twilio without credentials", func(c *Config) { c.NotifyChannel = "twilio" }},
		{"smtp without host", func(c *Config) { c.NotifyChannel = "smtp" }},
		{"unknown channel", func(c *Config) { c.NotifyChannel = "pager" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
