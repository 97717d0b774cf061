package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerSpacesVariadicArgs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.Info("Created", 2, "drafts for account", "a1")

	assert.Contains(t, buf.String(), "Created 2 drafts for account a1")
}

func TestLoggerJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)
	log.Configure("json", "info")

	log.WithFields(map[string]interface{}{"account_id": "a1"}).Error("Scan failed:", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "a1", entry["account_id"])
	assert.Equal(t, "Scan failed: boom", entry["msg"])
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)
	log.Configure("text", "warn")

	log.Debug("hidden")
	log.Info("hidden")
	log.Warnf("visible %d", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible 1")
}
