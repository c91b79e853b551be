package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "debug", "json")
	require.NoError(t, err)

	logger.Debug("job completed", "job_id", "j1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "job completed", rec["msg"])
	assert.Equal(t, "j1", rec["job_id"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestNewWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "WARN", "text")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "target_lang", "DE")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "target_lang=DE")
}

func TestNewWriter_Invalid(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)

	_, err = NewWriter(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
