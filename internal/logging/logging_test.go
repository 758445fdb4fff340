package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "warn", false)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	clog := Component(log, "engine")
	clog.Warn().Str("battle", "arena").Msg("shown")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "arena", line["battle"])
	assert.Equal(t, "shown", line["message"])
}

func TestNewWriterDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "", false)
	require.NoError(t, err)
	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestNewWriterBadLevel(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "loud", false)
	require.Error(t, err)
}
