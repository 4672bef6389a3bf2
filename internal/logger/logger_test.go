package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf)

	log.Debug("registered", Channel("QGIS"), Author("Isidore"), Error(errors.New("boom")))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "registered", record["msg"])
	assert.Equal(t, "QGIS", record["channel"])
	assert.Equal(t, "Isidore", record["author"])
	assert.Equal(t, "boom", record["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "text", &buf)

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestEmptyAttrs(t *testing.T) {
	assert.True(t, Error(nil).Equal(slog.Attr{}))
	assert.True(t, Author("").Equal(slog.Attr{}))
	assert.True(t, ConnID("").Equal(slog.Attr{}))
	assert.Equal(t, "conn_id", ConnID("abc").Key)
}

func TestDurationAttr(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "json", &buf)

	log.Info("stopped", Duration(1500*time.Millisecond))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, float64(1500*time.Millisecond), record["duration"])
}
