package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"QGIS", "Geotribu"}, cfg.Channels)
	assert.Equal(t, "YOLO", cfg.Rules)
	assert.Equal(t, 3, cfg.MinAuthorLength)
	assert.Equal(t, 32, cfg.MaxAuthorLength)
	assert.Equal(t, 255, cfg.MaxMessageLength)
	assert.Equal(t, 800, cfg.MaxImageSize)
	assert.Equal(t, 500, cfg.MaxGeoJSONFeatures)
	assert.Equal(t, 5, cfg.MaxStoredMessages)
	assert.Equal(t, int64(40_000_000), cfg.MaxImagePixels)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.False(t, cfg.CloseOnMalformedFrame)
	assert.Equal(t, "default", cfg.InstanceID)
	assert.False(t, cfg.Redis.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CHANNELS", " QGIS , Geotribu,OSGeo ")
	t.Setenv("MAX_MESSAGE_LENGTH", "100")
	t.Setenv("CLOSE_ON_MALFORMED_FRAME", "true")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "250ms")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MAX_IMAGE_PIXELS", "1000000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, []string{"QGIS", "Geotribu", "OSGeo"}, cfg.Channels)
	assert.Equal(t, 100, cfg.MaxMessageLength)
	assert.Equal(t, 100, cfg.Limits().MaxMessageLength)
	assert.True(t, cfg.CloseOnMalformedFrame)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.RefillInterval)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, int64(1_000_000), cfg.MaxImagePixels)
}

func TestLoadConfigWithoutEnvironmentMatchesDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, NewConfig(), cfg)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("MIN_AUTHOR_LENGTH", "10")
	t.Setenv("MAX_AUTHOR_LENGTH", "5")
	t.Setenv("SEND_QUEUE_SIZE", "0")
	t.Setenv("MAX_IMAGE_PIXELS", "0")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_AUTHOR_LENGTH (5) is below MIN_AUTHOR_LENGTH (10)")
	assert.Contains(t, err.Error(), "SEND_QUEUE_SIZE must be positive, got 0")
	assert.Contains(t, err.Error(), "MAX_IMAGE_PIXELS must be positive, got 0")
}

func TestValidateChannels(t *testing.T) {
	cfg := NewConfig()
	cfg.Channels = []string{"QGIS", "QGIS"}
	assert.ErrorContains(t, cfg.Validate(), `duplicate channel "QGIS"`)

	cfg.Channels = nil
	assert.ErrorContains(t, cfg.Validate(), "at least one channel must be configured")
}
