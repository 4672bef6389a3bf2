// Package server provides configuration helpers that define runtime defaults,
// validation limits, and rate-limiting parameters for the gischat relay.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/gischat/internal/protocol"
	"github.com/Tyrowin/gischat/internal/redisdb"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// Config holds the relay configuration. It is read once at startup and is
// immutable afterwards.
type Config struct {
	Port           string   `env:"SERVER_PORT" envDefault:":8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Channels []string `env:"CHANNELS" envDefault:"QGIS,Geotribu" envSeparator:","`
	Rules    string   `env:"RULES" envDefault:"YOLO"`
	MainLang string   `env:"MAIN_LANG" envDefault:"en"`

	MinAuthorLength    int `env:"MIN_AUTHOR_LENGTH" envDefault:"3"`
	MaxAuthorLength    int `env:"MAX_AUTHOR_LENGTH" envDefault:"32"`
	MaxMessageLength   int `env:"MAX_MESSAGE_LENGTH" envDefault:"255"`
	MaxImageSize       int `env:"MAX_IMAGE_SIZE" envDefault:"800"`
	MaxGeoJSONFeatures int `env:"MAX_GEOJSON_FEATURES" envDefault:"500"`
	MaxStoredMessages  int `env:"MAX_STORED_MESSAGES" envDefault:"5"`

	// MaxFrameSize bounds a single inbound frame. Images travel inline,
	// so it is far larger than MaxMessageLength.
	MaxFrameSize  int64 `env:"MAX_FRAME_SIZE" envDefault:"10485760"`
	SendQueueSize int   `env:"SEND_QUEUE_SIZE" envDefault:"256"`
	RateLimit     RateLimitConfig

	// MaxImagePixels bounds the width x height an image header may declare.
	// Larger images are refused before decoding.
	MaxImagePixels int64 `env:"MAX_IMAGE_PIXELS" envDefault:"40000000"`

	// CloseOnMalformedFrame closes a connection that sends a frame which
	// is not a message of a known type. When false the frame is dropped.
	CloseOnMalformedFrame bool `env:"CLOSE_ON_MALFORMED_FRAME" envDefault:"false"`

	InstanceID      string        `env:"INSTANCE_ID" envDefault:"default"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`

	Redis redisdb.Config
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	var cfg Config
	// An empty environment only applies the envDefault tags.
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	cfg.sanitize()
	return &cfg
}

// LoadConfig starts from NewConfig, then applies an optional .env file and
// the process environment. Unset variables keep their defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := NewConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) sanitize() {
	c.Channels = trimAll(c.Channels)
	c.AllowedOrigins = trimAll(c.AllowedOrigins)
	if c.Port != "" && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate reports every violated constraint at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("at least one channel must be configured"))
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, name := range c.Channels {
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("duplicate channel %q", name))
		}
		seen[name] = struct{}{}
	}

	if c.MinAuthorLength < 1 {
		errs = append(errs, errors.New("MIN_AUTHOR_LENGTH must be at least 1"))
	}
	if c.MaxAuthorLength < c.MinAuthorLength {
		errs = append(errs, fmt.Errorf("MAX_AUTHOR_LENGTH (%d) is below MIN_AUTHOR_LENGTH (%d)", c.MaxAuthorLength, c.MinAuthorLength))
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"MAX_MESSAGE_LENGTH", int64(c.MaxMessageLength)},
		{"MAX_IMAGE_SIZE", int64(c.MaxImageSize)},
		{"MAX_GEOJSON_FEATURES", int64(c.MaxGeoJSONFeatures)},
		{"MAX_STORED_MESSAGES", int64(c.MaxStoredMessages)},
		{"MAX_FRAME_SIZE", c.MaxFrameSize},
		{"MAX_IMAGE_PIXELS", c.MaxImagePixels},
		{"SEND_QUEUE_SIZE", int64(c.SendQueueSize)},
		{"RATE_LIMIT_BURST", int64(c.RateLimit.Burst)},
		{"RATE_LIMIT_REFILL_INTERVAL", int64(c.RateLimit.RefillInterval)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}

	return errors.Join(errs...)
}

// Limits returns the validation policy derived from the configuration.
func (c *Config) Limits() protocol.Limits {
	return protocol.Limits{
		MinAuthorLength:    c.MinAuthorLength,
		MaxAuthorLength:    c.MaxAuthorLength,
		MaxMessageLength:   c.MaxMessageLength,
		MaxImageSize:       c.MaxImageSize,
		MaxGeoJSONFeatures: c.MaxGeoJSONFeatures,
		MaxStoredMessages:  c.MaxStoredMessages,
	}
}
