// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	MusicDir string         `yaml:"music_dir" default:"music" validate:"required"`
	Server   ServerConfig   `yaml:"server"`
	Codes    CodesConfig    `yaml:"codes"`
	Debounce DebounceConfig `yaml:"debounce"`
	Loop     LoopConfig     `yaml:"loop"`
	Playback PlaybackConfig `yaml:"playback"`
	Player   PlayerConfig   `yaml:"player"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Status   StatusConfig   `yaml:"status"`
}

// ServerConfig represents daemon lifecycle configuration.
type ServerConfig struct {
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// CodesConfig represents the reserved code literals.
type CodesConfig struct {
	Stop        string `yaml:"stop" default:"STOP" validate:"required"`
	Skip        string `yaml:"skip" default:"SKIP" validate:"required,nefield=Stop"`
	SkipEnabled *bool  `yaml:"skip_enabled" default:"true"`
}

// DebounceConfig represents scan debounce configuration.
// Zero durations here and in PlaybackConfig select the default.
type DebounceConfig struct {
	WindowMs int `yaml:"window_ms" default:"2000" validate:"gte=1,lte=60000"`
}

// LoopConfig represents scan loop configuration.
type LoopConfig struct {
	IdleIntervalMs int `yaml:"idle_interval_ms" default:"100" validate:"gte=10,lte=5000"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	GracePeriodMs int `yaml:"grace_period_ms" default:"1000" validate:"gte=1,lte=30000"`
	JoinTimeoutMs int `yaml:"join_timeout_ms" default:"1000" validate:"gte=1,lte=30000"`
}

// PlayerConfig represents the external player command.
// An empty command selects the platform default.
type PlayerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// CatalogConfig represents album folder scanning configuration.
type CatalogConfig struct {
	Extensions []string `yaml:"extensions" default:"[\".mp3\",\".m4a\",\".ogg\",\".flac\",\".wav\"]" validate:"min=1,dive,required"`
	ReadTags   *bool    `yaml:"read_tags" default:"true"`
}

// DecoderConfig represents the code decoder configuration.
type DecoderConfig struct {
	Type     string         `yaml:"type" default:"zbarcam" validate:"oneof=zbarcam lines"`
	Settings map[string]any `yaml:"settings"`
}

// StatusConfig represents the optional status endpoint.
type StatusConfig struct {
	Addr       string `yaml:"addr" validate:"omitempty,hostname_port"`
	AdminToken string `yaml:"admin_token"` // Enables /control endpoints when set
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
// When allowMissing is set, a missing file yields the defaults.
func Load(path string, allowMissing bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case allowMissing && errors.Is(err, os.ErrNotExist):
		// Defaults only
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("QRJUKEBOX_MUSIC_DIR"); v != "" {
		c.MusicDir = v
	}
	if v := os.Getenv("QRJUKEBOX_STATUS_ADDR"); v != "" {
		c.Status.Addr = v
	}
	if v := os.Getenv("QRJUKEBOX_ADMIN_TOKEN"); v != "" {
		c.Status.AdminToken = v
	}
	if v := os.Getenv("QRJUKEBOX_CAMERA_DEVICE"); v != "" {
		if c.Decoder.Settings == nil {
			c.Decoder.Settings = make(map[string]any)
		}
		c.Decoder.Settings["device"] = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsSkipEnabled reports whether the skip code is honoured.
func (c *Config) IsSkipEnabled() bool {
	return c.Codes.SkipEnabled == nil || *c.Codes.SkipEnabled
}

// IsReadTags reports whether track tags are read.
func (c *Config) IsReadTags() bool {
	return c.Catalog.ReadTags == nil || *c.Catalog.ReadTags
}

// DebounceWindow returns the debounce window.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Debounce.WindowMs) * time.Millisecond
}

// IdleInterval returns the scan loop sleep when no code was decoded.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Loop.IdleIntervalMs) * time.Millisecond
}

// GracePeriod returns the wait between terminate and kill of the player.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Playback.GracePeriodMs) * time.Millisecond
}

// JoinTimeout returns the wait for the sequencing task on stop.
func (c *Config) JoinTimeout() time.Duration {
	return time.Duration(c.Playback.JoinTimeoutMs) * time.Millisecond
}
