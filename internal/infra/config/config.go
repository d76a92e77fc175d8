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
	Discord   DiscordConfig    `yaml:"discord"`
	Audio     AudioConfig      `yaml:"audio"`
	Timeouts  TimeoutsConfig   `yaml:"timeouts"`
	UI        UIConfig         `yaml:"ui"`
	Autoplay  AutoplayConfig   `yaml:"autoplay"`
	History   HistoryConfig    `yaml:"history"`
	Spotify   SpotifyConfig    `yaml:"spotify"`
	Providers []ProviderConfig `yaml:"providers"`
	Dashboard DashboardConfig  `yaml:"dashboard"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Log       LogConfig        `yaml:"log"`
}

// DiscordConfig represents Discord gateway configuration.
type DiscordConfig struct {
	Token   string `yaml:"token" validate:"required"`
	Prefix  string `yaml:"prefix" default:"!"`
	OwnerID string `yaml:"owner_id"`
}

// AudioConfig represents playback audio configuration.
type AudioConfig struct {
	FFmpegPath    string  `yaml:"ffmpeg_path" default:"ffmpeg"`
	DefaultVolume float64 `yaml:"default_volume" default:"0.5" validate:"gte=0.1,lte=2.0"`
	MinVolume     float64 `yaml:"min_volume" default:"0.1" validate:"gt=0"`
	MaxVolume     float64 `yaml:"max_volume" default:"2.0" validate:"gt=0"`
}

// TimeoutsConfig represents session lifecycle timers.
type TimeoutsConfig struct {
	IdleSec       int `yaml:"idle_sec" default:"300" validate:"gte=10"`
	AloneSec      int `yaml:"alone_sec" default:"60" validate:"gte=5"`
	AloneGraceSec int `yaml:"alone_grace_sec" default:"30" validate:"gte=0"`
}

// UIConfig represents player message configuration.
type UIConfig struct {
	QueuePageSize int `yaml:"queue_page_size" default:"10" validate:"gte=1,lte=25"`
}

// AutoplayConfig represents the recommendation loop configuration.
type AutoplayConfig struct {
	ConsecutiveCap  int `yaml:"consecutive_cap" default:"25" validate:"gte=1"`
	HalfLifeHours   int `yaml:"half_life_hours" default:"72" validate:"gte=1"`
	MaxDurationSec  int `yaml:"max_duration_sec" default:"900" validate:"gte=0"`
	SparseThreshold int `yaml:"sparse_threshold" default:"5" validate:"gte=0"`
}

// HistoryConfig represents listening-history persistence.
type HistoryConfig struct {
	Dir        string `yaml:"dir" default:"data/history"`
	MaxEntries int    `yaml:"max_entries" default:"20" validate:"gte=1"`
}

// SpotifyConfig represents Spotify API configuration. Optional: with no
// credentials, Spotify URLs are rejected at resolution.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// ProviderConfig represents a single recommendation provider
// configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// DashboardConfig represents the HTTP dashboard API configuration.
type DashboardConfig struct {
	Addr       string `yaml:"addr" default:":8080"`
	AdminToken string `yaml:"admin_token" validate:"required,min=6"`
}

// RateLimitConfig represents the per-user command limiter.
type RateLimitConfig struct {
	CommandsPerMinute int `yaml:"commands_per_minute" default:"20" validate:"gte=1"`
	Burst             int `yaml:"burst" default:"5" validate:"gte=1"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output     string `yaml:"output" default:"stdout" validate:"oneof=stdout stderr file"`
	Level      string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"20" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
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
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Providers {
			if c.Providers[i].Type == "lastfm" {
				if c.Providers[i].Settings == nil {
					c.Providers[i].Settings = map[string]any{}
				}
				c.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}
	if v := os.Getenv("DASHBOARD_ADMIN_TOKEN"); v != "" {
		c.Dashboard.AdminToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	if c.Audio.MinVolume > c.Audio.MaxVolume {
		return errors.Newf("min_volume (%.2f) must not exceed max_volume (%.2f)", c.Audio.MinVolume, c.Audio.MaxVolume)
	}
	if c.Audio.DefaultVolume < c.Audio.MinVolume || c.Audio.DefaultVolume > c.Audio.MaxVolume {
		return errors.Newf("default_volume (%.2f) must be within [%.2f, %.2f]", c.Audio.DefaultVolume, c.Audio.MinVolume, c.Audio.MaxVolume)
	}
	if c.Log.Output == "file" && c.Log.File == "" {
		return errors.New("log.file is required when log.output is file")
	}
	return nil
}

// IdleTimeout returns the idle destruction timeout.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.IdleSec) * time.Second
}

// AloneTimeout returns the alone pause timeout.
func (c *Config) AloneTimeout() time.Duration {
	return time.Duration(c.Timeouts.AloneSec) * time.Second
}

// AloneGrace returns the pause-to-destroy grace period once alone.
func (c *Config) AloneGrace() time.Duration {
	return time.Duration(c.Timeouts.AloneGraceSec) * time.Second
}

// AutoplayHalfLife returns the recency-decay half-life.
func (c *Config) AutoplayHalfLife() time.Duration {
	return time.Duration(c.Autoplay.HalfLifeHours) * time.Hour
}

// AutoplayMaxDuration returns the longest track autoplay will pick.
// Zero disables the limit.
func (c *Config) AutoplayMaxDuration() time.Duration {
	return time.Duration(c.Autoplay.MaxDurationSec) * time.Second
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// IsOwner checks whether a Discord user ID is the configured owner.
func (c *Config) IsOwner(userID string) bool {
	return c.Discord.OwnerID != "" && c.Discord.OwnerID == userID
}
