package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Discord: DiscordConfig{
			Token:  "test-discord-token",
			Prefix: "!",
		},
		Audio: AudioConfig{
			FFmpegPath:    "ffmpeg",
			DefaultVolume: 0.5,
			MinVolume:     0.1,
			MaxVolume:     2.0,
		},
		Timeouts: TimeoutsConfig{
			IdleSec:       300,
			AloneSec:      60,
			AloneGraceSec: 30,
		},
		UI:       UIConfig{QueuePageSize: 10},
		Autoplay: AutoplayConfig{ConsecutiveCap: 25, HalfLifeHours: 72, MaxDurationSec: 900, SparseThreshold: 5},
		History:  HistoryConfig{Dir: "data/history", MaxEntries: 20},
		Spotify:  SpotifyConfig{Market: "US"},
		Dashboard: DashboardConfig{
			Addr:       ":8080",
			AdminToken: "secret-token",
		},
		RateLimit: RateLimitConfig{CommandsPerMinute: 20, Burst: 5},
		Log:       LogConfig{Output: "stdout", Level: "info", MaxSizeMB: 20},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing discord token",
			mutate:  func(c *Config) { c.Discord.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "dashboard token too short",
			mutate:  func(c *Config) { c.Dashboard.AdminToken = "abc" },
			wantErr: true,
			errMsg:  "AdminToken",
		},
		{
			name:    "invalid market length",
			mutate:  func(c *Config) { c.Spotify.Market = "JAPAN" },
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name:    "default volume below minimum",
			mutate:  func(c *Config) { c.Audio.DefaultVolume = 0.05 },
			wantErr: true,
			errMsg:  "DefaultVolume",
		},
		{
			name: "default volume outside custom bounds",
			mutate: func(c *Config) {
				c.Audio.MinVolume = 0.8
				c.Audio.DefaultVolume = 0.5
			},
			wantErr: true,
			errMsg:  "default_volume",
		},
		{
			name: "min volume above max volume",
			mutate: func(c *Config) {
				c.Audio.MinVolume = 1.5
				c.Audio.MaxVolume = 1.0
				c.Audio.DefaultVolume = 1.2
			},
			wantErr: true,
			errMsg:  "min_volume",
		},
		{
			name: "file output requires a path",
			mutate: func(c *Config) {
				c.Log.Output = "file"
				c.Log.File = ""
			},
			wantErr: true,
			errMsg:  "log.file",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
			errMsg:  "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestLoad_DefaultsAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
discord:
  token: file-token
dashboard:
  admin_token: file-admin-token
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("DASHBOARD_ADMIN_TOKEN", "env-admin-token")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Discord.Token, "env must win over file")
	assert.Equal(t, "env-admin-token", cfg.Dashboard.AdminToken)

	// defaults filled in for everything the file omitted
	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, 0.5, cfg.Audio.DefaultVolume)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, time.Minute, cfg.AloneTimeout())
	assert.Equal(t, 10, cfg.UI.QueuePageSize)
	assert.Equal(t, 72*time.Hour, cfg.AutoplayHalfLife())
	assert.Equal(t, 15*time.Minute, cfg.AutoplayMaxDuration())
	assert.Equal(t, 20, cfg.History.MaxEntries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_LastfmAPIKeyFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
discord:
  token: file-token
dashboard:
  admin_token: file-admin-token
providers:
  - type: lastfm
    display_name: Last.fm
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))
	t.Setenv("LASTFM_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "env-key", cfg.Providers[0].Settings["api_key"])
}

func TestConfig_SpotifyEnabled(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.SpotifyEnabled())

	cfg.Spotify.ClientID = "id"
	assert.False(t, cfg.SpotifyEnabled())

	cfg.Spotify.ClientSecret = "secret"
	assert.True(t, cfg.SpotifyEnabled())
}

func TestConfig_IsOwner(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.IsOwner("123"), "no owner configured")

	cfg.Discord.OwnerID = "123"
	assert.True(t, cfg.IsOwner("123"))
	assert.False(t, cfg.IsOwner("456"))
}
