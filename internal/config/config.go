// Package config loads application configuration from an optional TOML file,
// a .env file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/justestif/musical-bridges/internal/refine"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Playlist PlaylistConfig `toml:"playlist"`
	Storage  StorageConfig  `toml:"storage"`
	Refine   refine.Config  `toml:"refine"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SpotifyConfig contains Spotify API credentials and client behaviour.
type SpotifyConfig struct {
	ClientID        string        `toml:"client_id"`
	ClientSecret    string        `toml:"client_secret"`
	RedirectURI     string        `toml:"redirect_uri"`
	TokenPath       string        `toml:"token_path"` // CLI token cache, empty for the user config dir
	Timeout         time.Duration `toml:"timeout"`
	RatePerSecond   float64       `toml:"rate_per_second"`
	Retry           bool          `toml:"retry"`
	PublicPlaylists bool          `toml:"public_playlists"`
}

// PlaylistConfig contains playlist size and ranking settings.
type PlaylistConfig struct {
	MinTracks int `toml:"min_tracks"`
	MaxTracks int `toml:"max_tracks"`
	TopK      int `toml:"top_k"`
}

// StorageConfig selects and configures the playlist store.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	DatabaseURL string `toml:"database_url"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Spotify: SpotifyConfig{
			RedirectURI:   "http://127.0.0.1:8080/callback",
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
		},
		Playlist: PlaylistConfig{
			MinTracks: 10,
			MaxTracks: 20,
			TopK:      5,
		},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "musical-bridges.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. Values come from the defaults, then the TOML file at
// path (skipped when path is empty), then a .env file in the working directory if present,
// then the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// applyEnv overrides fields with non-empty environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Server.Addr, "ADDR")
	set(&c.Spotify.ClientID, "SPOTIFY_ID")
	set(&c.Spotify.ClientSecret, "SPOTIFY_SECRET")
	set(&c.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	set(&c.Storage.SQLitePath, "SQLITE_PATH")
	set(&c.Refine.APIKey, "MOONSHOT_API_KEY")
	set(&c.Log.Level, "LOG_LEVEL")

	// A database URL on its own selects Postgres.
	if url := strings.TrimSpace(getenv("DATABASE_URL")); url != "" {
		c.Storage.DatabaseURL = url
		if getenv("STORAGE_DRIVER") == "" {
			c.Storage.Driver = DriverPostgres
		}
	}
	set(&c.Storage.Driver, "STORAGE_DRIVER")
}

// Validate reports every problem with the configuration at once.
// Spotify credentials are only checked when requireSpotify is set.
func (c *Config) Validate(requireSpotify bool) error {
	var problems []string

	if c.Playlist.MinTracks < 1 {
		problems = append(problems, fmt.Sprintf("playlist.min_tracks must be at least 1, got %d", c.Playlist.MinTracks))
	}
	if c.Playlist.MaxTracks < c.Playlist.MinTracks {
		problems = append(problems, fmt.Sprintf("playlist.max_tracks (%d) must not be below min_tracks (%d)", c.Playlist.MaxTracks, c.Playlist.MinTracks))
	}
	if c.Playlist.TopK < 1 {
		problems = append(problems, fmt.Sprintf("playlist.top_k must be at least 1, got %d", c.Playlist.TopK))
	}
	if c.Spotify.Timeout <= 0 {
		problems = append(problems, "spotify.timeout must be positive")
	}
	if c.Spotify.RatePerSecond <= 0 {
		problems = append(problems, "spotify.rate_per_second must be positive")
	}
	if requireSpotify && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
		problems = append(problems, "spotify client_id and client_secret must be set (SPOTIFY_ID, SPOTIFY_SECRET)")
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			problems = append(problems, "storage.sqlite_path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			problems = append(problems, "storage.database_url must be set for the postgres driver (DATABASE_URL)")
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
