package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix namespaces environment overrides, e.g. SPOTSYNC_SPOTIFY_ACCESS_TOKEN.
const EnvPrefix = "spotsync"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	API         APIConfig         `toml:"api"`
	Database    DatabaseConfig    `toml:"database"`
	Sync        SyncConfig        `toml:"sync"`
	Queue       QueueConfig       `toml:"queue"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// An access token alone is used as-is; a refresh token together with the client
// credentials enables automatic renewal.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
}

// APIConfig contains remote API client settings.
type APIConfig struct {
	BaseURL          string `toml:"base_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	PageSize         int    `toml:"page_size"`
	PlaylistPageSize int    `toml:"playlist_page_size"`
	PushChunkSize    int    `toml:"push_chunk_size"`
}

// Timeout returns the request timeout as a [time.Duration].
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SyncConfig selects pipeline stages and toggles the remote push.
type SyncConfig struct {
	Stages           []string `toml:"stages"`
	ResyncStages     []string `toml:"resync_stages"`
	CatalogStages    []string `toml:"catalog_stages"`
	Push             bool     `toml:"push"`
	LiveVersionLimit int      `toml:"live_version_limit"`
}

// QueueConfig contains job queue settings.
type QueueConfig struct {
	Workers     int     `toml:"workers"`
	Size        int     `toml:"size"`
	RateLimit   float64 `toml:"rate_limit"`
	MaxAttempts int     `toml:"max_attempts"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// envOverrides lists the settings that may be supplied through the environment.
type envOverrides struct {
	ClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string `envconfig:"SPOTIFY_REDIRECT_URI"`
	AccessToken  string `envconfig:"SPOTIFY_ACCESS_TOKEN"`
	RefreshToken string `envconfig:"SPOTIFY_REFRESH_TOKEN"`
	BaseURL      string `envconfig:"API_BASE_URL"`
	DatabasePath string `envconfig:"DATABASE_PATH"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	Push         *bool  `envconfig:"SYNC_PUSH"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides config values with any SPOTSYNC_* environment variables that are set.
func ApplyEnv(config *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	spotify := &config.Credentials.Spotify
	override(&spotify.ClientID, env.ClientID)
	override(&spotify.ClientSecret, env.ClientSecret)
	override(&spotify.RedirectURI, env.RedirectURI)
	override(&spotify.AccessToken, env.AccessToken)
	override(&spotify.RefreshToken, env.RefreshToken)
	override(&config.API.BaseURL, env.BaseURL)
	override(&config.Database.Path, env.DatabasePath)
	override(&config.Log.Level, env.LogLevel)
	if env.Push != nil {
		config.Sync.Push = *env.Push
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ResolveConfig loads the config at path when it exists, falls back to defaults
// otherwise, and applies environment overrides on top.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
