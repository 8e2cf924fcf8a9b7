package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	YouTube     YouTubeConfig     `toml:"youtube"`
	Publication PublicationConfig `toml:"publication"`
	Notify      NotifyConfig      `toml:"notify"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// YouTubeConfig contains YouTube Data API credentials and call policy.
//
// The OAuth token at TokenPath is produced by external tooling and only read here.
type YouTubeConfig struct {
	ClientSecretPath  string        `toml:"client_secret_path"`
	TokenPath         string        `toml:"token_path"`
	Category          string        `toml:"category"`
	UploadPrivacy     string        `toml:"upload_privacy"`
	PlaylistPrivacy   string        `toml:"playlist_privacy"`
	WatchURL          string        `toml:"watch_url"`
	EmbedURL          string        `toml:"embed_url"`
	RequestTimeout    time.Duration `toml:"request_timeout"`
	UploadTimeout     time.Duration `toml:"upload_timeout"`
	MaxRetries        int           `toml:"max_retries"`
	InitialBackoff    time.Duration `toml:"initial_backoff"`
	MaxBackoff        time.Duration `toml:"max_backoff"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
}

// PublicationConfig holds the label codes and URLs that drive publication.
type PublicationConfig struct {
	RootLabel            string   `toml:"root_label"`
	ChannelsRoot         string   `toml:"channels_root"`
	PlaylistRoot         string   `toml:"playlist_root"`
	PlaylistRootTitle    string   `toml:"playlist_root_title"`
	PublishedMarker      string   `toml:"published_marker"`
	PublishedMarkerTitle string   `toml:"published_marker_title"`
	DefaultPlaylist      string   `toml:"default_playlist"`
	DefaultPlaylistTitle string   `toml:"default_playlist_title"`
	RequiredLabels       []string `toml:"required_labels"`
	AssetURL             string   `toml:"asset_url"`
}

// NotifyConfig controls delivery of publication notifications.
type NotifyConfig struct {
	Enabled    bool          `toml:"enabled"`
	WebhookURL string        `toml:"webhook_url"`
	SenderName string        `toml:"sender_name"`
	Recipient  string        `toml:"recipient"`
	Timeout    time.Duration `toml:"timeout"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
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

// Validate checks the settings the publication engine cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	case c.Publication.PlaylistRoot == "":
		return fmt.Errorf("%w: publication.playlist_root is required", ErrInvalidConfig)
	case c.Publication.PublishedMarker == "":
		return fmt.Errorf("%w: publication.published_marker is required", ErrInvalidConfig)
	case c.YouTube.WatchURL == "":
		return fmt.Errorf("%w: youtube.watch_url is required", ErrInvalidConfig)
	}
	return nil
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
