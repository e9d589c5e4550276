package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Twitch       TwitchConfig       `mapstructure:"twitch"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains segment-download configuration
type DownloadConfig struct {
	BaseDir string `mapstructure:"base_dir"`

	// Concurrency is the number of segments fetched in parallel per batch.
	Concurrency int `mapstructure:"concurrency"`

	// MaxRetries is the per-segment retry budget.
	MaxRetries int `mapstructure:"max_retries"`

	// RetryBaseDelay is the backoff base; doubled per attempt, plus jitter.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`

	// BatchDelay is the pause between batches to ease origin rate limiting.
	BatchDelay time.Duration `mapstructure:"batch_delay"`

	// SegmentTimeout is the hard cap on a single segment fetch.
	SegmentTimeout time.Duration `mapstructure:"segment_timeout"`

	// MaxConsecutiveFailures aborts the job once exceeded. Copyright
	// blocks (403) never count toward this threshold.
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`

	// SegmentSizeEstimate is the per-segment byte estimate used for the
	// advisory quota check before a download starts.
	SegmentSizeEstimate int64 `mapstructure:"segment_size_estimate"`

	MaxParallelJobs int `mapstructure:"max_parallel_jobs"`
}

// CompletedDir returns the directory for finished files
func (c *DownloadConfig) CompletedDir() string {
	return filepath.Join(c.BaseDir, "completed")
}

// IncomingDir returns the directory used by the fallback save path
func (c *DownloadConfig) IncomingDir() string {
	return filepath.Join(c.BaseDir, "incoming")
}

// LogsDir returns the directory for category log files
func (c *DownloadConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// ConfigDir returns the directory holding the config and database files
func (c *DownloadConfig) ConfigDir() string {
	return filepath.Join(c.BaseDir, "config")
}

// StorageConfig contains segment-store configuration
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`

	// QuotaBytes bounds the total size of stored segments. Advisory:
	// checked before a download and on write failures, not enforced per write.
	QuotaBytes int64 `mapstructure:"quota_bytes"`

	// HistoryLimit is the maximum number of retained history records.
	HistoryLimit int `mapstructure:"history_limit"`
}

// TwitchConfig contains endpoints and identifiers for the Twitch API
type TwitchConfig struct {
	GQLEndpoint string `mapstructure:"gql_endpoint"`
	ClientID    string `mapstructure:"client_id"`
	UsherBase   string `mapstructure:"usher_base"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send, etc.
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			BaseDir:                "$HOME/Downloads/twitch-vod",
			Concurrency:            5,
			MaxRetries:             3,
			RetryBaseDelay:         time.Second,
			BatchDelay:             500 * time.Millisecond,
			SegmentTimeout:         30 * time.Second,
			MaxConsecutiveFailures: 30,
			SegmentSizeEstimate:    1 << 20,
			MaxParallelJobs:        2,
		},
		Storage: StorageConfig{
			DatabasePath: "$HOME/Downloads/twitch-vod/config/segments.db",
			QuotaBytes:   20 << 30,
			HistoryLimit: 100,
		},
		Twitch: TwitchConfig{
			GQLEndpoint: "https://gql.twitch.tv/gql",
			ClientID:    "kimne78kx3ncx6brgo4mv6wki5h1ko",
			UsherBase:   "https://usher.ttvnw.net/vod/",
		},
		Notification: NotificationConfig{
			Enabled: true,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
