// Package config provides the configuration structure for the audiobook-service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// HTTPConfig holds the configuration for the HTTP server.
type HTTPConfig struct {
	Port                   int `toml:"port"`
	ReadTimeoutSeconds     int `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
}

// DatabaseConfig holds the configuration for PostgreSQL.
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"ssl_mode"`
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MigrateURL returns the golang-migrate database URL (pgx5 driver).
func (d DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// NATSConfig holds the configuration for NATS JetStream.
type NATSConfig struct {
	URL                 string `toml:"url"`
	JobStreamName       string `toml:"job_stream_name"`
	JobConsumerName     string `toml:"job_consumer_name"`
	JobSubject          string `toml:"job_subject"`
	NotifySubjectPrefix string `toml:"notify_subject_prefix"`
	ObjectStoreBucket   string `toml:"object_store_bucket"`
}

// AuthConfig holds the configuration for session authentication and
// download capability tokens.
type AuthConfig struct {
	SecretKey                  string `toml:"secret_key"`
	AccessTokenExpireMinutes   int    `toml:"access_token_expire_minutes"`
	RefreshTokenExpireDays     int    `toml:"refresh_token_expire_days"`
	DownloadTokenExpireMinutes int    `toml:"download_token_expire_minutes"`
}

// TTSConfig holds the configuration for the synthesis pipeline.
type TTSConfig struct {
	Engine             string  `toml:"engine"` // "http" or "exec"
	ServiceURL         string  `toml:"service_url"`
	BinaryPath         string  `toml:"binary_path"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	MaxChunkChars      int     `toml:"max_chunk_chars"`
	ChunkGapMillis     int     `toml:"chunk_gap_millis"`
	SoftLimitSeconds   int     `toml:"soft_limit_seconds"`
	HardLimitSeconds   int     `toml:"hard_limit_seconds"`
	DefaultLanguage    string  `toml:"default_language"`
	DefaultVoice       string  `toml:"default_voice"`
	DefaultSpeed       float64 `toml:"default_speed"`
}

// StorageConfig holds the configuration for artifact storage.
type StorageConfig struct {
	Backend  string `toml:"backend"` // "local", "nats" or "s3"
	LocalDir string `toml:"local_dir"`

	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
}

// UploadConfig holds the configuration for book uploads.
type UploadConfig struct {
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	MaxTextChars      int      `toml:"max_text_chars"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	HTTP     HTTPConfig     `toml:"http"`
	Database DatabaseConfig `toml:"database"`
	NATS     NATSConfig     `toml:"nats"`
	Auth     AuthConfig     `toml:"auth"`
	TTS      TTSConfig      `toml:"tts"`
	Storage  StorageConfig  `toml:"storage"`
	Upload   UploadConfig   `toml:"upload"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration for the audiobook-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
