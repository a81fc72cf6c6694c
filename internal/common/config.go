package common

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	PubSub   PubSubConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Bucket       string
	ProjectID    string
	UploadURLTTL time.Duration
}

// PubSubConfig holds Pub/Sub configuration
type PubSubConfig struct {
	ProjectID                   string
	DocumentUploadsSubscription string
	ParsingJobsTopic            string
	PublishTimeout              time.Duration
}

// LoadConfig reads configuration from the environment, applying defaults for
// everything except the database DSN and the storage bucket.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "30m")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "5m")
	v.SetDefault("DB_DIAL_TIMEOUT", "5s")
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("STORAGE_UPLOAD_URL_TTL", "1h")
	v.SetDefault("PUBSUB_DOCUMENT_UPLOADS_SUBSCRIPTION", "")
	v.SetDefault("PUBSUB_PARSING_JOBS_TOPIC", "")
	v.SetDefault("PUBSUB_PUBLISH_TIMEOUT", "30s")

	cfg := &Config{
		Database: DatabaseConfig{
			DSN:              v.GetString("DB_DSN"),
			MaxConns:         v.GetInt32("DB_MAX_CONNS"),
			MinConns:         v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime:  v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime:  v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			DialTimeout:      v.GetDuration("DB_DIAL_TIMEOUT"),
			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
		},
		Server: ServerConfig{
			Addr:            v.GetString("SERVER_ADDR"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Storage: StorageConfig{
			Bucket:       v.GetString("STORAGE_BUCKET"),
			ProjectID:    v.GetString("GOOGLE_CLOUD_PROJECT"),
			UploadURLTTL: v.GetDuration("STORAGE_UPLOAD_URL_TTL"),
		},
		PubSub: PubSubConfig{
			ProjectID:                   v.GetString("GOOGLE_CLOUD_PROJECT"),
			DocumentUploadsSubscription: v.GetString("PUBSUB_DOCUMENT_UPLOADS_SUBSCRIPTION"),
			ParsingJobsTopic:            v.GetString("PUBSUB_PARSING_JOBS_TOPIC"),
			PublishTimeout:              v.GetDuration("PUBSUB_PUBLISH_TIMEOUT"),
		},
	}

	if cfg.Database.DSN == "" {
		return nil, NewAppError("CONFIG", "DB_DSN is required", nil)
	}
	if cfg.Storage.Bucket == "" {
		return nil, NewAppError("CONFIG", "STORAGE_BUCKET is required", nil)
	}
	return cfg, nil
}
