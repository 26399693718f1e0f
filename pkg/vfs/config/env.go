package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies VFS_* environment variable overrides. Only variables that
// are set change the configuration.
//
// Database:
//
//	VFS_DATABASE_TYPE - "memory" (default) or "postgres"
//	VFS_OFFLINE_DATABASE_URL - offline projection connection string
//	VFS_ONLINE_DATABASE_URL, VFS_BACKUP_DATABASE_URL - default to the offline one
//
// Content:
//
//	VFS_CONTENT_BACKEND - "database" (default), "memory", "fs" or "s3"
//	VFS_STORAGE_DIR - base directory of the fs backend
//	VFS_S3_BUCKET, VFS_S3_REGION, VFS_S3_ENDPOINT - S3 backend
//
// Run Usage for the full list.
func WithEnv() Option {
	return func(c *Config) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a yaml, json, toml or env file and then applies the
// environment on top of it.
func WithFile(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("config file path cannot be empty")
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// Usage describes every environment variable the configuration reads.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}
