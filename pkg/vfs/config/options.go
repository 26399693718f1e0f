package config

import (
	"fmt"
	"time"
)

// WithDatabase configures the database backend. url is the offline
// projection database; the other projections share it unless
// WithProjectionDatabases says otherwise.
func WithDatabase(dbType, url string) Option {
	return func(c *Config) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.OfflineURL = url
		return nil
	}
}

// WithProjectionDatabases points the online and backup projections at their own databases
func WithProjectionDatabases(onlineURL, backupURL string) Option {
	return func(c *Config) error {
		c.OnlineURL = onlineURL
		c.BackupURL = backupURL
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *Config) error {
		c.DBSchema = schema
		return nil
	}
}

// WithDatabaseContent keeps file content in the projection tables
func WithDatabaseContent() Option {
	return func(c *Config) error {
		c.ContentBackend = "database"
		return nil
	}
}

// WithMemoryContent keeps file content in process memory
func WithMemoryContent() Option {
	return func(c *Config) error {
		c.ContentBackend = "memory"
		return nil
	}
}

// WithFilesystemContent stores file content below baseDir
func WithFilesystemContent(baseDir string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.ContentBackend = "fs"
		c.StorageDir = baseDir
		return nil
	}
}

// WithS3Content stores file content in an S3 bucket
func WithS3Content(bucket, region string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1" // Default region
		}
		c.ContentBackend = "s3"
		c.S3.Bucket = bucket
		c.S3.Region = region
		return nil
	}
}

// WithS3Credentials sets AWS credentials for S3 content
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *Config) error {
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *Config) error {
		c.S3.Endpoint = endpoint
		c.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithOnlineProjectID sets the id of the project served by the online projection
func WithOnlineProjectID(id int) Option {
	return func(c *Config) error {
		if id < 0 {
			return fmt.Errorf("online project id cannot be negative, got: %d", id)
		}
		c.OnlineProjectID = id
		return nil
	}
}

// WithLinkType sets the resource type id of link resources
func WithLinkType(t int) Option {
	return func(c *Config) error {
		c.LinkType = t
		return nil
	}
}

// WithLinkDatePropagation toggles reporting link dates from their targets
func WithLinkDatePropagation(enabled bool) Option {
	return func(c *Config) error {
		c.PropagateLinkDates = enabled
		return nil
	}
}

// WithTolerateContentFailure lets creation continue when content cannot be written
func WithTolerateContentFailure(enabled bool) Option {
	return func(c *Config) error {
		c.TolerateContentFailure = enabled
		return nil
	}
}

// WithPropertyCache sizes the property definition cache
func WithPropertyCache(size int, ttl time.Duration) Option {
	return func(c *Config) error {
		if size < 0 {
			return fmt.Errorf("cache size cannot be negative, got: %d", size)
		}
		c.PropertyCacheSize = size
		c.PropertyCacheTTL = ttl
		return nil
	}
}

// WithLogLevel sets the log level (debug, info, warn, error)
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		return nil
	}
}

// WithOpsServer sets the listen address of the ops server and the sha256 of
// its API key. An empty hash leaves the ops routes open.
func WithOpsServer(addr, apiKeySHA256 string) Option {
	return func(c *Config) error {
		if addr == "" {
			return fmt.Errorf("ops server address is required")
		}
		c.OpsAddr = addr
		c.OpsAPIKeySHA256 = apiKeySHA256
		return nil
	}
}
