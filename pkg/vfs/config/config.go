package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/repo/memory"
	"github.com/tendant/simple-vfs/pkg/vfs/repo/postgres"
	fsstorage "github.com/tendant/simple-vfs/pkg/vfs/storage/fs"
	memorystorage "github.com/tendant/simple-vfs/pkg/vfs/storage/memory"
	s3storage "github.com/tendant/simple-vfs/pkg/vfs/storage/s3"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		DatabaseType:       "memory",
		ContentBackend:     "database",
		StorageDir:         "./data/vfs",
		OnlineProjectID:    vfs.DefaultOnlineProjectID,
		LinkType:           vfs.DefaultLinkType,
		PropagateLinkDates: true,
		PropertyCacheSize:  256,
		PropertyCacheTTL:   5 * time.Minute,
		S3: S3Config{
			Region:       "us-east-1",
			SSEAlgorithm: "AES256",
		},
		LogLevel: "info",
		OpsAddr:  ":9090",
	}
}

// Config describes how a vfs.Store is assembled. Tags name the keys read by
// WithEnv and WithFile. Defaults come from defaults(); env-default tags only
// fill fields that are still zero.
type Config struct {
	// Database configuration
	DatabaseType string `yaml:"database_type" json:"database_type" env:"VFS_DATABASE_TYPE" env-default:"memory" env-description:"memory or postgres"`
	OfflineURL   string `yaml:"offline_url" json:"offline_url" env:"VFS_OFFLINE_DATABASE_URL" env-description:"offline projection database"`
	OnlineURL    string `yaml:"online_url" json:"online_url" env:"VFS_ONLINE_DATABASE_URL" env-description:"online projection database, defaults to the offline one"`
	BackupURL    string `yaml:"backup_url" json:"backup_url" env:"VFS_BACKUP_DATABASE_URL" env-description:"backup projection database, defaults to the offline one"`
	DBSchema     string `yaml:"db_schema" json:"db_schema" env:"VFS_DB_SCHEMA" env-description:"postgres search_path"`

	// Content configuration
	ContentBackend string   `yaml:"content_backend" json:"content_backend" env:"VFS_CONTENT_BACKEND" env-default:"database" env-description:"database, memory, fs or s3"`
	StorageDir     string   `yaml:"storage_dir" json:"storage_dir" env:"VFS_STORAGE_DIR" env-default:"./data/vfs"`
	S3             S3Config `yaml:"s3" json:"s3"`

	// Store behavior
	OnlineProjectID        int           `yaml:"online_project_id" json:"online_project_id" env:"VFS_ONLINE_PROJECT_ID"`
	LinkType               int           `yaml:"link_type" json:"link_type" env:"VFS_LINK_TYPE" env-default:"1024"`
	PropagateLinkDates     bool          `yaml:"propagate_link_dates" json:"propagate_link_dates" env:"VFS_PROPAGATE_LINK_DATES"`
	TolerateContentFailure bool          `yaml:"tolerate_content_failure" json:"tolerate_content_failure" env:"VFS_TOLERATE_CONTENT_FAILURE"`
	PropertyCacheSize      int           `yaml:"property_cache_size" json:"property_cache_size" env:"VFS_PROPERTY_CACHE_SIZE" env-description:"0 disables the cache"`
	PropertyCacheTTL       time.Duration `yaml:"property_cache_ttl" json:"property_cache_ttl" env:"VFS_PROPERTY_CACHE_TTL" env-default:"5m"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"VFS_LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`

	// Ops server
	OpsAddr         string `yaml:"ops_addr" json:"ops_addr" env:"VFS_OPS_ADDR" env-default:":9090" env-description:"listen address of vfsctl serve"`
	OpsAPIKeySHA256 string `yaml:"ops_api_key_sha256" json:"ops_api_key_sha256" env:"VFS_OPS_API_KEY_SHA256" env-description:"sha256 of the key guarding /ops; empty leaves it open"`
}

// S3Config represents configuration for the S3 content backend
type S3Config struct {
	Bucket                 string `yaml:"bucket" json:"bucket" env:"VFS_S3_BUCKET"`
	Region                 string `yaml:"region" json:"region" env:"VFS_S3_REGION" env-default:"us-east-1"`
	Prefix                 string `yaml:"prefix" json:"prefix" env:"VFS_S3_PREFIX"`
	AccessKeyID            string `yaml:"access_key_id" json:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `yaml:"secret_access_key" json:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `yaml:"endpoint" json:"endpoint" env:"VFS_S3_ENDPOINT"`
	UsePathStyle           bool   `yaml:"use_path_style" json:"use_path_style" env:"VFS_S3_USE_PATH_STYLE"`
	EnableSSE              bool   `yaml:"enable_sse" json:"enable_sse" env:"VFS_S3_ENABLE_SSE"`
	SSEAlgorithm           string `yaml:"sse_algorithm" json:"sse_algorithm" env:"VFS_S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID            string `yaml:"sse_kms_key_id" json:"sse_kms_key_id" env:"VFS_S3_SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool   `yaml:"create_bucket_if_not_exist" json:"create_bucket_if_not_exist" env:"VFS_S3_CREATE_BUCKET"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.OfflineURL == "" {
			return errors.New("offline_url is required when using postgres")
		}
	default:
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	switch c.ContentBackend {
	case "database", "memory":
	case "fs":
		if c.StorageDir == "" {
			return errors.New("storage_dir is required for the fs content backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required for the s3 content backend")
		}
	default:
		return fmt.Errorf("content_backend must be 'database', 'memory', 'fs' or 's3', got: %s", c.ContentBackend)
	}

	if c.PropertyCacheSize < 0 {
		return fmt.Errorf("property_cache_size cannot be negative, got: %d", c.PropertyCacheSize)
	}
	if c.PropertyCacheSize > 0 && c.PropertyCacheTTL <= 0 {
		return errors.New("property_cache_ttl must be positive when the cache is enabled")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Databases returns the offline, online and backup URLs with the online and
// backup ones falling back to the offline URL.
func (c *Config) Databases() (offline, online, backup string) {
	offline, online, backup = c.OfflineURL, c.OnlineURL, c.BackupURL
	if online == "" {
		online = offline
	}
	if backup == "" {
		backup = offline
	}
	return offline, online, backup
}

// Runtime is a built store and the resources it holds open.
type Runtime struct {
	Store  *vfs.Store
	closer func()
}

// Close releases database pools. It is safe to call on a memory runtime.
func (r *Runtime) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// Build creates a Store from the configuration
func (c *Config) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	options := []vfs.Option{
		vfs.WithLogger(logger),
		vfs.WithOnlineProjectID(c.OnlineProjectID),
		vfs.WithLinkType(c.LinkType),
		vfs.WithLinkDatePropagation(c.PropagateLinkDates),
		vfs.WithTolerateContentFailure(c.TolerateContentFailure),
		vfs.WithPropertyCache(c.PropertyCacheSize, c.PropertyCacheTTL),
	}

	rt := &Runtime{}
	switch c.DatabaseType {
	case "memory":
		options = append(options,
			vfs.WithConnectionProvider(memory.NewProvider()),
			vfs.WithIdAllocator(memory.NewIdAllocator()))
	case "postgres":
		provider, err := c.buildPostgres(ctx, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build repository: %w", err)
		}
		rt.closer = provider.Close
		options = append(options,
			vfs.WithConnectionProvider(provider),
			vfs.WithIdAllocator(provider.IdAllocator()))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	blobs, err := c.buildContentBackend()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build content backend %s: %w", c.ContentBackend, err)
	}
	if blobs != nil {
		options = append(options, vfs.WithBlobStore(blobs))
	}

	store, err := vfs.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Store = store
	return rt, nil
}

// buildPostgres opens one pool per distinct database URL.
func (c *Config) buildPostgres(ctx context.Context, logger *slog.Logger) (*postgres.Provider, error) {
	offline, online, backup := c.Databases()
	opened := make(map[string]*pgxpool.Pool)
	closeAll := func() {
		for _, pool := range opened {
			pool.Close()
		}
	}
	open := func(url string) (*pgxpool.Pool, error) {
		if pool, ok := opened[url]; ok {
			return pool, nil
		}
		pool, err := postgres.Connect(ctx, url, c.DBSchema, logger)
		if err != nil {
			return nil, err
		}
		opened[url] = pool
		return pool, nil
	}

	var pools postgres.Pools
	var err error
	if pools.Offline, err = open(offline); err != nil {
		closeAll()
		return nil, err
	}
	if pools.Online, err = open(online); err != nil {
		closeAll()
		return nil, err
	}
	if pools.Backup, err = open(backup); err != nil {
		closeAll()
		return nil, err
	}
	return postgres.NewProvider(pools)
}

// buildContentBackend returns nil when content stays in the database
func (c *Config) buildContentBackend() (vfs.BlobStore, error) {
	switch c.ContentBackend {
	case "database":
		return nil, nil
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.StorageDir})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			Prefix:                 c.S3.Prefix,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported content backend: %s", c.ContentBackend)
	}
}
