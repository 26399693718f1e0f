package vfs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store wires the routing, content, property, resource, link, tree and
// backup components over one ConnectionProvider.
type Store struct {
	provider ConnectionProvider
	ids      IdAllocator
	blobs    BlobStore
	clock    Clock
	logger   *slog.Logger
	router   Router

	linkType               int
	propagateLinkDates     bool
	tolerateContentFailure bool
	cacheSize              int
	cacheTTL               time.Duration

	content    *ContentStore
	properties *PropertyStore
	resources  *ResourceRepository
	links      *LinkResolver
	tree       *TreeQuery
	backup     *BackupArchive
	recorder   *BackupRecorder
}

// Option represents a functional option for configuring the store
type Option func(*Store)

// WithConnectionProvider sets the provider all projections are served from
func WithConnectionProvider(p ConnectionProvider) Option {
	return func(s *Store) {
		s.provider = p
	}
}

// WithIdAllocator sets the allocator for property and definition ids
func WithIdAllocator(ids IdAllocator) Option {
	return func(s *Store) {
		s.ids = ids
	}
}

// WithBlobStore stores file content in a blob store instead of the projection tables
func WithBlobStore(b BlobStore) Option {
	return func(s *Store) {
		s.blobs = b
	}
}

// WithClock sets the time source for modification timestamps
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithOnlineProjectID sets the id of the project served by the online projection
func WithOnlineProjectID(id int) Option {
	return func(s *Store) {
		s.router = NewRouter(id)
	}
}

// WithLinkType sets the resource type id of link resources
func WithLinkType(t int) Option {
	return func(s *Store) {
		s.linkType = t
	}
}

// WithLinkDatePropagation toggles reporting a link's modification date from its target
func WithLinkDatePropagation(enabled bool) Option {
	return func(s *Store) {
		s.propagateLinkDates = enabled
	}
}

// WithTolerateContentFailure makes Create log content write failures and
// continue without content instead of failing.
func WithTolerateContentFailure(enabled bool) Option {
	return func(s *Store) {
		s.tolerateContentFailure = enabled
	}
}

// WithPropertyCache sizes the property definition cache. A size of zero disables it.
func WithPropertyCache(size int, ttl time.Duration) Option {
	return func(s *Store) {
		s.cacheSize = size
		s.cacheTTL = ttl
	}
}

// DefaultLinkType is the resource type id of link resources unless configured otherwise.
const DefaultLinkType = 1024

// New creates a new store with the given options
func New(options ...Option) (*Store, error) {
	s := &Store{
		clock:              RealClock{},
		logger:             slog.Default(),
		router:             NewRouter(DefaultOnlineProjectID),
		linkType:           DefaultLinkType,
		propagateLinkDates: true,
		cacheSize:          256,
		cacheTTL:           5 * time.Minute,
	}

	for _, option := range options {
		option(s)
	}

	if s.provider == nil {
		return nil, fmt.Errorf("connection provider is required")
	}
	if s.ids == nil {
		return nil, fmt.Errorf("id allocator is required")
	}

	var cache *expirable.LRU[string, *PropertyDefinition]
	if s.cacheSize > 0 {
		cache = expirable.NewLRU[string, *PropertyDefinition](s.cacheSize, nil, s.cacheTTL)
	}

	s.content = &ContentStore{s: s}
	s.properties = &PropertyStore{s: s, cache: cache}
	s.links = &LinkResolver{s: s}
	s.tree = &TreeQuery{s: s}
	s.resources = &ResourceRepository{s: s}
	s.backup = &BackupArchive{s: s}
	s.recorder = &BackupRecorder{s: s}

	return s, nil
}

// Router returns the projection router.
func (s *Store) Router() Router { return s.router }

// Content returns the content store.
func (s *Store) Content() *ContentStore { return s.content }

// Properties returns the property store.
func (s *Store) Properties() *PropertyStore { return s.properties }

// Resources returns the resource repository.
func (s *Store) Resources() *ResourceRepository { return s.resources }

// Links returns the link resolver.
func (s *Store) Links() *LinkResolver { return s.links }

// Tree returns the tree query component.
func (s *Store) Tree() *TreeQuery { return s.tree }

// Backup returns the read side of the history projection.
func (s *Store) Backup() *BackupArchive { return s.backup }

// Recorder returns the append-only write side of the history projection.
func (s *Store) Recorder() *BackupRecorder { return s.recorder }

// withConn runs fn on a connection to p and releases it on every path.
// Backend faults returned by fn are wrapped as StorageError.
func (s *Store) withConn(ctx context.Context, p Projection, op string, fn func(Conn) error) (err error) {
	start := time.Now()
	defer func() { observe(op, p, start, err) }()

	conn, err := s.provider.Acquire(ctx, p)
	if err != nil {
		return &StorageError{Projection: p, Op: op, Err: err}
	}
	defer conn.Release()

	return wrapStorage(p, op, fn(conn))
}

// Ping acquires and releases one connection per projection.
func (s *Store) Ping(ctx context.Context) error {
	for _, p := range Projections {
		if err := s.withConn(ctx, p, "store.ping", func(Conn) error { return nil }); err != nil {
			return err
		}
	}
	return nil
}
