package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

var (
	_ vfs.ConnectionProvider = (*Provider)(nil)
	_ vfs.Conn               = (*conn)(nil)
)

var errReleased = errors.New("connection already released")

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Pools holds one connection pool per projection. Pools may be shared.
type Pools struct {
	Offline *pgxpool.Pool
	Online  *pgxpool.Pool
	Backup  *pgxpool.Pool
}

// Provider implements vfs.ConnectionProvider over PostgreSQL pools
type Provider struct {
	pools map[vfs.Projection]*pgxpool.Pool
	stmts map[vfs.Projection]*statements
}

// NewProvider creates a provider. Every pool is required.
func NewProvider(pools Pools) (*Provider, error) {
	if pools.Offline == nil || pools.Online == nil || pools.Backup == nil {
		return nil, errors.New("offline, online and backup pools are required")
	}
	p := &Provider{
		pools: map[vfs.Projection]*pgxpool.Pool{
			vfs.ProjectionOffline: pools.Offline,
			vfs.ProjectionOnline:  pools.Online,
			vfs.ProjectionBackup:  pools.Backup,
		},
		stmts: make(map[vfs.Projection]*statements),
	}
	for _, proj := range vfs.Projections {
		p.stmts[proj] = newStatements(proj)
	}
	return p, nil
}

// Connect opens a pool for dsn and pings it. A non-empty schema becomes the
// search_path of every pooled connection.
func Connect(ctx context.Context, dsn, schema string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	if schema != "" {
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.String("database", poolCfg.ConnConfig.Database),
	)
	return pool, nil
}

// Acquire takes a connection from the projection's pool
func (p *Provider) Acquire(ctx context.Context, proj vfs.Projection) (vfs.Conn, error) {
	pool, ok := p.pools[proj]
	if !ok {
		return nil, fmt.Errorf("unknown projection %s", proj)
	}
	pc, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s connection: %w", proj, err)
	}
	return &conn{db: pc, release: pc.Release, proj: proj, q: p.stmts[proj]}, nil
}

// IdAllocator returns an allocator whose sequences live in the offline database
func (p *Provider) IdAllocator() *IdAllocator {
	return NewIdAllocator(p.pools[vfs.ProjectionOffline])
}

// Close closes every distinct pool
func (p *Provider) Close() {
	seen := make(map[*pgxpool.Pool]bool)
	for _, pool := range p.pools {
		if !seen[pool] {
			seen[pool] = true
			pool.Close()
		}
	}
}

type conn struct {
	db       DBTX
	release  func()
	proj     vfs.Projection
	q        *statements
	released atomic.Bool
}

func (c *conn) Release() {
	if c.released.CompareAndSwap(false, true) {
		c.release()
	}
}

func (c *conn) check() error {
	if c.released.Load() {
		return errReleased
	}
	return nil
}

func (c *conn) checkMutable() error {
	if err := c.check(); err != nil {
		return err
	}
	if !c.proj.Mutable() {
		return vfs.ErrReadOnlyProjection
	}
	return nil
}

func (c *conn) checkBackup() error {
	if err := c.check(); err != nil {
		return err
	}
	if c.proj != vfs.ProjectionBackup {
		return fmt.Errorf("history rows are only served by the backup projection, not %s", c.proj)
	}
	return nil
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return vfs.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", vfs.ErrDuplicateName, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: referenced record not found", vfs.ErrNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "22001": // string_data_right_truncation
			return fmt.Errorf("%w: %s", vfs.ErrBadName, pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func affectedOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return vfs.ErrNotFound
	}
	return nil
}
