package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Resource operations. The backup projection keeps no current resource rows:
// reads find nothing and writes are rejected.

func scanResource(row pgx.Row) (*vfs.Resource, error) {
	var (
		r     vfs.Resource
		state int
	)
	err := row.Scan(
		&r.Serial, &r.ID, &r.ParentID, &r.ContentID, &r.Path, &r.Type, &r.Flags,
		&r.OwnerID, &r.GroupID, &r.ProjectID, &r.AccessFlags, &state, &r.LockedBy,
		&r.LauncherType, &r.LauncherClass, &r.CreatedAt, &r.ModifiedAt, &r.ModifiedBy,
		&r.Size, &r.LockedInProject)
	if err != nil {
		return nil, err
	}
	if r.State, err = vfs.ParseState(state); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *conn) one(ctx context.Context, op, query string, args ...any) (*vfs.Resource, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.proj == vfs.ProjectionBackup {
		return nil, vfs.ErrNotFound
	}
	r, err := scanResource(c.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, handlePostgresError(op, err)
	}
	return r, nil
}

func (c *conn) ResourceByPath(ctx context.Context, path string) (*vfs.Resource, error) {
	return c.one(ctx, "read resource by path", c.q.resourceByPath, path)
}

func (c *conn) ResourceByID(ctx context.Context, id uuid.UUID) (*vfs.Resource, error) {
	return c.one(ctx, "read resource by id", c.q.resourceByID, id)
}

func (c *conn) ResourceBySerial(ctx context.Context, serial int64) (*vfs.Resource, error) {
	return c.one(ctx, "read resource by serial", c.q.resourceBySerial, serial)
}

func (c *conn) Resources(ctx context.Context, f vfs.ResourceFilter) ([]*vfs.Resource, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.proj == vfs.ProjectionBackup {
		return nil, nil
	}
	query, args := c.q.resourcesQuery(f)
	return c.list(ctx, "list resources", query, args...)
}

func (c *conn) list(ctx context.Context, op, query string, args ...any) ([]*vfs.Resource, error) {
	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError(op, err)
	}
	defer rows.Close()

	var out []*vfs.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, handlePostgresError(op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError(op, err)
	}
	return out, nil
}

func (c *conn) InsertResource(ctx context.Context, r *vfs.Resource) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	err := c.db.QueryRow(ctx, c.q.insertResource,
		r.ID, r.ParentID, r.ContentID, r.Path, r.Type, r.Flags, r.OwnerID, r.GroupID,
		r.ProjectID, r.AccessFlags, int(r.State), r.LockedBy, r.LauncherType, r.LauncherClass,
		r.CreatedAt, r.ModifiedAt, r.ModifiedBy, r.Size, r.LockedInProject,
	).Scan(&r.Serial)
	if err != nil {
		return handlePostgresError("insert resource", err)
	}
	return nil
}

func (c *conn) UpdateResource(ctx context.Context, r *vfs.Resource) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	tag, err := c.db.Exec(ctx, c.q.updateResource,
		r.ID, r.Type, r.Flags, r.OwnerID, r.GroupID, r.ProjectID, r.AccessFlags,
		int(r.State), r.LockedBy, r.LauncherType, r.LauncherClass, r.ModifiedAt,
		r.ModifiedBy, r.Size, r.LockedInProject)
	if err != nil {
		return handlePostgresError("update resource", err)
	}
	return affectedOne(tag)
}

func (c *conn) UpdateState(ctx context.Context, id uuid.UUID, state vfs.State, lockedBy uuid.UUID) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	tag, err := c.db.Exec(ctx, c.q.updateState, id, int(state), lockedBy)
	if err != nil {
		return handlePostgresError("update resource state", err)
	}
	return affectedOne(tag)
}

func (c *conn) UpdatePath(ctx context.Context, id uuid.UUID, path string, modifiedBy uuid.UUID) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	tag, err := c.db.Exec(ctx, c.q.updatePath, id, path, modifiedBy)
	if err != nil {
		return handlePostgresError("update resource path", err)
	}
	return affectedOne(tag)
}

func (c *conn) UpdateFlags(ctx context.Context, serial int64, flags int) (int64, error) {
	if err := c.checkMutable(); err != nil {
		return 0, err
	}
	tag, err := c.db.Exec(ctx, c.q.updateFlags, serial, flags)
	if err != nil {
		return 0, handlePostgresError("update resource flags", err)
	}
	return tag.RowsAffected(), nil
}

func (c *conn) UpdateAllFlags(ctx context.Context, flags int) (int64, error) {
	if err := c.checkMutable(); err != nil {
		return 0, err
	}
	tag, err := c.db.Exec(ctx, c.q.updateAllFlags, flags)
	if err != nil {
		return 0, handlePostgresError("update all resource flags", err)
	}
	return tag.RowsAffected(), nil
}

func (c *conn) DeleteResource(ctx context.Context, id uuid.UUID) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	tag, err := c.db.Exec(ctx, c.q.deleteResource, id)
	if err != nil {
		return handlePostgresError("delete resource", err)
	}
	return affectedOne(tag)
}
