package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

// History operations. Rows are only ever inserted.

func scanBackup(row pgx.Row) (*vfs.BackupResource, error) {
	var (
		b     vfs.BackupResource
		state int
	)
	r := &b.Resource
	err := row.Scan(
		&r.Serial, &r.ID, &r.ParentID, &r.ContentID, &r.Path, &r.Type, &r.Flags,
		&r.OwnerID, &r.GroupID, &r.ProjectID, &r.AccessFlags, &state, &r.LockedBy,
		&r.LauncherType, &r.LauncherClass, &r.CreatedAt, &r.ModifiedAt, &r.ModifiedBy,
		&r.Size, &r.LockedInProject,
		&b.VersionID, &b.OwnerName, &b.GroupName, &b.ModifiedByName)
	if err != nil {
		return nil, err
	}
	if r.State, err = vfs.ParseState(state); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *conn) BackupResource(ctx context.Context, version int, path string) (*vfs.BackupResource, error) {
	if err := c.checkBackup(); err != nil {
		return nil, err
	}
	b, err := scanBackup(c.db.QueryRow(ctx, c.q.backupResource, version, path))
	if err != nil {
		return nil, handlePostgresError("read backup resource", err)
	}
	return b, nil
}

func (c *conn) BackupResources(ctx context.Context, path string) ([]*vfs.BackupResource, error) {
	if err := c.checkBackup(); err != nil {
		return nil, err
	}
	rows, err := c.db.Query(ctx, c.q.backupResources, path)
	if err != nil {
		return nil, handlePostgresError("list backup resources", err)
	}
	defer rows.Close()

	var out []*vfs.BackupResource
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, handlePostgresError("list backup resources", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list backup resources", err)
	}
	return out, nil
}

func (c *conn) InsertBackupResource(ctx context.Context, b *vfs.BackupResource) error {
	if err := c.checkBackup(); err != nil {
		return err
	}
	r := &b.Resource
	err := c.db.QueryRow(ctx, c.q.insertBackupResource,
		r.ID, r.ParentID, r.ContentID, r.Path, r.Type, r.Flags, r.OwnerID, r.GroupID,
		r.ProjectID, r.AccessFlags, int(r.State), r.LockedBy, r.LauncherType, r.LauncherClass,
		r.CreatedAt, r.ModifiedAt, r.ModifiedBy, r.Size, r.LockedInProject,
		b.VersionID, b.OwnerName, b.GroupName, b.ModifiedByName,
	).Scan(&r.Serial)
	if err != nil {
		return handlePostgresError("insert backup resource", err)
	}
	return nil
}

func (c *conn) BackupProjectResources(ctx context.Context, version int) ([]vfs.ProjectResource, error) {
	if err := c.checkBackup(); err != nil {
		return nil, err
	}
	return c.projectResourceRows(ctx, "list backup project resources", c.q.backupProjectResourcesOf, version)
}

func (c *conn) InsertBackupProjectResource(ctx context.Context, version int, pr vfs.ProjectResource) error {
	if err := c.checkBackup(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.insertBackupProjectResources, version, pr.ProjectID, pr.Path); err != nil {
		return handlePostgresError("insert backup project resource", err)
	}
	return nil
}
