package postgres

import (
	"context"

	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Project membership

func (c *conn) ProjectResource(ctx context.Context, projectID int, path string) (*vfs.ProjectResource, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	var pr vfs.ProjectResource
	if err := c.db.QueryRow(ctx, c.q.projectResource, projectID, path).Scan(&pr.ProjectID, &pr.Path); err != nil {
		return nil, handlePostgresError("read project resource", err)
	}
	return &pr, nil
}

func (c *conn) ProjectResources(ctx context.Context, projectID int) ([]vfs.ProjectResource, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.proj == vfs.ProjectionBackup {
		return nil, nil
	}
	return c.projectResourceRows(ctx, "list project resources", c.q.projectResourcesOf, projectID)
}

func (c *conn) projectResourceRows(ctx context.Context, op, query string, args ...any) ([]vfs.ProjectResource, error) {
	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError(op, err)
	}
	defer rows.Close()

	var out []vfs.ProjectResource
	for rows.Next() {
		var pr vfs.ProjectResource
		if err := rows.Scan(&pr.ProjectID, &pr.Path); err != nil {
			return nil, handlePostgresError(op, err)
		}
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError(op, err)
	}
	return out, nil
}

func (c *conn) InsertProjectResource(ctx context.Context, pr vfs.ProjectResource) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.insertProjectResource, pr.ProjectID, pr.Path); err != nil {
		return handlePostgresError("insert project resource", err)
	}
	return nil
}

func (c *conn) DeleteProjectResource(ctx context.Context, projectID int, path string) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.deleteProjectResource, projectID, path); err != nil {
		return handlePostgresError("delete project resource", err)
	}
	return nil
}

func (c *conn) DeleteProjectResources(ctx context.Context, projectID int) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.deleteProjectResources, projectID); err != nil {
		return handlePostgresError("delete project resources", err)
	}
	return nil
}
