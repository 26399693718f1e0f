package vfs

import (
	"context"
	"errors"
	"fmt"
)

// BackupArchive reads point-in-time versions from the backup projection.
type BackupArchive struct {
	s *Store
}

// ReadFile returns the file at path as of version, with its content.
func (b *BackupArchive) ReadFile(ctx context.Context, version int, path string) (*BackupResource, error) {
	return b.read(ctx, "backup.read_file", version, path, true)
}

// ReadFileHeader returns the file at path as of version, without content.
func (b *BackupArchive) ReadFileHeader(ctx context.Context, version int, path string) (*BackupResource, error) {
	return b.read(ctx, "backup.read_file_header", version, path, false)
}

// AllHeaders returns every archived version of path, newest first.
func (b *BackupArchive) AllHeaders(ctx context.Context, path string) ([]*BackupResource, error) {
	route := b.s.router.Backup()
	var out []*BackupResource
	err := b.s.withConn(ctx, route.Projection, "backup.all_headers", func(conn Conn) error {
		var err error
		out, err = conn.BackupResources(ctx, path)
		return err
	})
	if err != nil {
		return nil, &ResourceError{Op: "read history", Path: path, Err: err}
	}
	return out, nil
}

// ProjectResources returns the project membership recorded with version.
func (b *BackupArchive) ProjectResources(ctx context.Context, version int) ([]ProjectResource, error) {
	route := b.s.router.Backup()
	var out []ProjectResource
	err := b.s.withConn(ctx, route.Projection, "backup.project_resources", func(conn Conn) error {
		var err error
		out, err = conn.BackupProjectResources(ctx, version)
		return err
	})
	return out, err
}

func (b *BackupArchive) read(ctx context.Context, op string, version int, path string, withContent bool) (*BackupResource, error) {
	route := b.s.router.Backup()
	var out *BackupResource
	err := b.s.withConn(ctx, route.Projection, op, func(conn Conn) error {
		r, err := conn.BackupResource(ctx, version, path)
		if err != nil {
			return err
		}
		if withContent {
			if r.IsFolder() {
				return ErrNotFound
			}
			if r.Content, err = b.s.content.get(ctx, conn, route.Projection, r.ContentID, version); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, &ResourceError{Op: fmt.Sprintf("read version %d", version), Path: path, Err: err}
	}
	return out, nil
}

// BackupRecorder appends snapshots to the backup projection. It is the write
// side used by the snapshot workflow; recorded rows are never changed.
type BackupRecorder struct {
	s *Store
}

// Record archives r under r.VersionID. Files need r.Content. Recording the
// same version and path twice fails with ErrDuplicateName.
func (rec *BackupRecorder) Record(ctx context.Context, r *BackupResource) error {
	if err := ValidatePath(r.Path); err != nil {
		return &ResourceError{Op: "record", Path: r.Path, Err: err}
	}
	p := ProjectionBackup
	err := rec.s.withConn(ctx, p, "backup.record", func(conn Conn) error {
		_, err := conn.BackupResource(ctx, r.VersionID, r.Path)
		if err == nil {
			return ErrDuplicateName
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if r.IsFile() {
			if err := rec.s.content.put(ctx, conn, p, r.ContentID, r.Content, r.VersionID); err != nil {
				return err
			}
		}
		return conn.InsertBackupResource(ctx, r)
	})
	if err != nil {
		return &ResourceError{Op: "record", Path: r.Path, ID: r.ID, Err: err}
	}
	return nil
}

// RecordProjectResources archives the membership rows of a project under version.
func (rec *BackupRecorder) RecordProjectResources(ctx context.Context, version int, projectID int, paths []string) error {
	return rec.s.withConn(ctx, ProjectionBackup, "backup.record_project_resources", func(conn Conn) error {
		for _, path := range paths {
			if err := conn.InsertBackupProjectResource(ctx, version, ProjectResource{ProjectID: projectID, Path: path}); err != nil {
				return err
			}
		}
		return nil
	})
}
