package vfs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ContentStore keeps file payloads apart from resource metadata, keyed by
// content id. Payloads live in the projection's content rows unless the store
// was configured with a BlobStore.
type ContentStore struct {
	s *Store
}

// Get returns the payload of contentID in projection p.
func (c *ContentStore) Get(ctx context.Context, p Projection, contentID uuid.UUID) ([]byte, error) {
	var data []byte
	err := c.s.withConn(ctx, p, "content.get", func(conn Conn) error {
		var err error
		data, err = c.get(ctx, conn, p, contentID, 0)
		return err
	})
	return data, err
}

// GetVersion returns one historical payload from the backup projection.
func (c *ContentStore) GetVersion(ctx context.Context, contentID uuid.UUID, version int) ([]byte, error) {
	var data []byte
	err := c.s.withConn(ctx, ProjectionBackup, "content.get_version", func(conn Conn) error {
		var err error
		data, err = c.get(ctx, conn, ProjectionBackup, contentID, version)
		return err
	})
	return data, err
}

// Put stores a new payload. version is only kept by the backup projection.
func (c *ContentStore) Put(ctx context.Context, p Projection, contentID uuid.UUID, data []byte, version int) error {
	return c.s.withConn(ctx, p, "content.put", func(conn Conn) error {
		return c.put(ctx, conn, p, contentID, data, version)
	})
}

// Replace overwrites the payload of an existing file.
func (c *ContentStore) Replace(ctx context.Context, p Projection, contentID uuid.UUID, data []byte) error {
	return c.s.withConn(ctx, p, "content.replace", func(conn Conn) error {
		return c.replace(ctx, conn, p, contentID, data)
	})
}

// Delete removes the payload of contentID.
func (c *ContentStore) Delete(ctx context.Context, p Projection, contentID uuid.UUID) error {
	return c.s.withConn(ctx, p, "content.delete", func(conn Conn) error {
		return c.delete(ctx, conn, p, contentID)
	})
}

func (c *ContentStore) get(ctx context.Context, conn Conn, p Projection, contentID uuid.UUID, version int) ([]byte, error) {
	if p != ProjectionBackup {
		version = 0
	}
	if c.s.blobs == nil {
		return conn.Content(ctx, contentID, version)
	}
	rc, err := c.s.blobs.Download(ctx, blobKey(p, contentID, version))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (c *ContentStore) put(ctx context.Context, conn Conn, p Projection, contentID uuid.UUID, data []byte, version int) error {
	if len(data) == 0 {
		return ErrEmptyContent
	}
	if p != ProjectionBackup {
		version = 0
	}
	if c.s.blobs == nil {
		return conn.InsertContent(ctx, contentID, version, data)
	}
	return c.s.blobs.Upload(ctx, blobKey(p, contentID, version), bytes.NewReader(data))
}

func (c *ContentStore) replace(ctx context.Context, conn Conn, p Projection, contentID uuid.UUID, data []byte) error {
	if !p.Mutable() {
		return ErrReadOnlyProjection
	}
	if len(data) == 0 {
		return ErrEmptyContent
	}
	if c.s.blobs == nil {
		return conn.UpdateContent(ctx, contentID, data)
	}
	return c.s.blobs.Upload(ctx, blobKey(p, contentID, 0), bytes.NewReader(data))
}

func (c *ContentStore) delete(ctx context.Context, conn Conn, p Projection, contentID uuid.UUID) error {
	if !p.Mutable() {
		return ErrReadOnlyProjection
	}
	if c.s.blobs == nil {
		return conn.DeleteContent(ctx, contentID)
	}
	return c.s.blobs.Delete(ctx, blobKey(p, contentID, 0))
}

// blobKey lays out payloads as <projection>/<content id>, with a version
// suffix for history entries.
func blobKey(p Projection, contentID uuid.UUID, version int) string {
	if p == ProjectionBackup {
		return fmt.Sprintf("%s/%s/v%d", p, contentID, version)
	}
	return fmt.Sprintf("%s/%s", p, contentID)
}
