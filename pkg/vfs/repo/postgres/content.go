package postgres

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Content operations. Payloads below vfs.InlineContentThreshold are kept in
// the bytea column; larger ones are streamed into a large object.

func (c *conn) Content(ctx context.Context, contentID uuid.UUID, version int) ([]byte, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	var (
		data []byte
		oid  *uint32
	)
	err := c.db.QueryRow(ctx, c.q.selectContent, contentID, version).Scan(&data, &oid)
	if err != nil {
		return nil, handlePostgresError("read content", err)
	}
	if oid == nil {
		return data, nil
	}

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, handlePostgresError("read content", err)
	}
	defer tx.Rollback(ctx)

	los := tx.LargeObjects()
	obj, err := los.Open(ctx, *oid, pgx.LargeObjectModeRead)
	if err != nil {
		return nil, handlePostgresError("open content object", err)
	}
	data, err = io.ReadAll(obj)
	obj.Close()
	if err != nil {
		return nil, handlePostgresError("read content object", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, handlePostgresError("read content", err)
	}
	return data, nil
}

func (c *conn) InsertContent(ctx context.Context, contentID uuid.UUID, version int, data []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.proj != vfs.ProjectionBackup {
		version = 0
	}
	if len(data) < vfs.InlineContentThreshold {
		if _, err := c.db.Exec(ctx, c.q.insertContent, contentID, version, data, nil); err != nil {
			return handlePostgresError("insert content", err)
		}
		return nil
	}

	return c.inTx(ctx, "insert content", func(tx pgx.Tx) error {
		oid, err := writeObject(ctx, tx, data)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, c.q.insertContent, contentID, version, nil, oid)
		return err
	})
}

func (c *conn) UpdateContent(ctx context.Context, contentID uuid.UUID, data []byte) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	return c.inTx(ctx, "update content", func(tx pgx.Tx) error {
		var old *uint32
		if err := tx.QueryRow(ctx, c.q.selectContentOID, contentID).Scan(&old); err != nil {
			return err
		}
		if old != nil {
			if err := unlink(ctx, tx, *old); err != nil {
				return err
			}
		}

		var (
			inline []byte
			oid    *uint32
		)
		if len(data) < vfs.InlineContentThreshold {
			inline = data
		} else {
			created, err := writeObject(ctx, tx, data)
			if err != nil {
				return err
			}
			oid = &created
		}
		tag, err := tx.Exec(ctx, c.q.updateContent, contentID, inline, oid)
		if err != nil {
			return err
		}
		return affectedOne(tag)
	})
}

func (c *conn) DeleteContent(ctx context.Context, contentID uuid.UUID) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	return c.inTx(ctx, "delete content", func(tx pgx.Tx) error {
		var oid *uint32
		if err := tx.QueryRow(ctx, c.q.deleteContent, contentID).Scan(&oid); err != nil {
			return err
		}
		if oid != nil {
			return unlink(ctx, tx, *oid)
		}
		return nil
	})
}

func (c *conn) inTx(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return handlePostgresError(op, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return handlePostgresError(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return handlePostgresError(op, err)
	}
	return nil
}

func writeObject(ctx context.Context, tx pgx.Tx, data []byte) (uint32, error) {
	los := tx.LargeObjects()
	oid, err := los.Create(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("create large object: %w", err)
	}
	obj, err := los.Open(ctx, oid, pgx.LargeObjectModeWrite)
	if err != nil {
		return 0, fmt.Errorf("open large object: %w", err)
	}
	defer obj.Close()

	if _, err := obj.Write(data); err != nil {
		return 0, fmt.Errorf("write large object: %w", err)
	}
	return oid, nil
}

func unlink(ctx context.Context, tx pgx.Tx, oid uint32) error {
	los := tx.LargeObjects()
	return los.Unlink(ctx, oid)
}
