package postgres

import (
	"context"

	"github.com/tendant/simple-vfs/pkg/vfs"
)

var _ vfs.IdAllocator = (*IdAllocator)(nil)

const nextID = `
	INSERT INTO vfs_sequences (table_key, value) VALUES ($1, 1)
	ON CONFLICT (table_key) DO UPDATE SET value = vfs_sequences.value + 1
	RETURNING value`

// IdAllocator keeps one counter row per table key in vfs_sequences.
type IdAllocator struct {
	db DBTX
}

// NewIdAllocator creates an allocator backed by db
func NewIdAllocator(db DBTX) *IdAllocator {
	return &IdAllocator{db: db}
}

func (a *IdAllocator) Next(ctx context.Context, tableKey string) (int64, error) {
	var id int64
	if err := a.db.QueryRow(ctx, nextID, tableKey).Scan(&id); err != nil {
		return 0, handlePostgresError("allocate id", err)
	}
	return id, nil
}
