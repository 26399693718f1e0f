package vfs_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs"
	memorystorage "github.com/tendant/simple-vfs/pkg/vfs/storage/memory"
	"github.com/tendant/simple-vfs/pkg/vfs/vfstest"
)

func contentModes() map[string]func() []vfs.Option {
	return map[string]func() []vfs.Option{
		"database": func() []vfs.Option { return nil },
		"blob": func() []vfs.Option {
			return []vfs.Option{vfs.WithBlobStore(memorystorage.New())}
		},
	}
}

func TestContentRoundTrip(t *testing.T) {
	sizes := []int{1, vfs.InlineContentThreshold - 1, vfs.InlineContentThreshold, 5000}

	for mode, opts := range contentModes() {
		for _, size := range sizes {
			t.Run(fmt.Sprintf("%s/%d bytes", mode, size), func(t *testing.T) {
				f := vfstest.NewFixture(t, opts()...)
				ctx := context.Background()
				data := bytes.Repeat([]byte{'x'}, size)
				data[size-1] = 'z'

				r := f.File(t, f.Root, "/data.bin", 1, data)
				assert.Equal(t, size, r.Size)

				got, err := f.Store.Content().Get(ctx, vfs.ProjectionOffline, r.ContentID)
				require.NoError(t, err)
				assert.Equal(t, data, got)

				file, err := f.Store.Resources().ReadFile(ctx, offline, "/data.bin")
				require.NoError(t, err)
				assert.Equal(t, data, file.Content)
			})
		}
	}
}

func TestContentStore(t *testing.T) {
	for mode, opts := range contentModes() {
		t.Run(mode, func(t *testing.T) {
			f := vfstest.NewFixture(t, opts()...)
			ctx := context.Background()
			cs := f.Store.Content()
			id := uuid.New()

			t.Run("empty payload", func(t *testing.T) {
				err := cs.Put(ctx, vfs.ProjectionOffline, id, nil, 0)
				assert.ErrorIs(t, err, vfs.ErrEmptyContent)
				err = cs.Put(ctx, vfs.ProjectionOffline, id, []byte{}, 0)
				assert.ErrorIs(t, err, vfs.ErrEmptyContent)
			})

			t.Run("missing payload", func(t *testing.T) {
				_, err := cs.Get(ctx, vfs.ProjectionOnline, uuid.New())
				assert.ErrorIs(t, err, vfs.ErrNotFound)
				assert.False(t, errors.Is(err, vfs.ErrStorage))
			})

			t.Run("replace", func(t *testing.T) {
				require.NoError(t, cs.Put(ctx, vfs.ProjectionOffline, id, []byte("v1"), 0))
				require.NoError(t, cs.Replace(ctx, vfs.ProjectionOffline, id, []byte("version two")))

				got, err := cs.Get(ctx, vfs.ProjectionOffline, id)
				require.NoError(t, err)
				assert.Equal(t, []byte("version two"), got)

				assert.ErrorIs(t, cs.Replace(ctx, vfs.ProjectionOffline, id, nil), vfs.ErrEmptyContent)
			})

			t.Run("projections are separate", func(t *testing.T) {
				_, err := cs.Get(ctx, vfs.ProjectionOnline, id)
				assert.ErrorIs(t, err, vfs.ErrNotFound)
			})

			t.Run("delete", func(t *testing.T) {
				require.NoError(t, cs.Delete(ctx, vfs.ProjectionOffline, id))
				_, err := cs.Get(ctx, vfs.ProjectionOffline, id)
				assert.ErrorIs(t, err, vfs.ErrNotFound)
			})

			t.Run("versions are kept by the backup projection", func(t *testing.T) {
				hid := uuid.New()
				require.NoError(t, cs.Put(ctx, vfs.ProjectionBackup, hid, []byte("first"), 1))
				require.NoError(t, cs.Put(ctx, vfs.ProjectionBackup, hid, []byte("second"), 2))

				v1, err := cs.GetVersion(ctx, hid, 1)
				require.NoError(t, err)
				assert.Equal(t, []byte("first"), v1)
				v2, err := cs.GetVersion(ctx, hid, 2)
				require.NoError(t, err)
				assert.Equal(t, []byte("second"), v2)

				_, err = cs.GetVersion(ctx, hid, 3)
				assert.ErrorIs(t, err, vfs.ErrNotFound)
			})

			t.Run("backup payloads are read-only", func(t *testing.T) {
				hid := uuid.New()
				require.NoError(t, cs.Put(ctx, vfs.ProjectionBackup, hid, []byte("frozen"), 1))
				assert.ErrorIs(t, cs.Replace(ctx, vfs.ProjectionBackup, hid, []byte("x")), vfs.ErrReadOnlyProjection)
				assert.ErrorIs(t, cs.Delete(ctx, vfs.ProjectionBackup, hid), vfs.ErrReadOnlyProjection)
			})

			assert.Zero(t, f.Provider.Outstanding())
		})
	}
}

func TestBlobKeys(t *testing.T) {
	blobs := memorystorage.New()
	f := vfstest.NewFixture(t, vfs.WithBlobStore(blobs))
	ctx := context.Background()

	r := f.File(t, f.Root, "/a.txt", 1, []byte("a"))
	require.NoError(t, f.Store.Content().Put(ctx, vfs.ProjectionBackup, r.ContentID, []byte("a"), 4))

	assert.ElementsMatch(t, []string{
		"offline/" + r.ContentID.String(),
		"backup/" + r.ContentID.String() + "/v4",
	}, blobs.Keys())
}
