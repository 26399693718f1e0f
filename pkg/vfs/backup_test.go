package vfs_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/vfstest"
)

func snapshot(f *vfstest.Fixture, version int, path string, content string) *vfs.BackupResource {
	r := &vfs.BackupResource{
		Resource: vfs.Resource{
			ID:         uuid.New(),
			ContentID:  uuid.New(),
			Path:       path,
			Type:       3,
			OwnerID:    f.User.ID,
			State:      vfs.StateUnchanged,
			CreatedAt:  f.Clock.Now(),
			ModifiedAt: f.Clock.Now(),
			ModifiedBy: f.User.ID,
		},
		VersionID:      version,
		OwnerName:      f.User.Name,
		GroupName:      "editors",
		ModifiedByName: f.User.Name,
	}
	if content != "" {
		r.Content = []byte(content)
		r.Size = len(content)
	}
	return r
}

func TestBackupHistory(t *testing.T) {
	f := vfstest.NewFixture(t)
	ctx := context.Background()
	rec := f.Store.Recorder()
	archive := f.Store.Backup()

	v1 := snapshot(f, 1, "/a.html", "first")
	v2 := snapshot(f, 2, "/a.html", "second")
	v2.ContentID = v1.ContentID
	require.NoError(t, rec.Record(ctx, v1))
	require.NoError(t, rec.Record(ctx, v2))
	require.NoError(t, rec.Record(ctx, snapshot(f, 1, "/folder/", "")))

	t.Run("read file with content", func(t *testing.T) {
		got, err := archive.ReadFile(ctx, 1, "/a.html")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got.Content)
		assert.Equal(t, "editors", got.GroupName)
		assert.Equal(t, f.User.Name, got.OwnerName)

		got, err = archive.ReadFile(ctx, 2, "/a.html")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got.Content)
	})

	t.Run("header has no content", func(t *testing.T) {
		got, err := archive.ReadFileHeader(ctx, 2, "/a.html")
		require.NoError(t, err)
		assert.Nil(t, got.Content)
		assert.Equal(t, 2, got.VersionID)
		assert.Equal(t, len("second"), got.Size)
	})

	t.Run("all headers newest first", func(t *testing.T) {
		headers, err := archive.AllHeaders(ctx, "/a.html")
		require.NoError(t, err)
		require.Len(t, headers, 2)
		assert.Equal(t, 2, headers[0].VersionID)
		assert.Equal(t, 1, headers[1].VersionID)

		headers, err = archive.AllHeaders(ctx, "/never.html")
		require.NoError(t, err)
		assert.Empty(t, headers)
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := archive.ReadFile(ctx, 3, "/a.html")
		assert.ErrorIs(t, err, vfs.ErrNotFound)
	})

	t.Run("folders carry no content", func(t *testing.T) {
		_, err := archive.ReadFile(ctx, 1, "/folder/")
		assert.ErrorIs(t, err, vfs.ErrNotFound)
		header, err := archive.ReadFileHeader(ctx, 1, "/folder/")
		require.NoError(t, err)
		assert.True(t, header.IsFolder())
	})

	t.Run("recorded rows are immutable", func(t *testing.T) {
		err := rec.Record(ctx, snapshot(f, 1, "/a.html", "rewrite"))
		assert.ErrorIs(t, err, vfs.ErrDuplicateName)

		got, err := archive.ReadFile(ctx, 1, "/a.html")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got.Content)

		assert.ErrorIs(t, f.Store.Content().Replace(ctx, vfs.ProjectionBackup, v1.ContentID, []byte("x")),
			vfs.ErrReadOnlyProjection)
	})

	t.Run("bad path", func(t *testing.T) {
		assert.ErrorIs(t, rec.Record(ctx, snapshot(f, 1, "relative", "x")), vfs.ErrBadName)
	})

	t.Run("history is not visible to projects", func(t *testing.T) {
		_, err := f.Store.Resources().Read(ctx, offline, "/a.html")
		assert.ErrorIs(t, err, vfs.ErrNotFound)
		_, err = f.Store.Resources().Read(ctx, online, "/a.html")
		assert.ErrorIs(t, err, vfs.ErrNotFound)
	})

	assert.Zero(t, f.Provider.Outstanding())
}

func TestBackupProjectResources(t *testing.T) {
	f := vfstest.NewFixture(t)
	ctx := context.Background()

	require.NoError(t, f.Store.Recorder().RecordProjectResources(ctx, 5, offline, []string{"/", "/site/"}))

	prs, err := f.Store.Backup().ProjectResources(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []vfs.ProjectResource{
		{ProjectID: offline, Path: "/"},
		{ProjectID: offline, Path: "/site/"},
	}, prs)

	prs, err = f.Store.Backup().ProjectResources(ctx, 6)
	require.NoError(t, err)
	assert.Empty(t, prs)

	err = f.Store.Recorder().RecordProjectResources(ctx, 5, offline, []string{"/site/"})
	assert.ErrorIs(t, err, vfs.ErrDuplicateName)
}
