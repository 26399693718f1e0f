package scan_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/scan"
	"github.com/tendant/simple-vfs/pkg/vfs/vfstest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScan(t *testing.T) {
	f := vfstest.NewFixture(t)
	ctx := context.Background()
	site := f.Folder(t, f.Root, "/site/")
	for _, p := range []string{"/site/a.html", "/site/b.html", "/site/c.html"} {
		f.File(t, site, p, 3, []byte("x"))
	}
	s := scan.New(f.Store, quietLogger())

	t.Run("processor is required", func(t *testing.T) {
		_, err := s.Scan(ctx, scan.Options{ProjectID: vfstest.OfflineProject})
		assert.Error(t, err)
	})

	t.Run("failures are recorded and the scan goes on", func(t *testing.T) {
		var progress [][2]int64
		result, err := s.Scan(ctx, scan.Options{
			ProjectID: vfstest.OfflineProject,
			Filter:    vfs.ResourceFilter{PathPrefix: "/site/", Kind: vfs.KindFile},
			BatchSize: 2,
			Processor: failOn("/site/b.html"),
			OnProgress: func(processed, total int64) {
				progress = append(progress, [2]int64{processed, total})
			},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.TotalFound)
		assert.Equal(t, int64(2), result.TotalProcessed)
		assert.Equal(t, int64(1), result.TotalFailed)
		assert.Equal(t, []string{"/site/b.html"}, result.FailedPaths)
		assert.Equal(t, [][2]int64{{2, 3}, {3, 3}}, progress)
	})

	t.Run("dry run", func(t *testing.T) {
		result, err := s.Scan(ctx, scan.Options{ProjectID: vfstest.OfflineProject, DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, int64(5), result.TotalFound)
		assert.Equal(t, int64(5), result.TotalProcessed)
	})

	t.Run("for each", func(t *testing.T) {
		var seen []string
		result, err := s.ForEach(ctx, vfstest.OfflineProject, vfs.ResourceFilter{Kind: vfs.KindFolder},
			func(ctx context.Context, projectID int, res *vfs.Resource) error {
				seen = append(seen, res.Path)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/site/"}, seen)
		assert.Zero(t, result.TotalFailed)
	})

	t.Run("cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Scan(cancelled, scan.Options{ProjectID: vfstest.OfflineProject, DryRun: true})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestContentCheck(t *testing.T) {
	f := vfstest.NewFixture(t)
	ctx := context.Background()
	good := f.File(t, f.Root, "/good.txt", 1, []byte("good"))
	bad := f.File(t, f.Root, "/bad.txt", 1, []byte("bad"))
	require.NoError(t, f.Store.Content().Delete(ctx, vfs.ProjectionOffline, bad.ContentID))

	result, err := scan.New(f.Store, quietLogger()).Scan(ctx, scan.Options{
		ProjectID: vfstest.OfflineProject,
		Processor: scan.ContentCheck{Store: f.Store},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/bad.txt"}, result.FailedPaths)
	assert.Equal(t, int64(2), result.TotalProcessed, "root folder and %s", good.Path)
}

func TestTemporaryPurge(t *testing.T) {
	f := vfstest.NewFixture(t)
	ctx := context.Background()
	f.File(t, f.Root, "/a.html", 3, []byte("a"))
	f.File(t, f.Root, "/~a.html", 3, []byte("tmp"))
	f.File(t, f.Root, "/~a.html.2", 3, []byte("tmp"))

	result, err := scan.New(f.Store, quietLogger()).Scan(ctx, scan.Options{
		ProjectID: vfstest.OfflineProject,
		Filter:    vfs.ResourceFilter{Kind: vfs.KindFile},
		Processor: scan.TemporaryPurge{Store: f.Store},
	})
	require.NoError(t, err)
	assert.Zero(t, result.TotalFailed)

	rows, err := f.Store.Resources().ReadAll(ctx, vfstest.OfflineProject, vfs.ResourceFilter{Kind: vfs.KindFile})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/a.html", rows[0].Path)
}

func failOn(path string) scan.ResourceProcessor {
	return processorFunc(func(ctx context.Context, projectID int, res *vfs.Resource) error {
		if res.Path == path {
			return errors.New("rejected")
		}
		return nil
	})
}

type processorFunc func(ctx context.Context, projectID int, res *vfs.Resource) error

func (f processorFunc) Process(ctx context.Context, projectID int, res *vfs.Resource) error {
	return f(ctx, projectID, res)
}

func TestChainAndCounter(t *testing.T) {
	f := vfstest.NewFixture(t)
	ctx := context.Background()
	docs := f.Folder(t, f.Root, "/docs/")
	f.File(t, docs, "/docs/a.txt", 1, []byte("abc"))
	f.File(t, docs, "/docs/b.html", 3, []byte("hello"))
	f.File(t, docs, "/docs/c.html", 3, []byte("!"))

	counter := scan.NewCounter()
	var visited []string
	result, err := scan.New(f.Store, quietLogger()).Scan(ctx, scan.Options{
		ProjectID: vfstest.OfflineProject,
		Filter:    vfs.ResourceFilter{PathPrefix: "/docs/"},
		Processor: scan.Chain(
			failOn("/docs/b.html"),
			counter,
			processorFunc(func(ctx context.Context, projectID int, res *vfs.Resource) error {
				visited = append(visited, res.Path)
				return nil
			}),
		),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/docs/b.html"}, result.FailedPaths)
	assert.Equal(t, []string{"/docs/", "/docs/a.txt", "/docs/c.html"}, visited)
	assert.Equal(t, int64(3), counter.Total)
	assert.Equal(t, int64(3), counter.ByState[vfs.StateNew])
	assert.Equal(t, int64(1), counter.ByType[vfs.TypeFolder])
	assert.Equal(t, int64(1), counter.ByType[3])
	assert.Equal(t, int64(4), counter.Bytes)
}
