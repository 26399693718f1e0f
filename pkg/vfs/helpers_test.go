package vfs_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/repo/memory"
	"github.com/tendant/simple-vfs/pkg/vfs/vfstest"
)

const (
	offline = vfstest.OfflineProject
	online  = vfs.DefaultOnlineProjectID
)

var errBackend = errors.New("backend unavailable")

// wrappingProvider hands out memory connections passed through wrap.
type wrappingProvider struct {
	*memory.Provider
	wrap func(vfs.Conn) vfs.Conn
}

func (p *wrappingProvider) Acquire(ctx context.Context, proj vfs.Projection) (vfs.Conn, error) {
	c, err := p.Provider.Acquire(ctx, proj)
	if err != nil {
		return nil, err
	}
	return p.wrap(c), nil
}

// duplicatingConn returns every listed row twice, the way a bad join would.
type duplicatingConn struct {
	vfs.Conn
}

func (c duplicatingConn) Resources(ctx context.Context, f vfs.ResourceFilter) ([]*vfs.Resource, error) {
	rows, err := c.Conn.Resources(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]*vfs.Resource, 0, 2*len(rows))
	for _, r := range rows {
		out = append(out, r, r.Clone())
	}
	return out, nil
}

// brokenLookupConn fails path lookups with a raw backend error.
type brokenLookupConn struct {
	vfs.Conn
}

func (c brokenLookupConn) ResourceByPath(ctx context.Context, path string) (*vfs.Resource, error) {
	return nil, errBackend
}

// flakyAllocator fails for the listed table keys until healed.
type flakyAllocator struct {
	mu      sync.Mutex
	next    *memory.IdAllocator
	failFor map[string]bool
}

func newFlakyAllocator(keys ...string) *flakyAllocator {
	a := &flakyAllocator{next: memory.NewIdAllocator(), failFor: make(map[string]bool)}
	for _, k := range keys {
		a.failFor[k] = true
	}
	return a
}

func (a *flakyAllocator) Next(ctx context.Context, tableKey string) (int64, error) {
	a.mu.Lock()
	fail := a.failFor[tableKey]
	a.mu.Unlock()
	if fail {
		return 0, errBackend
	}
	return a.next.Next(ctx, tableKey)
}

func (a *flakyAllocator) heal() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failFor = make(map[string]bool)
}

// failingBlobStore rejects every call.
type failingBlobStore struct{}

func (failingBlobStore) Upload(ctx context.Context, key string, r io.Reader) error { return errBackend }

func (failingBlobStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errBackend
}

func (failingBlobStore) Delete(ctx context.Context, key string) error { return errBackend }

// bufferLogger captures log output for assertions.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// onlineFile replicates a published file into the online projection.
func onlineFile(t *testing.T, f *vfstest.Fixture, path string, state vfs.State) *vfs.Resource {
	t.Helper()
	r, err := f.Store.Resources().Create(context.Background(), vfs.CreateRequest{
		ProjectID: online,
		Resource: vfs.Resource{
			Path:       path,
			Type:       1,
			State:      state,
			ProjectID:  offline,
			CreatedAt:  f.Clock.Now().Add(-48 * time.Hour),
			ModifiedAt: f.Clock.Now().Add(-24 * time.Hour),
			ModifiedBy: f.User.ID,
		},
		Content: []byte("published"),
		User:    f.User,
	})
	require.NoError(t, err)
	return r
}
