// Package vfstest provides fixtures for tests of code built on package vfs.
package vfstest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/repo/memory"
)

// OfflineProject is the editing project used by fixtures.
const OfflineProject = 2

// Fixture is a store over in-memory tables with a stub clock.
type Fixture struct {
	Store    *vfs.Store
	Provider *memory.Provider
	Clock    *StubClock
	User     vfs.User
	Root     *vfs.Resource
}

// NewFixture creates a store with the root folder already created in the
// offline projection. Extra options are applied after the defaults.
func NewFixture(t *testing.T, opts ...vfs.Option) *Fixture {
	t.Helper()

	f := &Fixture{
		Provider: memory.NewProvider(),
		Clock:    FixedClock(),
		User:     vfs.User{ID: uuid.New(), Name: "editor", DefaultGroupID: uuid.New()},
	}
	options := append([]vfs.Option{
		vfs.WithConnectionProvider(f.Provider),
		vfs.WithIdAllocator(memory.NewIdAllocator()),
		vfs.WithClock(f.Clock),
	}, opts...)

	store, err := vfs.New(options...)
	require.NoError(t, err)
	f.Store = store

	f.Root, err = store.Resources().Create(context.Background(), vfs.CreateRequest{
		ProjectID: OfflineProject,
		Resource:  vfs.Resource{Path: vfs.RootPath, Type: vfs.TypeFolder},
		User:      f.User,
	})
	require.NoError(t, err)
	return f
}

// Folder creates a folder below parent in the offline project.
func (f *Fixture) Folder(t *testing.T, parent *vfs.Resource, path string) *vfs.Resource {
	t.Helper()
	r, err := f.Store.Resources().Create(context.Background(), vfs.CreateRequest{
		ProjectID: OfflineProject,
		ParentID:  parent.ID,
		Resource:  vfs.Resource{Path: path, Type: vfs.TypeFolder},
		User:      f.User,
	})
	require.NoError(t, err)
	return r
}

// File creates a file below parent in the offline project.
func (f *Fixture) File(t *testing.T, parent *vfs.Resource, path string, resourceType int, content []byte) *vfs.Resource {
	t.Helper()
	r, err := f.Store.Resources().Create(context.Background(), vfs.CreateRequest{
		ProjectID: OfflineProject,
		ParentID:  parent.ID,
		Resource:  vfs.Resource{Path: path, Type: resourceType},
		Content:   content,
		User:      f.User,
	})
	require.NoError(t, err)
	return r
}
