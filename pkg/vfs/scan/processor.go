package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tendant/simple-vfs/pkg/vfs"
)

// ResourceProcessor processes individual resources.
// Return an error to mark the resource as failed; the scan continues.
type ResourceProcessor interface {
	Process(ctx context.Context, projectID int, res *vfs.Resource) error
}

// ContentCheck verifies that every file has a readable payload.
type ContentCheck struct {
	Store *vfs.Store
}

func (c ContentCheck) Process(ctx context.Context, projectID int, res *vfs.Resource) error {
	if res.IsFolder() {
		return nil
	}
	p := c.Store.Router().Route(projectID).Projection
	data, err := c.Store.Content().Get(ctx, p, res.ContentID)
	if err != nil {
		return fmt.Errorf("content %s: %w", res.ContentID, err)
	}
	if len(data) != res.Size {
		return fmt.Errorf("content %s: size %d, recorded %d", res.ContentID, len(data), res.Size)
	}
	return nil
}

// TemporaryPurge removes the editor temporaries of every file it is given.
// Temporaries themselves are skipped.
type TemporaryPurge struct {
	Store *vfs.Store
}

func (t TemporaryPurge) Process(ctx context.Context, projectID int, res *vfs.Resource) error {
	if res.IsFolder() || strings.HasPrefix(res.Name(), vfs.TempFilePrefix) {
		return nil
	}
	return t.Store.Resources().PurgeTemporaries(ctx, res)
}

// funcProcessor adapts a function to the ResourceProcessor interface.
type funcProcessor func(ctx context.Context, projectID int, res *vfs.Resource) error

func (f funcProcessor) Process(ctx context.Context, projectID int, res *vfs.Resource) error {
	return f(ctx, projectID, res)
}

// Chain runs processors in order and stops at the first error.
func Chain(processors ...ResourceProcessor) ResourceProcessor {
	return funcProcessor(func(ctx context.Context, projectID int, res *vfs.Resource) error {
		for _, p := range processors {
			if err := p.Process(ctx, projectID, res); err != nil {
				return err
			}
		}
		return nil
	})
}

// Counter tallies resources by state and type.
type Counter struct {
	mu      sync.Mutex
	Total   int64
	ByState map[vfs.State]int64
	ByType  map[int]int64
	Bytes   int64
}

func NewCounter() *Counter {
	return &Counter{
		ByState: make(map[vfs.State]int64),
		ByType:  make(map[int]int64),
	}
}

func (c *Counter) Process(ctx context.Context, projectID int, res *vfs.Resource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Total++
	c.ByState[res.State]++
	c.ByType[res.Type]++
	if res.IsFile() {
		c.Bytes += int64(res.Size)
	}
	return nil
}
