// Package scan runs a processor over the resources of a project.
package scan

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Scanner lists resources and processes them with the provided processor.
type Scanner struct {
	store  *vfs.Store
	logger *slog.Logger
}

// New creates a new Scanner instance.
func New(store *vfs.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, logger: logger}
}

// Options configures the scan operation.
type Options struct {
	ProjectID int

	// Filter selects the resources to process
	Filter vfs.ResourceFilter

	// Processor is required unless DryRun is set
	Processor ResourceProcessor

	// BatchSize is the number of resources between progress reports (default: 100)
	BatchSize int

	// DryRun reports what would be processed without calling the processor
	DryRun bool

	// OnProgress is called after each batch (optional)
	OnProgress func(processed, total int64)
}

// Result contains statistics about the scan operation.
type Result struct {
	TotalFound     int64
	TotalProcessed int64
	TotalFailed    int64
	FailedPaths    []string
}

// Scan lists the resources matching the filter and processes each one. A
// failing resource is recorded and the scan goes on; a cancelled context
// stops it.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{}

	if !opts.DryRun && opts.Processor == nil {
		return result, errors.New("processor is required when DryRun is false")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	rows, err := s.store.Resources().ReadAll(ctx, opts.ProjectID, opts.Filter)
	if err != nil {
		return result, err
	}
	result.TotalFound = int64(len(rows))

	for i, res := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		switch {
		case opts.DryRun:
			s.logger.Info("Would process resource", "path", res.Path, "type", res.Type, "state", res.State.String())
			result.TotalProcessed++
		default:
			if err := opts.Processor.Process(ctx, opts.ProjectID, res); err != nil {
				result.TotalFailed++
				result.FailedPaths = append(result.FailedPaths, res.Path)
				s.logger.Error("Failed to process resource", "path", res.Path, "err", err)
			} else {
				result.TotalProcessed++
			}
		}

		if opts.OnProgress != nil && ((i+1)%opts.BatchSize == 0 || i == len(rows)-1) {
			opts.OnProgress(result.TotalProcessed+result.TotalFailed, result.TotalFound)
		}
	}

	return result, nil
}

// ForEach processes each matching resource with fn.
func (s *Scanner) ForEach(ctx context.Context, projectID int, filter vfs.ResourceFilter, fn func(context.Context, int, *vfs.Resource) error) (*Result, error) {
	return s.Scan(ctx, Options{
		ProjectID: projectID,
		Filter:    filter,
		Processor: funcProcessor(fn),
	})
}
