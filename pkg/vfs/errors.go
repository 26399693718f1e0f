package vfs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound indicates the lookup key matched no row
	ErrNotFound = errors.New("not found")

	// ErrResourceDeleted indicates the resource is a tombstone and deleted rows were not requested
	ErrResourceDeleted = errors.New("resource deleted")

	// ErrDuplicateName indicates a live resource already occupies the path
	ErrDuplicateName = errors.New("duplicate name")

	// ErrNotEmpty indicates a folder still has live children
	ErrNotEmpty = errors.New("folder not empty")

	// ErrBadName indicates a malformed or overlong path
	ErrBadName = errors.New("bad name")

	// ErrStorage indicates a fault in the underlying storage
	ErrStorage = errors.New("storage failure")

	// ErrUnknown indicates a fault that fits no other kind, such as an undecodable row
	ErrUnknown = errors.New("unknown failure")

	// ErrEmptyContent indicates a file was stored without content; use PlaceholderContent
	ErrEmptyContent = errors.New("empty file content")

	// ErrReadOnlyProjection indicates a mutation of backup rows
	ErrReadOnlyProjection = errors.New("projection is read-only")

	// ErrExcludedType indicates a path resolved to a resource of the excluded type
	ErrExcludedType = errors.New("resource type excluded")
)

// domainErrors are passed through unwrapped by storage boundaries.
var domainErrors = []error{
	ErrNotFound,
	ErrResourceDeleted,
	ErrDuplicateName,
	ErrNotEmpty,
	ErrBadName,
	ErrUnknown,
	ErrEmptyContent,
	ErrReadOnlyProjection,
	ErrExcludedType,
}

// ResourceError represents an error related to resource operations
type ResourceError struct {
	Op   string
	Path string
	ID   uuid.UUID
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("resource operation %s failed for %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("resource operation %s failed for resource %s: %v", e.Op, e.ID, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// StorageError represents a fault raised by a backend while serving a projection
type StorageError struct {
	Projection Projection
	Op         string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed on %s projection: %v", e.Op, e.Projection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorage so callers can test for any storage fault.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// wrapStorage wraps backend faults. Domain errors pass through so callers can
// still match them with errors.Is.
func wrapStorage(p Projection, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return &StorageError{Projection: p, Op: op, Err: err}
}
