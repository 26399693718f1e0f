package vfs

import "github.com/google/uuid"

// CreateRequest contains parameters for creating a file or folder
type CreateRequest struct {
	ProjectID int
	ParentID  uuid.UUID
	// Resource is the descriptor; Path decides between file and folder
	Resource Resource
	// Content is required for files; use PlaceholderContent for empty files
	Content []byte
	User    User
	// Touched keeps the descriptor's ModifiedAt on offline creation
	Touched bool
}

// CopyRequest contains parameters for copying a file
type CopyRequest struct {
	ProjectID   int
	Source      string
	ParentID    uuid.UUID
	Destination string
	User        User
}

// ReadOption adjusts a resource read
type ReadOption func(*readOptions)

type readOptions struct {
	includeDeleted bool
}

// IncludeDeleted returns tombstones instead of failing with ErrResourceDeleted
func IncludeDeleted() ReadOption {
	return func(o *readOptions) {
		o.includeDeleted = true
	}
}

func applyReadOptions(opts []ReadOption) readOptions {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
