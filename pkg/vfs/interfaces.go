package vfs

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ConnectionProvider hands out connections bound to one projection.
type ConnectionProvider interface {
	// Acquire returns a connection for the projection. Callers must Release it.
	Acquire(ctx context.Context, p Projection) (Conn, error)
}

// Conn is the row-level primitive set of one projection. Implementations
// return ErrNotFound for missing rows, ErrDuplicateName for unique path
// violations, and ErrReadOnlyProjection for updates or deletes of backup rows.
type Conn interface {
	Release()

	// Resources
	ResourceByPath(ctx context.Context, path string) (*Resource, error)
	ResourceByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	ResourceBySerial(ctx context.Context, serial int64) (*Resource, error)
	Resources(ctx context.Context, f ResourceFilter) ([]*Resource, error)
	// InsertResource stores r and sets r.Serial.
	InsertResource(ctx context.Context, r *Resource) error
	UpdateResource(ctx context.Context, r *Resource) error
	UpdateState(ctx context.Context, id uuid.UUID, state State, lockedBy uuid.UUID) error
	UpdatePath(ctx context.Context, id uuid.UUID, path string, modifiedBy uuid.UUID) error
	UpdateFlags(ctx context.Context, serial int64, flags int) (int64, error)
	UpdateAllFlags(ctx context.Context, flags int) (int64, error)
	DeleteResource(ctx context.Context, id uuid.UUID) error

	// Content. version is zero outside the backup projection.
	Content(ctx context.Context, contentID uuid.UUID, version int) ([]byte, error)
	InsertContent(ctx context.Context, contentID uuid.UUID, version int, data []byte) error
	UpdateContent(ctx context.Context, contentID uuid.UUID, data []byte) error
	DeleteContent(ctx context.Context, contentID uuid.UUID) error

	// Properties
	PropertyDefinition(ctx context.Context, name string, resourceType int) (*PropertyDefinition, error)
	PropertyDefinitions(ctx context.Context, resourceType int) ([]*PropertyDefinition, error)
	InsertPropertyDefinition(ctx context.Context, def *PropertyDefinition) error
	Property(ctx context.Context, resourceID uuid.UUID, definitionID int64) (*Property, error)
	Properties(ctx context.Context, resourceID uuid.UUID) ([]*Property, error)
	InsertProperty(ctx context.Context, p *Property) error
	UpdatePropertyValue(ctx context.Context, id int64, value string) error
	DeleteProperty(ctx context.Context, id int64) error
	DeleteProperties(ctx context.Context, resourceID uuid.UUID) error
	ResourcesWithProperty(ctx context.Context, q PropertyQuery) ([]*Resource, error)

	// Project membership
	ProjectResource(ctx context.Context, projectID int, path string) (*ProjectResource, error)
	ProjectResources(ctx context.Context, projectID int) ([]ProjectResource, error)
	InsertProjectResource(ctx context.Context, pr ProjectResource) error
	DeleteProjectResource(ctx context.Context, projectID int, path string) error
	DeleteProjectResources(ctx context.Context, projectID int) error

	// History. Only the backup projection serves these.
	BackupResource(ctx context.Context, version int, path string) (*BackupResource, error)
	BackupResources(ctx context.Context, path string) ([]*BackupResource, error)
	InsertBackupResource(ctx context.Context, r *BackupResource) error
	BackupProjectResources(ctx context.Context, version int) ([]ProjectResource, error)
	InsertBackupProjectResource(ctx context.Context, version int, pr ProjectResource) error
}

// IdAllocator hands out monotonically increasing ids per table key. It is
// used for property and property definition rows only.
type IdAllocator interface {
	Next(ctx context.Context, tableKey string) (int64, error)
}

// Table keys passed to IdAllocator, scoped by Projection.TableKey.
const (
	TablePropertyDefinitions = "property_definitions"
	TableProperties          = "properties"
)

// BlobStore stores content payloads outside the relational projections.
type BlobStore interface {
	// Upload stores the payload under objectKey, replacing any previous payload
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download returns the payload stored under objectKey
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the payload stored under objectKey
	Delete(ctx context.Context, objectKey string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
