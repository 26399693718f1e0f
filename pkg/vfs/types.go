package vfs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxPathLength is the longest path a resource may have.
	MaxPathLength = 240

	// InlineContentThreshold is the payload size at which content is streamed
	// instead of stored inline.
	InlineContentThreshold = 2000

	// TempFilePrefix marks editor temporaries; "/a/~b.html" is a temporary of "/a/b.html".
	TempFilePrefix = "~"

	// TypeFolder is the resource type id of folders.
	TypeFolder = 0

	// DefaultOnlineProjectID is the id of the project that owns the online projection.
	DefaultOnlineProjectID = 1
)

// PlaceholderContent is what callers store for files that have no content.
var PlaceholderContent = []byte(" ")

// State is the publish state of a resource. The numeric values are persisted.
type State int

const (
	StateUnchanged State = 0
	StateChanged   State = 1
	StateNew       State = 2
	StateDeleted   State = 3
)

func (s State) String() string {
	switch s {
	case StateUnchanged:
		return "unchanged"
	case StateChanged:
		return "changed"
	case StateNew:
		return "new"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	return s >= StateUnchanged && s <= StateDeleted
}

// ParseState converts a persisted state value, failing with ErrUnknown for
// values outside the enum.
func ParseState(v int) (State, error) {
	s := State(v)
	if !s.Valid() {
		return 0, fmt.Errorf("%w: invalid resource state %d", ErrUnknown, v)
	}
	return s, nil
}

// Resource is the metadata row of a file or folder.
//
// Serial is the numeric row key assigned by the projection when the row is
// inserted. Link resources reference their target by Serial.
type Resource struct {
	ID              uuid.UUID `json:"id"`
	Serial          int64     `json:"serial"`
	ParentID        uuid.UUID `json:"parent_id"`
	ContentID       uuid.UUID `json:"content_id"`
	Path            string    `json:"path"`
	Type            int       `json:"type"`
	Flags           int       `json:"flags"`
	OwnerID         uuid.UUID `json:"owner_id"`
	GroupID         uuid.UUID `json:"group_id"`
	ProjectID       int       `json:"project_id"`
	AccessFlags     int       `json:"access_flags"`
	State           State     `json:"state"`
	LockedBy        uuid.UUID `json:"locked_by"`
	LauncherType    int       `json:"launcher_type"`
	LauncherClass   string    `json:"launcher_class,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ModifiedAt      time.Time `json:"modified_at"`
	ModifiedBy      uuid.UUID `json:"modified_by"`
	Size            int       `json:"size"`
	LockedInProject int       `json:"locked_in_project"`
}

// IsFolder reports whether the resource is a folder. Folder paths end with "/".
func (r *Resource) IsFolder() bool {
	return strings.HasSuffix(r.Path, "/")
}

// IsFile reports whether the resource is a file.
func (r *Resource) IsFile() bool {
	return !r.IsFolder()
}

// Name returns the last path segment, keeping the trailing slash of folders.
func (r *Resource) Name() string {
	return Name(r.Path)
}

// ParentPath returns the path of the containing folder.
func (r *Resource) ParentPath() string {
	return ParentPath(r.Path)
}

// IsDeleted reports whether the resource is a tombstone.
func (r *Resource) IsDeleted() bool {
	return r.State == StateDeleted
}

// Clone returns a copy of the resource.
func (r *Resource) Clone() *Resource {
	c := *r
	return &c
}

// File is a resource with its content payload.
type File struct {
	Resource
	Content []byte `json:"content,omitempty"`
}

// ProjectResource marks a subtree owned by a project for publish scoping.
type ProjectResource struct {
	ProjectID int    `json:"project_id"`
	Path      string `json:"path"`
}

// PropertyDefinition is the schema entry a property must reference. Names are
// scoped by resource type.
type PropertyDefinition struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ResourceType int    `json:"resource_type"`
}

// Property is one value of a resource property. Name is filled from the
// definition on reads.
type Property struct {
	ID           int64     `json:"id"`
	DefinitionID int64     `json:"definition_id"`
	Name         string    `json:"name,omitempty"`
	ResourceID   uuid.UUID `json:"resource_id"`
	Value        string    `json:"value"`
}

// BackupResource is an immutable snapshot of a resource at a version.
type BackupResource struct {
	Resource
	VersionID      int    `json:"version_id"`
	OwnerName      string `json:"owner_name"`
	GroupName      string `json:"group_name"`
	ModifiedByName string `json:"modified_by_name"`
	Content        []byte `json:"content,omitempty"`
}

// Link describes a link resource and the path it points at.
type Link struct {
	ResourceID int64  `json:"resource_id"`
	TargetPath string `json:"target_path"`
	LinkPath   string `json:"link_path"`
}

// Project identifies an editing project.
type Project struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// User identifies the principal on whose behalf an operation runs.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	DefaultGroupID uuid.UUID `json:"default_group_id"`
}

// ResourceType carries the launcher attributes a resource type assigns to new resources.
type ResourceType struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	LauncherType  int    `json:"launcher_type"`
	LauncherClass string `json:"launcher_class,omitempty"`
}

// Kind restricts a listing to files or folders.
type Kind int

const (
	KindAny Kind = iota
	KindFile
	KindFolder
)

// ResourceFilter selects rows of one projection. Zero fields do not filter.
type ResourceFilter struct {
	ParentID   uuid.UUID
	PathPrefix string
	Kind       Kind
	Type       *int
	Flags      *int
	ProjectID  *int
	// ChangedOnly excludes UNCHANGED rows.
	ChangedOnly bool
	// LiveOnly excludes DELETED rows.
	LiveOnly bool
}

// Matches reports whether r passes the filter. Backends that filter in memory use it.
func (f ResourceFilter) Matches(r *Resource) bool {
	if f.ParentID != uuid.Nil && r.ParentID != f.ParentID {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(r.Path, f.PathPrefix) {
		return false
	}
	switch f.Kind {
	case KindFile:
		if r.IsFolder() {
			return false
		}
	case KindFolder:
		if !r.IsFolder() {
			return false
		}
	}
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.Flags != nil && r.Flags != *f.Flags {
		return false
	}
	if f.ProjectID != nil && r.ProjectID != *f.ProjectID {
		return false
	}
	if f.ChangedOnly && r.State == StateUnchanged {
		return false
	}
	if f.LiveOnly && r.State == StateDeleted {
		return false
	}
	return true
}

// PropertyQuery selects resources by a property value. Value and Type are optional.
type PropertyQuery struct {
	Name  string
	Value *string
	Type  *int
}
