package vfs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ResourceRepository creates, reads, updates and removes files and folders in
// the projection a project routes to.
type ResourceRepository struct {
	s *Store
}

// Create stores a new file or folder under req.ParentID.
//
// A live resource at the path fails with ErrDuplicateName. A tombstone at the
// path is purged first, with its tombstoned descendants when it is a folder,
// and the new resource starts CHANGED. Offline creation stamps ModifiedAt and
// ModifiedBy; online creation is the replication of a published resource and
// keeps the descriptor's timestamps, modifier and, unless a tombstone was
// replaced, state.
func (rr *ResourceRepository) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	desc := req.Resource
	if err := ValidatePath(desc.Path); err != nil {
		return nil, &ResourceError{Op: "create", Path: desc.Path, Err: err}
	}
	if desc.IsFile() && len(req.Content) == 0 {
		return nil, &ResourceError{Op: "create", Path: desc.Path, Err: ErrEmptyContent}
	}

	route := rr.s.router.Route(req.ProjectID)
	var created *Resource
	err := rr.s.withConn(ctx, route.Projection, "resource.create", func(conn Conn) error {
		state := StateNew
		existing, err := conn.ResourceByPath(ctx, desc.Path)
		switch {
		case err == nil && !existing.IsDeleted():
			return ErrDuplicateName
		case err == nil:
			if existing.IsFolder() {
				if err := rr.purgeTombstones(ctx, conn, route.Projection, existing); err != nil {
					return err
				}
			}
			if err := rr.purge(ctx, conn, route.Projection, existing, false); err != nil {
				return err
			}
			state = StateChanged
		case !errors.Is(err, ErrNotFound):
			return err
		}

		res := desc.Clone()
		res.ID = uuid.New()
		res.ParentID = req.ParentID
		res.ContentID = uuid.Nil
		res.Size = 0
		if res.OwnerID == uuid.Nil {
			res.OwnerID = req.User.ID
		}
		if res.GroupID == uuid.Nil {
			res.GroupID = req.User.DefaultGroupID
		}

		if route.Online() {
			// replication keeps CreatedAt, ModifiedAt, ModifiedBy and State
			if !res.State.Valid() {
				return ErrUnknown
			}
			if state == StateChanged {
				res.State = state
			}
		} else {
			now := rr.s.clock.Now()
			res.State = state
			res.ProjectID = req.ProjectID
			res.ModifiedBy = req.User.ID
			if !req.Touched || res.ModifiedAt.IsZero() {
				res.ModifiedAt = now
			}
			if res.CreatedAt.IsZero() {
				res.CreatedAt = now
			}
		}

		if res.IsFile() {
			res.ContentID = uuid.New()
			res.Size = len(req.Content)
			if err := rr.s.content.put(ctx, conn, route.Projection, res.ContentID, req.Content, 0); err != nil {
				if !rr.s.tolerateContentFailure {
					return err
				}
				rr.s.logger.Warn("Failed to write file content, creating without content",
					"path", res.Path, "projection", route.Projection.String(), "err", err)
			}
		}

		if err := conn.InsertResource(ctx, res); err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		return nil, &ResourceError{Op: "create", Path: desc.Path, Err: err}
	}

	if !route.Online() && isRootOrTopLevel(created.Path) {
		if err := rr.ensureProjectResource(ctx, req.ProjectID, created.Path); err != nil {
			return nil, &ResourceError{Op: "create", Path: created.Path, Err: err}
		}
	}
	return created, nil
}

// Copy creates a copy of the file at req.Source at req.Destination.
func (rr *ResourceRepository) Copy(ctx context.Context, req CopyRequest) (*Resource, error) {
	src, err := rr.ReadFile(ctx, req.ProjectID, req.Source)
	if err != nil {
		return nil, err
	}
	desc := src.Resource
	desc.Path = req.Destination
	desc.CreatedAt = rr.s.clock.Now()
	desc.LockedBy = uuid.Nil
	return rr.Create(ctx, CreateRequest{
		ProjectID: req.ProjectID,
		ParentID:  req.ParentID,
		Resource:  desc,
		Content:   src.Content,
		User:      req.User,
	})
}

// Read returns the resource at path. Tombstones fail with ErrResourceDeleted
// unless IncludeDeleted is given.
func (rr *ResourceRepository) Read(ctx context.Context, projectID int, path string, opts ...ReadOption) (*Resource, error) {
	return rr.read(ctx, projectID, "resource.read", path, func(ctx context.Context, conn Conn) (*Resource, error) {
		return conn.ResourceByPath(ctx, path)
	}, opts)
}

// ReadByID returns the resource with the given identity.
func (rr *ResourceRepository) ReadByID(ctx context.Context, projectID int, id uuid.UUID, opts ...ReadOption) (*Resource, error) {
	return rr.read(ctx, projectID, "resource.read_by_id", "", func(ctx context.Context, conn Conn) (*Resource, error) {
		return conn.ResourceByID(ctx, id)
	}, opts)
}

// ReadFolder returns the folder at path.
func (rr *ResourceRepository) ReadFolder(ctx context.Context, projectID int, path string, opts ...ReadOption) (*Resource, error) {
	return rr.read(ctx, projectID, "resource.read_folder", path, func(ctx context.Context, conn Conn) (*Resource, error) {
		r, err := conn.ResourceByPath(ctx, path)
		if err == nil && !r.IsFolder() {
			return nil, ErrNotFound
		}
		return r, err
	}, opts)
}

// ReadFile returns the file at path with its content.
func (rr *ResourceRepository) ReadFile(ctx context.Context, projectID int, path string, opts ...ReadOption) (*File, error) {
	o := applyReadOptions(opts)
	route := rr.s.router.Route(projectID)
	var file *File
	err := rr.s.withConn(ctx, route.Projection, "resource.read_file", func(conn Conn) error {
		r, err := conn.ResourceByPath(ctx, path)
		if err != nil {
			return err
		}
		if r.IsFolder() {
			return ErrNotFound
		}
		if r.IsDeleted() && !o.includeDeleted {
			return ErrResourceDeleted
		}
		if err := rr.s.links.resolve(ctx, conn, r); err != nil {
			return err
		}
		content, err := rr.s.content.get(ctx, conn, route.Projection, r.ContentID, 0)
		if err != nil {
			return err
		}
		file = &File{Resource: *r, Content: content}
		return nil
	})
	if err != nil {
		return nil, &ResourceError{Op: "read file", Path: path, Err: err}
	}
	return file, nil
}

// ReadAll lists the resources of the project's projection matching f
// (changed files, files of a type, resources under a path prefix).
func (rr *ResourceRepository) ReadAll(ctx context.Context, projectID int, f ResourceFilter) ([]*Resource, error) {
	route := rr.s.router.Route(projectID)
	var out []*Resource
	err := rr.s.withConn(ctx, route.Projection, "resource.read_all", func(conn Conn) error {
		var err error
		if out, err = conn.Resources(ctx, f); err != nil {
			return err
		}
		return rr.s.links.resolveAll(ctx, conn, out)
	})
	return out, err
}

// Write updates the mutable columns of res by identity. A stored state of
// NEW or CHANGED is kept; otherwise the state becomes CHANGED only when
// markChanged is set. Path, parent and content id are not touched.
func (rr *ResourceRepository) Write(ctx context.Context, projectID int, res *Resource, markChanged bool, modifier User) error {
	route := rr.s.router.Route(projectID)
	err := rr.s.withConn(ctx, route.Projection, "resource.write", func(conn Conn) error {
		return rr.write(ctx, conn, route, res, markChanged, modifier)
	})
	if err != nil {
		return &ResourceError{Op: "write", Path: res.Path, ID: res.ID, Err: err}
	}
	return nil
}

// WriteFile is Write followed by replacing the file content.
func (rr *ResourceRepository) WriteFile(ctx context.Context, projectID int, file *File, markChanged bool, modifier User) error {
	route := rr.s.router.Route(projectID)
	err := rr.s.withConn(ctx, route.Projection, "resource.write_file", func(conn Conn) error {
		if file.IsFolder() {
			return ErrBadName
		}
		file.Size = len(file.Content)
		if err := rr.write(ctx, conn, route, &file.Resource, markChanged, modifier); err != nil {
			return err
		}
		return rr.s.content.replace(ctx, conn, route.Projection, file.ContentID, file.Content)
	})
	if err != nil {
		return &ResourceError{Op: "write file", Path: file.Path, ID: file.ID, Err: err}
	}
	return nil
}

// SoftDelete turns res into a tombstone and clears its lock. Folders must
// have no live children.
func (rr *ResourceRepository) SoftDelete(ctx context.Context, projectID int, res *Resource) error {
	route := rr.s.router.Route(projectID)
	err := rr.s.withConn(ctx, route.Projection, "resource.soft_delete", func(conn Conn) error {
		if res.IsFolder() {
			if err := rr.checkEmpty(ctx, conn, res); err != nil {
				return err
			}
		}
		return conn.UpdateState(ctx, res.ID, StateDeleted, uuid.Nil)
	})
	if err != nil {
		return &ResourceError{Op: "delete", Path: res.Path, ID: res.ID, Err: err}
	}
	return nil
}

// Undelete revives a tombstone as CHANGED and clears its lock.
func (rr *ResourceRepository) Undelete(ctx context.Context, projectID int, res *Resource) error {
	route := rr.s.router.Route(projectID)
	err := rr.s.withConn(ctx, route.Projection, "resource.undelete", func(conn Conn) error {
		return conn.UpdateState(ctx, res.ID, StateChanged, uuid.Nil)
	})
	if err != nil {
		return &ResourceError{Op: "undelete", Path: res.Path, ID: res.ID, Err: err}
	}
	return nil
}

// Purge physically removes a file: properties, content, then metadata.
// Folders are purged with the same emptiness check as PurgeFolder.
func (rr *ResourceRepository) Purge(ctx context.Context, projectID int, res *Resource) error {
	route := rr.s.router.Route(projectID)
	err := rr.s.withConn(ctx, route.Projection, "resource.purge", func(conn Conn) error {
		return rr.purge(ctx, conn, route.Projection, res, res.IsFolder())
	})
	if err != nil {
		return &ResourceError{Op: "purge", Path: res.Path, ID: res.ID, Err: err}
	}
	return nil
}

// PurgeFolder physically removes a folder whose children are all tombstones.
func (rr *ResourceRepository) PurgeFolder(ctx context.Context, projectID int, folder *Resource) error {
	if !folder.IsFolder() {
		return &ResourceError{Op: "purge folder", Path: folder.Path, ID: folder.ID, Err: ErrBadName}
	}
	return rr.Purge(ctx, projectID, folder)
}

// PurgeFolderForPublish removes the folder at path without checking its
// children. Only for callers that already verified the folder is empty.
func (rr *ResourceRepository) PurgeFolderForPublish(ctx context.Context, projectID int, path string) error {
	route := rr.s.router.Route(projectID)
	err := rr.s.withConn(ctx, route.Projection, "resource.purge_for_publish", func(conn Conn) error {
		folder, err := conn.ResourceByPath(ctx, path)
		if err != nil {
			return err
		}
		return rr.purge(ctx, conn, route.Projection, folder, false)
	})
	if err != nil {
		return &ResourceError{Op: "purge folder", Path: path, Err: err}
	}
	return nil
}

// Rename gives the resource a new name inside its folder and records the
// modifier. State and ModifiedAt are left as they are. newPath must keep the
// parent folder and the file or folder kind, else ErrBadName.
func (rr *ResourceRepository) Rename(ctx context.Context, projectID int, id uuid.UUID, newPath string, modifier User) error {
	if err := ValidatePath(newPath); err != nil {
		return &ResourceError{Op: "rename", Path: newPath, ID: id, Err: err}
	}
	route := rr.s.router.Route(projectID)
	err := rr.s.withConn(ctx, route.Projection, "resource.rename", func(conn Conn) error {
		stored, err := conn.ResourceByID(ctx, id)
		if err != nil {
			return err
		}
		if stored.IsFolder() != strings.HasSuffix(newPath, "/") {
			return fmt.Errorf("%w: %s cannot become %s", ErrBadName, stored.Path, newPath)
		}
		if ParentPath(stored.Path) != ParentPath(newPath) {
			return fmt.Errorf("%w: rename of %s leaves folder %s", ErrBadName, stored.Path, ParentPath(stored.Path))
		}
		return conn.UpdatePath(ctx, id, newPath, modifier.ID)
	})
	if err != nil {
		return &ResourceError{Op: "rename", Path: newPath, ID: id, Err: err}
	}
	return nil
}

// PurgeTemporaries removes the editor temporaries of file from the offline
// projection: properties and content of every match first, then the rows.
func (rr *ResourceRepository) PurgeTemporaries(ctx context.Context, file *Resource) error {
	p := ProjectionOffline
	err := rr.s.withConn(ctx, p, "resource.purge_temporaries", func(conn Conn) error {
		temps, err := conn.Resources(ctx, ResourceFilter{PathPrefix: TempPrefix(file.Path)})
		if err != nil {
			return err
		}
		for _, t := range temps {
			if err := conn.DeleteProperties(ctx, t.ID); err != nil {
				return err
			}
			if t.IsFile() {
				if err := rr.deleteContent(ctx, conn, p, t); err != nil {
					return err
				}
			}
		}
		for _, t := range temps {
			if err := conn.DeleteResource(ctx, t.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &ResourceError{Op: "purge temporaries", Path: file.Path, ID: file.ID, Err: err}
	}
	return nil
}

// ReadFlags returns the flags of the resource at path.
func (rr *ResourceRepository) ReadFlags(ctx context.Context, projectID int, path string) (int, error) {
	r, err := rr.Read(ctx, projectID, path, IncludeDeleted())
	if err != nil {
		return 0, err
	}
	return r.Flags, nil
}

// SetFlags overwrites the flags of one resource and returns the number of rows changed.
func (rr *ResourceRepository) SetFlags(ctx context.Context, projectID int, serial int64, flags int) (int64, error) {
	route := rr.s.router.Route(projectID)
	var n int64
	err := rr.s.withConn(ctx, route.Projection, "resource.set_flags", func(conn Conn) error {
		var err error
		n, err = conn.UpdateFlags(ctx, serial, flags)
		return err
	})
	return n, err
}

// SetAllFlags overwrites the flags of every resource in the projection.
func (rr *ResourceRepository) SetAllFlags(ctx context.Context, projectID int, flags int) (int64, error) {
	route := rr.s.router.Route(projectID)
	var n int64
	err := rr.s.withConn(ctx, route.Projection, "resource.set_all_flags", func(conn Conn) error {
		var err error
		n, err = conn.UpdateAllFlags(ctx, flags)
		return err
	})
	return n, err
}

// ProjectResources lists the subtrees owned by a project.
func (rr *ResourceRepository) ProjectResources(ctx context.Context, projectID int) ([]ProjectResource, error) {
	var out []ProjectResource
	err := rr.s.withConn(ctx, ProjectionOffline, "project_resource.list", func(conn Conn) error {
		var err error
		out, err = conn.ProjectResources(ctx, projectID)
		return err
	})
	return out, err
}

// ReadProjectResource returns path when the project owns it.
func (rr *ResourceRepository) ReadProjectResource(ctx context.Context, projectID int, path string) (string, error) {
	var out string
	err := rr.s.withConn(ctx, ProjectionOffline, "project_resource.read", func(conn Conn) error {
		pr, err := conn.ProjectResource(ctx, projectID, path)
		if err != nil {
			return err
		}
		out = pr.Path
		return nil
	})
	return out, err
}

// DeleteProjectResource removes one membership row.
func (rr *ResourceRepository) DeleteProjectResource(ctx context.Context, projectID int, path string) error {
	return rr.s.withConn(ctx, ProjectionOffline, "project_resource.delete", func(conn Conn) error {
		return conn.DeleteProjectResource(ctx, projectID, path)
	})
}

// DeleteAllProjectResources removes every membership row of a project.
func (rr *ResourceRepository) DeleteAllProjectResources(ctx context.Context, projectID int) error {
	return rr.s.withConn(ctx, ProjectionOffline, "project_resource.delete_all", func(conn Conn) error {
		return conn.DeleteProjectResources(ctx, projectID)
	})
}

type lookupFunc func(ctx context.Context, conn Conn) (*Resource, error)

func (rr *ResourceRepository) read(ctx context.Context, projectID int, op, path string, lookup lookupFunc, opts []ReadOption) (*Resource, error) {
	o := applyReadOptions(opts)
	route := rr.s.router.Route(projectID)
	var res *Resource
	err := rr.s.withConn(ctx, route.Projection, op, func(conn Conn) error {
		r, err := lookup(ctx, conn)
		if err != nil {
			return err
		}
		if r.IsDeleted() && !o.includeDeleted {
			return ErrResourceDeleted
		}
		if err := rr.s.links.resolve(ctx, conn, r); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, &ResourceError{Op: "read", Path: path, Err: err}
	}
	return res, nil
}

func (rr *ResourceRepository) write(ctx context.Context, conn Conn, route Route, res *Resource, markChanged bool, modifier User) error {
	stored, err := conn.ResourceByID(ctx, res.ID)
	if err != nil {
		return err
	}
	upd := res.Clone()
	upd.State = nextState(stored.State, markChanged)
	if !route.Online() {
		upd.ModifiedBy = modifier.ID
	}
	upd.ModifiedAt = rr.s.clock.Now()
	if err := conn.UpdateResource(ctx, upd); err != nil {
		return err
	}
	res.State, res.ModifiedAt, res.ModifiedBy = upd.State, upd.ModifiedAt, upd.ModifiedBy
	return nil
}

// nextState keeps a dirty state and only marks clean resources dirty on request.
func nextState(current State, markChanged bool) State {
	if current == StateNew || current == StateChanged {
		return current
	}
	if markChanged {
		return StateChanged
	}
	return current
}

func (rr *ResourceRepository) checkEmpty(ctx context.Context, conn Conn, folder *Resource) error {
	children, err := rr.s.tree.children(ctx, conn, folder)
	if err != nil {
		return err
	}
	if len(UndeletedOf(children)) > 0 {
		return ErrNotEmpty
	}
	return nil
}

// purgeTombstones removes the tombstoned descendants of folder, deepest
// first. A live descendant fails the purge with ErrNotEmpty.
func (rr *ResourceRepository) purgeTombstones(ctx context.Context, conn Conn, p Projection, folder *Resource) error {
	children, err := rr.s.tree.children(ctx, conn, folder)
	if err != nil {
		return err
	}
	if len(UndeletedOf(children)) > 0 {
		return ErrNotEmpty
	}
	for _, child := range children {
		if child.IsFolder() {
			if err := rr.purgeTombstones(ctx, conn, p, child); err != nil {
				return err
			}
		}
		if err := rr.purge(ctx, conn, p, child, false); err != nil {
			return err
		}
	}
	return nil
}

func (rr *ResourceRepository) purge(ctx context.Context, conn Conn, p Projection, res *Resource, checkChildren bool) error {
	if checkChildren {
		if err := rr.checkEmpty(ctx, conn, res); err != nil {
			return err
		}
	}
	if err := conn.DeleteProperties(ctx, res.ID); err != nil {
		return err
	}
	if res.IsFile() {
		if err := rr.deleteContent(ctx, conn, p, res); err != nil {
			return err
		}
	}
	return conn.DeleteResource(ctx, res.ID)
}

// deleteContent tolerates a missing payload; creation may have gone on without one.
func (rr *ResourceRepository) deleteContent(ctx context.Context, conn Conn, p Projection, res *Resource) error {
	err := rr.s.content.delete(ctx, conn, p, res.ContentID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ensureProjectResource records project membership of top-level resources
// in the offline projection. An existing row is left alone.
func (rr *ResourceRepository) ensureProjectResource(ctx context.Context, projectID int, path string) error {
	return rr.s.withConn(ctx, ProjectionOffline, "project_resource.ensure", func(conn Conn) error {
		_, err := conn.ProjectResource(ctx, projectID, path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		err = conn.InsertProjectResource(ctx, ProjectResource{ProjectID: projectID, Path: path})
		if errors.Is(err, ErrDuplicateName) {
			return nil
		}
		return err
	})
}
