package vfs

import (
	"context"
	"strings"
)

// TreeQuery answers hierarchical and property-filtered listings.
type TreeQuery struct {
	s *Store
}

// ChildFiles lists the files directly below folder, deleted ones included.
func (t *TreeQuery) ChildFiles(ctx context.Context, projectID int, folder *Resource) ([]*Resource, error) {
	return t.list(ctx, projectID, "tree.child_files", ResourceFilter{ParentID: folder.ID, Kind: KindFile})
}

// ChildFolders lists the folders directly below folder, deleted ones included.
func (t *TreeQuery) ChildFolders(ctx context.Context, projectID int, folder *Resource) ([]*Resource, error) {
	return t.list(ctx, projectID, "tree.child_folders", ResourceFilter{ParentID: folder.ID, Kind: KindFolder})
}

// FolderTree lists rootPath and every folder below it.
func (t *TreeQuery) FolderTree(ctx context.Context, projectID int, rootPath string) ([]*Resource, error) {
	return t.list(ctx, projectID, "tree.folder_tree", ResourceFilter{PathPrefix: rootPath, Kind: KindFolder})
}

// ResourcesInFolder lists the folders and then the files directly below
// folder. Consecutive rows whose names differ only in case are reported once,
// so the result may be shorter than the number of stored rows.
func (t *TreeQuery) ResourcesInFolder(ctx context.Context, projectID int, folder *Resource) ([]*Resource, error) {
	route := t.s.router.Route(projectID)
	var out []*Resource
	err := t.s.withConn(ctx, route.Projection, "tree.resources_in_folder", func(conn Conn) error {
		folders, err := conn.Resources(ctx, ResourceFilter{ParentID: folder.ID, Kind: KindFolder})
		if err != nil {
			return err
		}
		files, err := conn.Resources(ctx, ResourceFilter{ParentID: folder.ID, Kind: KindFile})
		if err != nil {
			return err
		}
		out = append(collapseSameName(folders), collapseSameName(files)...)
		return t.s.links.resolveAll(ctx, conn, out)
	})
	return out, err
}

// ResourcesWithProperty lists resources holding a property that matches q.
func (t *TreeQuery) ResourcesWithProperty(ctx context.Context, projectID int, q PropertyQuery) ([]*Resource, error) {
	route := t.s.router.Route(projectID)
	var out []*Resource
	err := t.s.withConn(ctx, route.Projection, "tree.resources_with_property", func(conn Conn) error {
		var err error
		if out, err = conn.ResourcesWithProperty(ctx, q); err != nil {
			return err
		}
		return t.s.links.resolveAll(ctx, conn, out)
	})
	return out, err
}

// UndeletedOf returns the resources of list that are not tombstones.
func UndeletedOf(list []*Resource) []*Resource {
	out := make([]*Resource, 0, len(list))
	for _, r := range list {
		if !r.IsDeleted() {
			out = append(out, r)
		}
	}
	return out
}

func (t *TreeQuery) list(ctx context.Context, projectID int, op string, f ResourceFilter) ([]*Resource, error) {
	route := t.s.router.Route(projectID)
	var out []*Resource
	err := t.s.withConn(ctx, route.Projection, op, func(conn Conn) error {
		var err error
		if out, err = conn.Resources(ctx, f); err != nil {
			return err
		}
		return t.s.links.resolveAll(ctx, conn, out)
	})
	return out, err
}

// children returns every direct child of folder on an open connection.
func (t *TreeQuery) children(ctx context.Context, conn Conn, folder *Resource) ([]*Resource, error) {
	return conn.Resources(ctx, ResourceFilter{ParentID: folder.ID})
}

func collapseSameName(rows []*Resource) []*Resource {
	out := make([]*Resource, 0, len(rows))
	last := ""
	for i, r := range rows {
		name := r.Name()
		if i > 0 && strings.EqualFold(name, last) {
			continue
		}
		out = append(out, r)
		last = name
	}
	return out
}
