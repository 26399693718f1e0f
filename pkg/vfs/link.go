package vfs

import (
	"context"
	"errors"
)

// LinkResolver handles link resources. A link stores the Serial of its target
// in Flags and the target path as its content.
type LinkResolver struct {
	s *Store
}

// FetchAllLinks lists every link resource of the project's projection,
// tombstones included.
func (l *LinkResolver) FetchAllLinks(ctx context.Context, projectID int) ([]Link, error) {
	route := l.s.router.Route(projectID)
	var links []Link
	err := l.s.withConn(ctx, route.Projection, "link.fetch_all", func(conn Conn) error {
		rows, err := conn.Resources(ctx, ResourceFilter{Type: &l.s.linkType, Kind: KindFile})
		if err != nil {
			return err
		}
		for _, r := range rows {
			target, err := l.s.content.get(ctx, conn, route.Projection, r.ContentID, 0)
			if err != nil {
				return err
			}
			links = append(links, Link{ResourceID: r.Serial, TargetPath: string(target), LinkPath: r.Path})
		}
		return nil
	})
	return links, err
}

// FetchLinksTo returns the live links whose target is targetSerial.
func (l *LinkResolver) FetchLinksTo(ctx context.Context, projectID int, targetSerial int64) ([]*Resource, error) {
	route := l.s.router.Route(projectID)
	flags := int(targetSerial)
	var links []*Resource
	err := l.s.withConn(ctx, route.Projection, "link.fetch_to", func(conn Conn) error {
		var err error
		if links, err = conn.Resources(ctx, ResourceFilter{Type: &l.s.linkType, Flags: &flags, LiveOnly: true}); err != nil {
			return err
		}
		return l.resolveAll(ctx, conn, links)
	})
	return links, err
}

// ResolvePathToID returns the Serial of the live resource at path.
// It fails with ErrExcludedType when the resource has type excludeType and
// with ErrNotFound when no live resource holds the path.
func (l *LinkResolver) ResolvePathToID(ctx context.Context, projectID int, path string, excludeType int) (int64, error) {
	route := l.s.router.Route(projectID)
	var serial int64
	err := l.s.withConn(ctx, route.Projection, "link.resolve_path", func(conn Conn) error {
		r, err := conn.ResourceByPath(ctx, path)
		if err != nil {
			return err
		}
		if r.IsDeleted() {
			return ErrNotFound
		}
		if r.Type == excludeType {
			return ErrExcludedType
		}
		serial = r.Serial
		return nil
	})
	return serial, err
}

// resolve reports a link's modification date from its target. A missing
// target leaves the link's own date in place.
func (l *LinkResolver) resolve(ctx context.Context, conn Conn, r *Resource) error {
	if !l.s.propagateLinkDates || r.Type != l.s.linkType {
		return nil
	}
	target, err := conn.ResourceBySerial(ctx, int64(r.Flags))
	if errors.Is(err, ErrNotFound) {
		l.s.logger.Debug("Link target not found", "path", r.Path, "target", r.Flags)
		return nil
	}
	if err != nil {
		return err
	}
	r.ModifiedAt = target.ModifiedAt
	return nil
}

func (l *LinkResolver) resolveAll(ctx context.Context, conn Conn, rows []*Resource) error {
	for _, r := range rows {
		if err := l.resolve(ctx, conn, r); err != nil {
			return err
		}
	}
	return nil
}
