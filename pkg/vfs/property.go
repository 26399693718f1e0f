package vfs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PropertyStore keeps name/value properties of resources. Every property
// references a definition scoped by resource type; definitions are created in
// all three projections.
type PropertyStore struct {
	s     *Store
	cache *expirable.LRU[string, *PropertyDefinition]
}

// Read returns the value of the named property. ok is false when the
// definition or the property row does not exist.
func (ps *PropertyStore) Read(ctx context.Context, projectID int, res *Resource, name string) (value string, ok bool, err error) {
	route := ps.s.router.Route(projectID)
	err = ps.s.withConn(ctx, route.Projection, "property.read", func(conn Conn) error {
		def, err := ps.definition(ctx, conn, route.Projection, name, res.Type)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		prop, err := conn.Property(ctx, res.ID, def.ID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, ok = prop.Value, true
		return nil
	})
	return value, ok, err
}

// ReadAll returns every property of the resource keyed by definition name.
func (ps *PropertyStore) ReadAll(ctx context.Context, projectID int, res *Resource) (map[string]string, error) {
	route := ps.s.router.Route(projectID)
	values := make(map[string]string)
	err := ps.s.withConn(ctx, route.Projection, "property.read_all", func(conn Conn) error {
		props, err := conn.Properties(ctx, res.ID)
		if err != nil {
			return err
		}
		for _, p := range props {
			values[p.Name] = p.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Write sets the named property. Without createDefinition an undefined
// (name, type) pair fails with ErrNotFound; with it the definition is first
// created in every projection.
func (ps *PropertyStore) Write(ctx context.Context, projectID int, res *Resource, name, value string, createDefinition bool) error {
	route := ps.s.router.Route(projectID)

	def, err := ps.Definition(ctx, route.Projection, name, res.Type)
	if errors.Is(err, ErrNotFound) {
		if !createDefinition {
			return &ResourceError{Op: "write property " + name, Path: res.Path, Err: err}
		}
		if _, err := ps.CreateDefinition(ctx, name, res.Type); err != nil {
			return err
		}
		def, err = ps.Definition(ctx, route.Projection, name, res.Type)
	}
	if err != nil {
		return err
	}

	return ps.s.withConn(ctx, route.Projection, "property.write", func(conn Conn) error {
		return ps.write(ctx, conn, route.Projection, res, def, value)
	})
}

// WriteMany applies Write per entry in name order. Entries written before a
// failure stay written.
func (ps *PropertyStore) WriteMany(ctx context.Context, projectID int, res *Resource, values map[string]string, createDefinition bool) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ps.Write(ctx, projectID, res, name, values[name], createDefinition); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the named property. A missing property row is not an error.
func (ps *PropertyStore) Delete(ctx context.Context, projectID int, res *Resource, name string) error {
	route := ps.s.router.Route(projectID)
	return ps.s.withConn(ctx, route.Projection, "property.delete", func(conn Conn) error {
		def, err := ps.definition(ctx, conn, route.Projection, name, res.Type)
		if err != nil {
			return err
		}
		prop, err := conn.Property(ctx, res.ID, def.ID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return conn.DeleteProperty(ctx, prop.ID)
	})
}

// DeleteAll removes every property of the resource.
func (ps *PropertyStore) DeleteAll(ctx context.Context, projectID int, res *Resource) error {
	route := ps.s.router.Route(projectID)
	return ps.s.withConn(ctx, route.Projection, "property.delete_all", func(conn Conn) error {
		return conn.DeleteProperties(ctx, res.ID)
	})
}

// Definition looks up a definition in projection p.
func (ps *PropertyStore) Definition(ctx context.Context, p Projection, name string, resourceType int) (*PropertyDefinition, error) {
	var def *PropertyDefinition
	err := ps.s.withConn(ctx, p, "property.definition", func(conn Conn) error {
		var err error
		def, err = ps.definition(ctx, conn, p, name, resourceType)
		return err
	})
	return def, err
}

// Definitions lists the definitions of a resource type in projection p.
func (ps *PropertyStore) Definitions(ctx context.Context, p Projection, resourceType int) ([]*PropertyDefinition, error) {
	var defs []*PropertyDefinition
	err := ps.s.withConn(ctx, p, "property.definitions", func(conn Conn) error {
		var err error
		defs, err = conn.PropertyDefinitions(ctx, resourceType)
		return err
	})
	return defs, err
}

// CreateDefinition creates the definition in the offline, online and backup
// projections in that order. Projections that already hold it are skipped,
// so calling it again after a partial failure completes the set. Returns the
// offline definition.
func (ps *PropertyStore) CreateDefinition(ctx context.Context, name string, resourceType int) (*PropertyDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty property definition name", ErrBadName)
	}

	var created *PropertyDefinition
	for _, p := range Projections {
		err := ps.s.withConn(ctx, p, "property.create_definition", func(conn Conn) error {
			def, err := conn.PropertyDefinition(ctx, name, resourceType)
			if err == nil {
				if p == ProjectionOffline {
					created = def
				}
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			id, err := ps.s.ids.Next(ctx, p.TableKey(TablePropertyDefinitions))
			if err != nil {
				return err
			}
			def = &PropertyDefinition{ID: id, Name: name, ResourceType: resourceType}
			if err := conn.InsertPropertyDefinition(ctx, def); err != nil {
				return err
			}
			if p == ProjectionOffline {
				created = def
			}
			return nil
		})
		if err != nil {
			ps.s.logger.Error("Failed to create property definition",
				"name", name, "type", resourceType, "projection", p.String(), "err", err)
			return nil, err
		}
	}
	return created, nil
}

func (ps *PropertyStore) write(ctx context.Context, conn Conn, p Projection, res *Resource, def *PropertyDefinition, value string) error {
	prop, err := conn.Property(ctx, res.ID, def.ID)
	if err == nil {
		return conn.UpdatePropertyValue(ctx, prop.ID, value)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	id, err := ps.s.ids.Next(ctx, p.TableKey(TableProperties))
	if err != nil {
		return err
	}
	return conn.InsertProperty(ctx, &Property{
		ID:           id,
		DefinitionID: def.ID,
		Name:         def.Name,
		ResourceID:   res.ID,
		Value:        value,
	})
}

// definition reads through the cache. Misses are not cached so a definition
// created elsewhere becomes visible on the next lookup.
func (ps *PropertyStore) definition(ctx context.Context, conn Conn, p Projection, name string, resourceType int) (*PropertyDefinition, error) {
	key := fmt.Sprintf("%s|%d|%s", p, resourceType, name)
	if ps.cache != nil {
		if def, ok := ps.cache.Get(key); ok {
			definitionCacheHits.Inc()
			return def, nil
		}
		definitionCacheMisses.Inc()
	}
	def, err := conn.PropertyDefinition(ctx, name, resourceType)
	if err != nil {
		return nil, err
	}
	if ps.cache != nil {
		ps.cache.Add(key, def)
	}
	return def, nil
}
