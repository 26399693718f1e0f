package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Property definition operations

func (c *conn) PropertyDefinition(ctx context.Context, name string, resourceType int) (*vfs.PropertyDefinition, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	for _, d := range c.t.definitions {
		if d.Name == name && d.ResourceType == resourceType {
			def := *d
			return &def, nil
		}
	}
	return nil, vfs.ErrNotFound
}

func (c *conn) PropertyDefinitions(ctx context.Context, resourceType int) ([]*vfs.PropertyDefinition, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	var out []*vfs.PropertyDefinition
	for _, d := range c.t.definitions {
		if d.ResourceType == resourceType {
			def := *d
			out = append(out, &def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *conn) InsertPropertyDefinition(ctx context.Context, def *vfs.PropertyDefinition) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	if _, exists := c.t.definitions[def.ID]; exists {
		return vfs.ErrDuplicateName
	}
	for _, d := range c.t.definitions {
		if d.Name == def.Name && d.ResourceType == def.ResourceType {
			return vfs.ErrDuplicateName
		}
	}
	stored := *def
	c.t.definitions[def.ID] = &stored
	return nil
}

// Property operations

func (c *conn) Property(ctx context.Context, resourceID uuid.UUID, definitionID int64) (*vfs.Property, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	for _, p := range c.t.properties {
		if p.ResourceID == resourceID && p.DefinitionID == definitionID {
			return c.withName(p), nil
		}
	}
	return nil, vfs.ErrNotFound
}

func (c *conn) Properties(ctx context.Context, resourceID uuid.UUID) ([]*vfs.Property, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	var out []*vfs.Property
	for _, p := range c.t.properties {
		if p.ResourceID == resourceID {
			out = append(out, c.withName(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *conn) InsertProperty(ctx context.Context, p *vfs.Property) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	if _, ok := c.t.definitions[p.DefinitionID]; !ok {
		return vfs.ErrNotFound
	}
	if _, exists := c.t.properties[p.ID]; exists {
		return vfs.ErrDuplicateName
	}
	stored := *p
	stored.Name = ""
	c.t.properties[p.ID] = &stored
	return nil
}

func (c *conn) UpdatePropertyValue(ctx context.Context, id int64, value string) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	p, ok := c.t.properties[id]
	if !ok {
		return vfs.ErrNotFound
	}
	p.Value = value
	return nil
}

func (c *conn) DeleteProperty(ctx context.Context, id int64) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	delete(c.t.properties, id)
	return nil
}

func (c *conn) DeleteProperties(ctx context.Context, resourceID uuid.UUID) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	for id, p := range c.t.properties {
		if p.ResourceID == resourceID {
			delete(c.t.properties, id)
		}
	}
	return nil
}

func (c *conn) ResourcesWithProperty(ctx context.Context, q vfs.PropertyQuery) ([]*vfs.Resource, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	var out []*vfs.Resource
	for _, p := range c.t.properties {
		def, ok := c.t.definitions[p.DefinitionID]
		if !ok || def.Name != q.Name {
			continue
		}
		if q.Value != nil && p.Value != *q.Value {
			continue
		}
		r, ok := c.t.resources[p.ResourceID]
		if !ok || r.IsDeleted() || seen[r.ID] {
			continue
		}
		if q.Type != nil && r.Type != *q.Type {
			continue
		}
		seen[r.ID] = true
		out = append(out, r.Clone())
	}
	sortByPath(out)
	return out, nil
}

// withName copies p and fills its definition name. Caller holds the lock.
func (c *conn) withName(p *vfs.Property) *vfs.Property {
	out := *p
	if def, ok := c.t.definitions[p.DefinitionID]; ok {
		out.Name = def.Name
	}
	return &out
}
