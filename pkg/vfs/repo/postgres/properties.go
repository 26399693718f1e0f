package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Property definition operations

func (c *conn) PropertyDefinition(ctx context.Context, name string, resourceType int) (*vfs.PropertyDefinition, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	var d vfs.PropertyDefinition
	err := c.db.QueryRow(ctx, c.q.propertyDef, name, resourceType).Scan(&d.ID, &d.Name, &d.ResourceType)
	if err != nil {
		return nil, handlePostgresError("read property definition", err)
	}
	return &d, nil
}

func (c *conn) PropertyDefinitions(ctx context.Context, resourceType int) ([]*vfs.PropertyDefinition, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	rows, err := c.db.Query(ctx, c.q.propertyDefs, resourceType)
	if err != nil {
		return nil, handlePostgresError("list property definitions", err)
	}
	defer rows.Close()

	var out []*vfs.PropertyDefinition
	for rows.Next() {
		var d vfs.PropertyDefinition
		if err := rows.Scan(&d.ID, &d.Name, &d.ResourceType); err != nil {
			return nil, handlePostgresError("list property definitions", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list property definitions", err)
	}
	return out, nil
}

func (c *conn) InsertPropertyDefinition(ctx context.Context, def *vfs.PropertyDefinition) error {
	if err := c.check(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.insertPropertyDef, def.ID, def.Name, def.ResourceType); err != nil {
		return handlePostgresError("create property definition", err)
	}
	return nil
}

// Property operations

func scanProperty(row pgx.Row) (*vfs.Property, error) {
	var p vfs.Property
	if err := row.Scan(&p.ID, &p.DefinitionID, &p.Name, &p.ResourceID, &p.Value); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *conn) Property(ctx context.Context, resourceID uuid.UUID, definitionID int64) (*vfs.Property, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	p, err := scanProperty(c.db.QueryRow(ctx, c.q.property, resourceID, definitionID))
	if err != nil {
		return nil, handlePostgresError("read property", err)
	}
	return p, nil
}

func (c *conn) Properties(ctx context.Context, resourceID uuid.UUID) ([]*vfs.Property, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	rows, err := c.db.Query(ctx, c.q.propertiesOf, resourceID)
	if err != nil {
		return nil, handlePostgresError("list properties", err)
	}
	defer rows.Close()

	var out []*vfs.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, handlePostgresError("list properties", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list properties", err)
	}
	return out, nil
}

func (c *conn) InsertProperty(ctx context.Context, p *vfs.Property) error {
	if err := c.check(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.insertProperty, p.ID, p.DefinitionID, p.ResourceID, p.Value); err != nil {
		return handlePostgresError("insert property", err)
	}
	return nil
}

func (c *conn) UpdatePropertyValue(ctx context.Context, id int64, value string) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	tag, err := c.db.Exec(ctx, c.q.updateProperty, id, value)
	if err != nil {
		return handlePostgresError("update property", err)
	}
	return affectedOne(tag)
}

func (c *conn) DeleteProperty(ctx context.Context, id int64) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.deleteProperty, id); err != nil {
		return handlePostgresError("delete property", err)
	}
	return nil
}

func (c *conn) DeleteProperties(ctx context.Context, resourceID uuid.UUID) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, c.q.deleteProperties, resourceID); err != nil {
		return handlePostgresError("delete properties", err)
	}
	return nil
}

func (c *conn) ResourcesWithProperty(ctx context.Context, q vfs.PropertyQuery) ([]*vfs.Resource, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.proj == vfs.ProjectionBackup {
		return nil, nil
	}
	query, args := c.q.propertyQuery(q)
	return c.list(ctx, "list resources with property", query, args...)
}
