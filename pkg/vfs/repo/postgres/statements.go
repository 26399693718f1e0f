package postgres

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

const resourceColumns = `serial, id, parent_id, content_id, path, type, flags, owner_id, group_id,
	project_id, access_flags, state, locked_by, launcher_type, launcher_class,
	created_at, modified_at, modified_by, size, locked_in_project`

const backupColumns = resourceColumns + `, version_id, owner_name, group_name, modified_by_name`

// statements holds the SQL of one projection. Table names differ per
// projection so that all three may share one database.
type statements struct {
	resources        string
	contents         string
	definitions      string
	properties       string
	projectResources string

	resourceByPath   string
	resourceByID     string
	resourceBySerial string
	insertResource   string
	updateResource   string
	updateState      string
	updatePath       string
	updateFlags      string
	updateAllFlags   string
	deleteResource   string

	selectContent     string
	selectContentOID  string
	insertContent     string
	updateContent     string
	deleteContent     string
	propertyDef       string
	propertyDefs      string
	insertPropertyDef string
	property          string
	propertiesOf      string
	insertProperty    string
	updateProperty    string
	deleteProperty    string
	deleteProperties  string

	projectResource        string
	projectResourcesOf     string
	insertProjectResource  string
	deleteProjectResource  string
	deleteProjectResources string

	backupResource               string
	backupResources              string
	insertBackupResource         string
	backupProjectResourcesOf     string
	insertBackupProjectResources string
}

func tableName(p vfs.Projection, table string) string {
	return "vfs_" + p.String() + "_" + table
}

func newStatements(p vfs.Projection) *statements {
	s := &statements{
		resources:        tableName(p, "resources"),
		contents:         tableName(p, "contents"),
		definitions:      tableName(p, "property_definitions"),
		properties:       tableName(p, "properties"),
		projectResources: tableName(p, "project_resources"),
	}

	// a live row wins over tombstones at the same path
	s.resourceByPath = fmt.Sprintf(`SELECT %s FROM %s WHERE path = $1
		ORDER BY (state = 3), serial DESC LIMIT 1`, resourceColumns, s.resources)
	s.resourceByID = fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, resourceColumns, s.resources)
	s.resourceBySerial = fmt.Sprintf(`SELECT %s FROM %s WHERE serial = $1`, resourceColumns, s.resources)
	s.insertResource = fmt.Sprintf(`INSERT INTO %s (
			id, parent_id, content_id, path, type, flags, owner_id, group_id,
			project_id, access_flags, state, locked_by, launcher_type, launcher_class,
			created_at, modified_at, modified_by, size, locked_in_project
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING serial`, s.resources)
	s.updateResource = fmt.Sprintf(`UPDATE %s SET
			type = $2, flags = $3, owner_id = $4, group_id = $5, project_id = $6,
			access_flags = $7, state = $8, locked_by = $9, launcher_type = $10,
			launcher_class = $11, modified_at = $12, modified_by = $13, size = $14,
			locked_in_project = $15
		WHERE id = $1`, s.resources)
	s.updateState = fmt.Sprintf(`UPDATE %s SET state = $2, locked_by = $3 WHERE id = $1`, s.resources)
	s.updatePath = fmt.Sprintf(`UPDATE %s SET path = $2, modified_by = $3 WHERE id = $1`, s.resources)
	s.updateFlags = fmt.Sprintf(`UPDATE %s SET flags = $2 WHERE serial = $1`, s.resources)
	s.updateAllFlags = fmt.Sprintf(`UPDATE %s SET flags = $1`, s.resources)
	s.deleteResource = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.resources)

	s.selectContent = fmt.Sprintf(`SELECT data, lo_oid FROM %s WHERE content_id = $1 AND version_id = $2`, s.contents)
	s.selectContentOID = fmt.Sprintf(`SELECT lo_oid FROM %s WHERE content_id = $1 AND version_id = 0 FOR UPDATE`, s.contents)
	s.insertContent = fmt.Sprintf(`INSERT INTO %s (content_id, version_id, data, lo_oid) VALUES ($1, $2, $3, $4)`, s.contents)
	s.updateContent = fmt.Sprintf(`UPDATE %s SET data = $2, lo_oid = $3 WHERE content_id = $1 AND version_id = 0`, s.contents)
	s.deleteContent = fmt.Sprintf(`DELETE FROM %s WHERE content_id = $1 AND version_id = 0 RETURNING lo_oid`, s.contents)

	s.propertyDef = fmt.Sprintf(`SELECT id, name, resource_type FROM %s WHERE name = $1 AND resource_type = $2`, s.definitions)
	s.propertyDefs = fmt.Sprintf(`SELECT id, name, resource_type FROM %s WHERE resource_type = $1 ORDER BY name`, s.definitions)
	s.insertPropertyDef = fmt.Sprintf(`INSERT INTO %s (id, name, resource_type) VALUES ($1, $2, $3)`, s.definitions)
	s.property = fmt.Sprintf(`SELECT p.id, p.definition_id, d.name, p.resource_id, p.value
		FROM %s p JOIN %s d ON d.id = p.definition_id
		WHERE p.resource_id = $1 AND p.definition_id = $2`, s.properties, s.definitions)
	s.propertiesOf = fmt.Sprintf(`SELECT p.id, p.definition_id, d.name, p.resource_id, p.value
		FROM %s p JOIN %s d ON d.id = p.definition_id
		WHERE p.resource_id = $1 ORDER BY d.name`, s.properties, s.definitions)
	s.insertProperty = fmt.Sprintf(`INSERT INTO %s (id, definition_id, resource_id, value) VALUES ($1, $2, $3, $4)`, s.properties)
	s.updateProperty = fmt.Sprintf(`UPDATE %s SET value = $2 WHERE id = $1`, s.properties)
	s.deleteProperty = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.properties)
	s.deleteProperties = fmt.Sprintf(`DELETE FROM %s WHERE resource_id = $1`, s.properties)

	s.projectResource = fmt.Sprintf(`SELECT project_id, path FROM %s WHERE project_id = $1 AND path = $2`, s.projectResources)
	s.projectResourcesOf = fmt.Sprintf(`SELECT project_id, path FROM %s WHERE project_id = $1 ORDER BY path`, s.projectResources)
	s.insertProjectResource = fmt.Sprintf(`INSERT INTO %s (project_id, path) VALUES ($1, $2)`, s.projectResources)
	s.deleteProjectResource = fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1 AND path = $2`, s.projectResources)
	s.deleteProjectResources = fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1`, s.projectResources)

	if p == vfs.ProjectionBackup {
		s.backupResource = fmt.Sprintf(`SELECT %s FROM %s WHERE version_id = $1 AND path = $2`, backupColumns, s.resources)
		s.backupResources = fmt.Sprintf(`SELECT %s FROM %s WHERE path = $1 ORDER BY version_id DESC`, backupColumns, s.resources)
		s.insertBackupResource = fmt.Sprintf(`INSERT INTO %s (
				id, parent_id, content_id, path, type, flags, owner_id, group_id,
				project_id, access_flags, state, locked_by, launcher_type, launcher_class,
				created_at, modified_at, modified_by, size, locked_in_project,
				version_id, owner_name, group_name, modified_by_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
				$20, $21, $22, $23)
			RETURNING serial`, s.resources)
		s.backupProjectResourcesOf = fmt.Sprintf(`SELECT project_id, path FROM %s WHERE version_id = $1 ORDER BY project_id, path`, s.projectResources)
		s.insertBackupProjectResources = fmt.Sprintf(`INSERT INTO %s (version_id, project_id, path) VALUES ($1, $2, $3)`, s.projectResources)
	}

	return s
}

// resourcesQuery renders a filtered listing ordered the way folder listings
// are presented: case-insensitively by path, then by path.
func (s *statements) resourcesQuery(f vfs.ResourceFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ParentID != uuid.Nil {
		where = append(where, "parent_id = "+arg(f.ParentID))
	}
	if f.PathPrefix != "" {
		where = append(where, `path LIKE `+arg(escapeLike(f.PathPrefix)+"%")+` ESCAPE '\'`)
	}
	switch f.Kind {
	case vfs.KindFile:
		where = append(where, `path NOT LIKE '%/'`)
	case vfs.KindFolder:
		where = append(where, `path LIKE '%/'`)
	}
	if f.Type != nil {
		where = append(where, "type = "+arg(*f.Type))
	}
	if f.Flags != nil {
		where = append(where, "flags = "+arg(*f.Flags))
	}
	if f.ProjectID != nil {
		where = append(where, "project_id = "+arg(*f.ProjectID))
	}
	if f.ChangedOnly {
		where = append(where, fmt.Sprintf("state <> %d", vfs.StateUnchanged))
	}
	if f.LiveOnly {
		where = append(where, fmt.Sprintf("state <> %d", vfs.StateDeleted))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", resourceColumns, s.resources)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY lower(path), path")
	return b.String(), args
}

// propertyQuery renders the lookup of live resources carrying a property.
func (s *statements) propertyQuery(q vfs.PropertyQuery) (string, []any) {
	args := []any{q.Name}
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT %s FROM %s r WHERE r.state <> %d AND EXISTS (
		SELECT 1 FROM %s p JOIN %s d ON d.id = p.definition_id
		WHERE p.resource_id = r.id AND d.name = $1`,
		prefixed("r.", resourceColumns), s.resources, vfs.StateDeleted, s.properties, s.definitions)
	if q.Value != nil {
		args = append(args, *q.Value)
		fmt.Fprintf(&b, " AND p.value = $%d", len(args))
	}
	b.WriteString(")")
	if q.Type != nil {
		args = append(args, *q.Type)
		fmt.Fprintf(&b, " AND r.type = $%d", len(args))
	}
	b.WriteString(" ORDER BY lower(r.path), r.path")
	return b.String(), args
}

// escapeLike escapes the LIKE metacharacters of a literal prefix.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
