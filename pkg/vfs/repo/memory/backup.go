package memory

import (
	"context"
	"sort"

	"github.com/tendant/simple-vfs/pkg/vfs"
)

// History operations. Rows are only ever inserted.

func (c *conn) BackupResource(ctx context.Context, version int, path string) (*vfs.BackupResource, error) {
	if err := c.checkBackup(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	r, ok := c.t.backups[backupKey{version, path}]
	if !ok {
		return nil, vfs.ErrNotFound
	}
	return cloneBackup(r), nil
}

func (c *conn) BackupResources(ctx context.Context, path string) ([]*vfs.BackupResource, error) {
	if err := c.checkBackup(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	var out []*vfs.BackupResource
	for key, r := range c.t.backups {
		if key.path == path {
			out = append(out, cloneBackup(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionID > out[j].VersionID })
	return out, nil
}

func (c *conn) InsertBackupResource(ctx context.Context, r *vfs.BackupResource) error {
	if err := c.checkBackup(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	key := backupKey{r.VersionID, r.Path}
	if _, exists := c.t.backups[key]; exists {
		return vfs.ErrDuplicateName
	}
	c.t.nextSerial++
	stored := cloneBackup(r)
	stored.Serial = c.t.nextSerial
	stored.Content = nil
	c.t.backups[key] = stored
	return nil
}

func (c *conn) BackupProjectResources(ctx context.Context, version int) ([]vfs.ProjectResource, error) {
	if err := c.checkBackup(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	return append([]vfs.ProjectResource(nil), c.t.backupPR[version]...), nil
}

func (c *conn) InsertBackupProjectResource(ctx context.Context, version int, pr vfs.ProjectResource) error {
	if err := c.checkBackup(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	for _, existing := range c.t.backupPR[version] {
		if existing == pr {
			return vfs.ErrDuplicateName
		}
	}
	c.t.backupPR[version] = append(c.t.backupPR[version], pr)
	return nil
}

func cloneBackup(r *vfs.BackupResource) *vfs.BackupResource {
	out := *r
	out.Content = append([]byte(nil), r.Content...)
	if len(out.Content) == 0 {
		out.Content = nil
	}
	return &out
}
