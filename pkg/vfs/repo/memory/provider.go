package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tendant/simple-vfs/pkg/vfs"
)

var (
	_ vfs.ConnectionProvider = (*Provider)(nil)
	_ vfs.Conn               = (*conn)(nil)
	_ vfs.IdAllocator        = (*IdAllocator)(nil)
)

var (
	errReleased  = errors.New("connection already released")
	errNotBackup = errors.New("history rows are only served by the backup projection")
)

// Provider implements vfs.ConnectionProvider using in-memory tables, one set
// per projection. Rows are copied on the way in and out.
type Provider struct {
	mu          sync.RWMutex
	tables      map[vfs.Projection]*tables
	outstanding atomic.Int64
}

type contentKey struct {
	id      uuid.UUID
	version int
}

type backupKey struct {
	version int
	path    string
}

type tables struct {
	resources   map[uuid.UUID]*vfs.Resource
	nextSerial  int64
	contents    map[contentKey][][]byte
	definitions map[int64]*vfs.PropertyDefinition
	properties  map[int64]*vfs.Property
	projectRes  map[vfs.ProjectResource]struct{}
	backups     map[backupKey]*vfs.BackupResource
	backupPR    map[int][]vfs.ProjectResource
}

func newTables() *tables {
	return &tables{
		resources:   make(map[uuid.UUID]*vfs.Resource),
		contents:    make(map[contentKey][][]byte),
		definitions: make(map[int64]*vfs.PropertyDefinition),
		properties:  make(map[int64]*vfs.Property),
		projectRes:  make(map[vfs.ProjectResource]struct{}),
		backups:     make(map[backupKey]*vfs.BackupResource),
		backupPR:    make(map[int][]vfs.ProjectResource),
	}
}

// NewProvider creates an empty in-memory provider
func NewProvider() *Provider {
	p := &Provider{tables: make(map[vfs.Projection]*tables)}
	for _, proj := range vfs.Projections {
		p.tables[proj] = newTables()
	}
	return p
}

// Acquire returns a connection bound to the projection's tables
func (p *Provider) Acquire(ctx context.Context, proj vfs.Projection) (vfs.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := p.tables[proj]
	if !ok {
		return nil, errors.New("unknown projection " + proj.String())
	}
	p.outstanding.Add(1)
	return &conn{p: p, proj: proj, t: t}, nil
}

// Outstanding returns the number of acquired connections not yet released.
func (p *Provider) Outstanding() int {
	return int(p.outstanding.Load())
}

type conn struct {
	p        *Provider
	proj     vfs.Projection
	t        *tables
	released atomic.Bool
}

func (c *conn) Release() {
	if c.released.CompareAndSwap(false, true) {
		c.p.outstanding.Add(-1)
	}
}

func (c *conn) check(ctx context.Context) error {
	if c.released.Load() {
		return errReleased
	}
	return ctx.Err()
}

func (c *conn) checkMutable(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if !c.proj.Mutable() {
		return vfs.ErrReadOnlyProjection
	}
	return nil
}

func (c *conn) checkBackup(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if c.proj != vfs.ProjectionBackup {
		return errNotBackup
	}
	return nil
}

// Resource operations

func (c *conn) ResourceByPath(ctx context.Context, path string) (*vfs.Resource, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	// a live row wins over tombstones left at the same path
	var found *vfs.Resource
	for _, r := range c.t.resources {
		if r.Path != path {
			continue
		}
		if !r.IsDeleted() {
			return r.Clone(), nil
		}
		found = r
	}
	if found == nil {
		return nil, vfs.ErrNotFound
	}
	return found.Clone(), nil
}

func (c *conn) ResourceByID(ctx context.Context, id uuid.UUID) (*vfs.Resource, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	r, ok := c.t.resources[id]
	if !ok {
		return nil, vfs.ErrNotFound
	}
	return r.Clone(), nil
}

func (c *conn) ResourceBySerial(ctx context.Context, serial int64) (*vfs.Resource, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	for _, r := range c.t.resources {
		if r.Serial == serial {
			return r.Clone(), nil
		}
	}
	return nil, vfs.ErrNotFound
}

func (c *conn) Resources(ctx context.Context, f vfs.ResourceFilter) ([]*vfs.Resource, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	var out []*vfs.Resource
	for _, r := range c.t.resources {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sortByPath(out)
	return out, nil
}

func (c *conn) InsertResource(ctx context.Context, r *vfs.Resource) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	if _, exists := c.t.resources[r.ID]; exists {
		return vfs.ErrDuplicateName
	}
	if c.livePathTaken(r.Path, r.ID) {
		return vfs.ErrDuplicateName
	}
	c.t.nextSerial++
	r.Serial = c.t.nextSerial
	c.t.resources[r.ID] = r.Clone()
	return nil
}

func (c *conn) UpdateResource(ctx context.Context, r *vfs.Resource) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	stored, ok := c.t.resources[r.ID]
	if !ok {
		return vfs.ErrNotFound
	}
	if r.State != vfs.StateDeleted && stored.IsDeleted() && c.livePathTaken(stored.Path, r.ID) {
		return vfs.ErrDuplicateName
	}
	stored.Type = r.Type
	stored.Flags = r.Flags
	stored.OwnerID = r.OwnerID
	stored.GroupID = r.GroupID
	stored.ProjectID = r.ProjectID
	stored.AccessFlags = r.AccessFlags
	stored.State = r.State
	stored.LockedBy = r.LockedBy
	stored.LauncherType = r.LauncherType
	stored.LauncherClass = r.LauncherClass
	stored.ModifiedAt = r.ModifiedAt
	stored.ModifiedBy = r.ModifiedBy
	stored.Size = r.Size
	stored.LockedInProject = r.LockedInProject
	return nil
}

func (c *conn) UpdateState(ctx context.Context, id uuid.UUID, state vfs.State, lockedBy uuid.UUID) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	stored, ok := c.t.resources[id]
	if !ok {
		return vfs.ErrNotFound
	}
	if state != vfs.StateDeleted && stored.IsDeleted() && c.livePathTaken(stored.Path, id) {
		return vfs.ErrDuplicateName
	}
	stored.State = state
	stored.LockedBy = lockedBy
	return nil
}

func (c *conn) UpdatePath(ctx context.Context, id uuid.UUID, path string, modifiedBy uuid.UUID) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	stored, ok := c.t.resources[id]
	if !ok {
		return vfs.ErrNotFound
	}
	if !stored.IsDeleted() && c.livePathTaken(path, id) {
		return vfs.ErrDuplicateName
	}
	stored.Path = path
	stored.ModifiedBy = modifiedBy
	return nil
}

func (c *conn) UpdateFlags(ctx context.Context, serial int64, flags int) (int64, error) {
	if err := c.checkMutable(ctx); err != nil {
		return 0, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	var n int64
	for _, r := range c.t.resources {
		if r.Serial == serial {
			r.Flags = flags
			n++
		}
	}
	return n, nil
}

func (c *conn) UpdateAllFlags(ctx context.Context, flags int) (int64, error) {
	if err := c.checkMutable(ctx); err != nil {
		return 0, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	for _, r := range c.t.resources {
		r.Flags = flags
	}
	return int64(len(c.t.resources)), nil
}

func (c *conn) DeleteResource(ctx context.Context, id uuid.UUID) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	if _, ok := c.t.resources[id]; !ok {
		return vfs.ErrNotFound
	}
	delete(c.t.resources, id)
	return nil
}

// livePathTaken must be called with the lock held.
func (c *conn) livePathTaken(path string, except uuid.UUID) bool {
	for id, r := range c.t.resources {
		if id != except && r.Path == path && !r.IsDeleted() {
			return true
		}
	}
	return false
}

// Content operations

func (c *conn) Content(ctx context.Context, contentID uuid.UUID, version int) ([]byte, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	chunks, ok := c.t.contents[contentKey{contentID, version}]
	if !ok {
		return nil, vfs.ErrNotFound
	}
	return join(chunks), nil
}

func (c *conn) InsertContent(ctx context.Context, contentID uuid.UUID, version int, data []byte) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	key := contentKey{contentID, version}
	if _, exists := c.t.contents[key]; exists {
		return vfs.ErrDuplicateName
	}
	c.t.contents[key] = split(data)
	return nil
}

func (c *conn) UpdateContent(ctx context.Context, contentID uuid.UUID, data []byte) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	key := contentKey{id: contentID}
	if _, exists := c.t.contents[key]; !exists {
		return vfs.ErrNotFound
	}
	c.t.contents[key] = split(data)
	return nil
}

func (c *conn) DeleteContent(ctx context.Context, contentID uuid.UUID) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	key := contentKey{id: contentID}
	if _, exists := c.t.contents[key]; !exists {
		return vfs.ErrNotFound
	}
	delete(c.t.contents, key)
	return nil
}

// Project membership

func (c *conn) ProjectResource(ctx context.Context, projectID int, path string) (*vfs.ProjectResource, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	pr := vfs.ProjectResource{ProjectID: projectID, Path: path}
	if _, ok := c.t.projectRes[pr]; !ok {
		return nil, vfs.ErrNotFound
	}
	return &pr, nil
}

func (c *conn) ProjectResources(ctx context.Context, projectID int) ([]vfs.ProjectResource, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	var out []vfs.ProjectResource
	for pr := range c.t.projectRes {
		if pr.ProjectID == projectID {
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (c *conn) InsertProjectResource(ctx context.Context, pr vfs.ProjectResource) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	if _, exists := c.t.projectRes[pr]; exists {
		return vfs.ErrDuplicateName
	}
	c.t.projectRes[pr] = struct{}{}
	return nil
}

func (c *conn) DeleteProjectResource(ctx context.Context, projectID int, path string) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	delete(c.t.projectRes, vfs.ProjectResource{ProjectID: projectID, Path: path})
	return nil
}

func (c *conn) DeleteProjectResources(ctx context.Context, projectID int) error {
	if err := c.checkMutable(ctx); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	for pr := range c.t.projectRes {
		if pr.ProjectID == projectID {
			delete(c.t.projectRes, pr)
		}
	}
	return nil
}

func sortByPath(rows []*vfs.Resource) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].Path), strings.ToLower(rows[j].Path)
		if a != b {
			return a < b
		}
		return rows[i].Path < rows[j].Path
	})
}

// split stores large payloads in threshold-sized chunks, the in-memory
// counterpart of streamed content.
func split(data []byte) [][]byte {
	if len(data) < vfs.InlineContentThreshold {
		return [][]byte{append([]byte(nil), data...)}
	}
	var chunks [][]byte
	for off := 0; off < len(data); off += vfs.InlineContentThreshold {
		end := min(off+vfs.InlineContentThreshold, len(data))
		chunks = append(chunks, append([]byte(nil), data[off:end]...))
	}
	return chunks
}

func join(chunks [][]byte) []byte {
	var n int
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
