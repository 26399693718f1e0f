package vfs

import "fmt"

// Projection is one physical representation of the resource tree.
type Projection int

const (
	ProjectionOffline Projection = iota
	ProjectionOnline
	ProjectionBackup
)

// Projections lists every projection in creation order.
var Projections = []Projection{ProjectionOffline, ProjectionOnline, ProjectionBackup}

func (p Projection) String() string {
	switch p {
	case ProjectionOffline:
		return "offline"
	case ProjectionOnline:
		return "online"
	case ProjectionBackup:
		return "backup"
	default:
		return fmt.Sprintf("projection(%d)", int(p))
	}
}

// ParseProjection maps a projection name back to its tag.
func ParseProjection(name string) (Projection, error) {
	for _, p := range Projections {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown projection %q", name)
}

// Mutable reports whether existing rows of the projection may be changed.
func (p Projection) Mutable() bool {
	return p != ProjectionBackup
}

// TableKey names an id sequence scoped to the projection.
func (p Projection) TableKey(table string) string {
	return p.String() + "." + table
}

// Route is the binding a project id resolves to.
type Route struct {
	Projection Projection
	Pool       string
}

// Online reports whether the route targets the published projection.
func (r Route) Online() bool {
	return r.Projection == ProjectionOnline
}

// Router maps project ids to projections. The zero value is not usable; use NewRouter.
type Router struct {
	onlineProjectID int
}

// NewRouter creates a router that treats onlineProjectID as the published project.
func NewRouter(onlineProjectID int) Router {
	return Router{onlineProjectID: onlineProjectID}
}

// OnlineProjectID returns the id of the published project.
func (r Router) OnlineProjectID() int {
	return r.onlineProjectID
}

// Route returns the online binding for the online project and the offline binding otherwise.
func (r Router) Route(projectID int) Route {
	if projectID == r.onlineProjectID {
		return Route{Projection: ProjectionOnline, Pool: ProjectionOnline.String()}
	}
	return Route{Projection: ProjectionOffline, Pool: ProjectionOffline.String()}
}

// Backup returns the binding of the history projection.
func (r Router) Backup() Route {
	return Route{Projection: ProjectionBackup, Pool: ProjectionBackup.String()}
}
