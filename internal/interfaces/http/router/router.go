package router

import (
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// Registrar mounts one part of the freight API on the versioned group
type Registrar interface {
	RegisterRoutes(api *gin.RouterGroup)
}

// Router mounts the freight API under /api/<version>. Middleware given to Use
// runs for API routes only, so /health and /metrics stay reachable without an
// actor.
type Router struct {
	engine     *gin.Engine
	version    string
	shared     []gin.HandlerFunc
	registrars []Registrar
}

// Option configures a Router
type Option func(*Router)

// WithAPIVersion mounts the API under /api/<version>; the default is v1
func WithAPIVersion(version string) Option {
	return func(r *Router) {
		r.version = version
	}
}

// New returns a Router for engine
func New(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prefix is the path every API route lives under
func (r *Router) Prefix() string {
	return "/api/" + r.version
}

// Use adds middleware run before every API route
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.shared = append(r.shared, middleware...)
	return r
}

// Register queues a registrar for Setup
func (r *Router) Register(registrar Registrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registered table on the engine. Call it once.
func (r *Router) Setup() {
	api := r.engine.Group(r.Prefix(), r.shared...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Routes lists the mounted API endpoints as "METHOD path", ordered by path
func (r *Router) Routes() []string {
	var mounted gin.RoutesInfo
	for _, route := range r.engine.Routes() {
		if strings.HasPrefix(route.Path, r.Prefix()+"/") {
			mounted = append(mounted, route)
		}
	}
	sort.Slice(mounted, func(i, j int) bool {
		if mounted[i].Path != mounted[j].Path {
			return mounted[i].Path < mounted[j].Path
		}
		return mounted[i].Method < mounted[j].Method
	})
	out := make([]string, len(mounted))
	for i, route := range mounted {
		out[i] = route.Method + " " + route.Path
	}
	return out
}

// Route is one endpoint of a table. Path is relative to the table's prefix.
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Endpoints is the route table of one aggregate. Nested tables mount below
// Prefix, the way payment review sits below its invoice.
type Endpoints struct {
	Prefix string
	Routes []Route
	Nested []Endpoints
}

// RegisterRoutes implements Registrar
func (e Endpoints) RegisterRoutes(api *gin.RouterGroup) {
	group := api.Group(e.Prefix)
	for _, route := range e.Routes {
		group.Handle(route.Method, route.Path, route.Handler)
	}
	for _, nested := range e.Nested {
		nested.RegisterRoutes(group)
	}
}
