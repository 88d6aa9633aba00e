// Package router assembles the HTTP routes of the invoicing API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router collects route groups and mounts them on a gin engine. Probe
// groups sit at the engine root; API groups sit under /api/{version}.
type Router struct {
	engine  *gin.Engine
	version string
	probes  []*Group
	api     []*Group
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion replaces the default "v1" path segment
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Probe adds a group mounted at the engine root
func (r *Router) Probe(g *Group) *Router {
	r.probes = append(r.probes, g)
	return r
}

// API adds a group mounted under the versioned prefix
func (r *Router) API(g *Group) *Router {
	r.api = append(r.api, g)
	return r
}

// Setup mounts every collected group. Call it once, after all groups are added.
func (r *Router) Setup() {
	for _, g := range r.probes {
		g.mount(&r.engine.RouterGroup)
	}
	base := r.engine.Group("/api/" + r.version)
	for _, g := range r.api {
		g.mount(base)
	}
}

// Group is a path prefix with guards shared by its routes and subgroups.
// Nil guards and nil handlers are dropped, so optional middleware can be
// passed without checks at the call site.
type Group struct {
	prefix   string
	guards   []gin.HandlerFunc
	routes   []route
	children []*Group
}

type route struct {
	method string
	path   string
	chain  []gin.HandlerFunc
}

func NewGroup(prefix string, guards ...gin.HandlerFunc) *Group {
	return &Group{prefix: prefix, guards: present(guards)}
}

// Sub starts a nested group under g's prefix and guards
func (g *Group) Sub(prefix string, guards ...gin.HandlerFunc) *Group {
	child := NewGroup(prefix, guards...)
	g.children = append(g.children, child)
	return child
}

func (g *Group) Handle(method, path string, chain ...gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: path, chain: present(chain)})
	return g
}

func (g *Group) GET(path string, chain ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodGet, path, chain...)
}

func (g *Group) POST(path string, chain ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPost, path, chain...)
}

func (g *Group) PUT(path string, chain ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPut, path, chain...)
}

func (g *Group) PATCH(path string, chain ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPatch, path, chain...)
}

func (g *Group) DELETE(path string, chain ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodDelete, path, chain...)
}

func (g *Group) mount(parent *gin.RouterGroup) {
	rg := parent.Group(g.prefix, g.guards...)
	for _, rt := range g.routes {
		rg.Handle(rt.method, rt.path, rt.chain...)
	}
	for _, child := range g.children {
		child.mount(rg)
	}
}

func present(chain []gin.HandlerFunc) []gin.HandlerFunc {
	out := chain[:0:0]
	for _, h := range chain {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
