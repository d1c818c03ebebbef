// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/restmodel/core/logger"
)

// Router is the HTTP router collections bind their routes to
type Router interface {
	// Handle registers handler for method and pattern
	Handle(method, pattern string, handler http.Handler)
	// Methods returns the supported HTTP methods
	Methods() []string
	// Parameter returns the path segment which captures the route parameter name
	Parameter(name string) string
	// Params returns the route parameters of a request
	Params(r *http.Request) map[string]string
}

// MuxRouter is a Router on top of a gorilla mux router
type MuxRouter struct {
	router *mux.Router
}

// NewMuxRouter returns a Router for router
func NewMuxRouter(router *mux.Router) *MuxRouter {
	return &MuxRouter{router: router}
}

// Handle implements Router
func (m *MuxRouter) Handle(method, pattern string, handler http.Handler) {
	m.router.Handle(pattern, handler).Methods(method)
}

// Methods implements Router
func (m *MuxRouter) Methods() []string {
	return []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
}

// Parameter implements Router
func (m *MuxRouter) Parameter(name string) string {
	return "{" + name + "}"
}

// Params implements Router
func (m *MuxRouter) Params(r *http.Request) map[string]string {
	return mux.Vars(r)
}

// Mux returns the underlying mux router
func (m *MuxRouter) Mux() *mux.Router {
	return m.router
}

// Namespace is a mount point for routes. It knows its path, the router it binds
// to and the collection it belongs to, which makes the nesting of collections a
// walk over plain data.
//
// For a list namespace the context is the collection which mounted it. A detail
// namespace additionally has an owner, the collection whose keyname is its last
// path parameter. Namespaces derived from a detail namespace have the owner as
// context, this is how a nested collection finds its parent.
type Namespace struct {
	router  Router
	path    string
	context *Collection
	owner   *Collection
}

// NewNamespace returns a root namespace of router for context
func NewNamespace(router Router, path string, context *Collection) *Namespace {
	if router == nil {
		panic(configurationError("namespace %s has no router", path))
	}
	return &Namespace{router: router, path: joinPath("", path), context: context}
}

// Path returns the mount path
func (n *Namespace) Path() string {
	return n.path
}

func (n *Namespace) String() string {
	return n.path
}

// Context returns the collection the namespace belongs to
func (n *Namespace) Context() *Collection {
	return n.context
}

// Router returns the router of the namespace
func (n *Namespace) Router() Router {
	return n.router
}

// Namespace derives a namespace for subpath
func (n *Namespace) Namespace(subpath string) *Namespace {
	context := n.context
	if n.owner != nil {
		context = n.owner
	}
	return &Namespace{router: n.router, path: joinPath(n.path, subpath), context: context}
}

// Detail derives the detail namespace of the context collection
func (n *Namespace) Detail() *Namespace {
	if n.context == nil {
		panic(configurationError("namespace %s has no collection", n.path))
	}
	return n.From(n.context)
}

// From derives a namespace with a path parameter for the keyname of c
func (n *Namespace) From(c *Collection) *Namespace {
	return &Namespace{
		router:  n.router,
		path:    joinPath(n.path, n.router.Parameter(c.Keyname())),
		context: n.context,
		owner:   c,
	}
}

// Handle registers a handler chain for method at relpath below the namespace.
// It panics for methods the router does not support.
func (n *Namespace) Handle(method, relpath string, handlers ...HandlerFunc) {
	method = strings.ToUpper(method)
	if !supports(n.router, method) {
		panic(configurationError("router does not support method %s", method))
	}
	n.Cast(method, joinPath(n.path, relpath), handlers...)
}

// Cast registers a handler chain for method and pattern as they are
func (n *Namespace) Cast(method, pattern string, handlers ...HandlerFunc) {
	logger.Default().Debugln("  handle route:", pattern, method)
	n.router.Handle(method, pattern, chain(n.router, handlers))
}

// Get registers a GET handler chain
func (n *Namespace) Get(relpath string, handlers ...HandlerFunc) {
	n.Handle(http.MethodGet, relpath, handlers...)
}

// Head registers a HEAD handler chain
func (n *Namespace) Head(relpath string, handlers ...HandlerFunc) {
	n.Handle(http.MethodHead, relpath, handlers...)
}

// Post registers a POST handler chain
func (n *Namespace) Post(relpath string, handlers ...HandlerFunc) {
	n.Handle(http.MethodPost, relpath, handlers...)
}

// Put registers a PUT handler chain
func (n *Namespace) Put(relpath string, handlers ...HandlerFunc) {
	n.Handle(http.MethodPut, relpath, handlers...)
}

// Patch registers a PATCH handler chain
func (n *Namespace) Patch(relpath string, handlers ...HandlerFunc) {
	n.Handle(http.MethodPatch, relpath, handlers...)
}

// Delete registers a DELETE handler chain
func (n *Namespace) Delete(relpath string, handlers ...HandlerFunc) {
	n.Handle(http.MethodDelete, relpath, handlers...)
}

// joinPath joins base and relpath with single slashes and without trailing slash.
// The root path is "/".
func joinPath(base, relpath string) string {
	var segments []string
	for _, s := range strings.Split(base+"/"+relpath, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return "/" + strings.Join(segments, "/")
}

// Namespace returns the list namespace of the collection. It panics for
// collections without path or without router.
func (c *Collection) Namespace() *Namespace {
	if c.list != nil {
		return c.list
	}
	switch {
	case c.config.Mount != nil && c.config.Path != "":
		return c.config.Mount.Namespace(c.config.Path)
	case c.config.Mount != nil:
		return c.config.Mount
	case c.config.Path == "":
		panic(configurationError("collection %s has no path", c.Name()))
	case c.config.Router == nil:
		panic(configurationError("collection %s has no router", c.Name()))
	}
	return NewNamespace(c.config.Router, c.config.Path, c)
}

// Detail returns the detail namespace of the collection
func (c *Collection) Detail() *Namespace {
	if c.detail != nil {
		return c.detail
	}
	return c.Namespace().From(c)
}

// Resource returns the nested resource name of the collection, like "post/comment",
// made of the names of its ancestors in the resource tree. It is the name alone for
// collections without path.
func (c *Collection) Resource() string {
	tree := c.tree
	if tree == nil && c.routable() {
		tree = newTree(c, c.Namespace())
	}
	if len(tree) == 0 {
		return c.Name()
	}
	return strings.Join(tree.Names(), "/")
}

// routable returns true if the collection has a path to mount
func (c *Collection) routable() bool {
	return c.config.Mount != nil || c.config.Path != ""
}
