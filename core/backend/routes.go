// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"sort"
	"strings"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/logger"
)

// Route is one entry of a custom route table. Verbs maps HTTP methods to routes
// and takes precedence. Otherwise the route is a GET route served by Handler, or
// by the handler named Method in the collection's Methods.
type Route struct {
	Handler HandlerFunc
	Method  string
	Verbs   map[string]Route
}

// Routes is a custom route table, keyed by path relative to the list namespace
type Routes map[string]Route

// Handle returns a route for a single handler
func Handle(handler HandlerFunc) Route {
	return Route{Handler: handler}
}

// Named returns a route for the handler named method in Config.Methods
func Named(method string) Route {
	return Route{Method: method}
}

func (r Route) resolve(c *Collection, path string) HandlerFunc {
	if r.Handler != nil {
		return r.Handler
	}
	if r.Method != "" {
		if h, ok := c.config.Methods[r.Method]; ok && h != nil {
			return h
		}
		panic(configurationError("route %s of %s refers to unknown method %s", path, c.Name(), r.Method))
	}
	panic(configurationError("route %s of %s has no handler", path, c.Name()))
}

// bindRoutes is the second plugin of every collection. It builds the resource
// tree and binds the routes of the collection.
func bindRoutes(c *Collection) {
	if c.isView {
		return
	}
	if !c.routable() {
		logger.Default().Debugln("collection", c.Name(), "is not routable")
		return
	}
	if p := c.parent; p != nil && p.list != nil && c.config.Path == p.config.Path && c.config.Mount == p.config.Mount {
		// same mount point as the parent, the routes exist already
		c.list, c.detail, c.tree = p.list, p.detail, p.tree
		return
	}

	list := c.Namespace()
	c.list = list
	c.tree = newTree(c, list)
	delegate := c.tree.Delegate()

	if c.config.Routes != nil {
		bindCustomRoutes(c, list, delegate)
		return
	}

	m := DefaultMiddleware().merge(c.config.Middleware)
	verbs := []string{http.MethodGet}
	list.Get("", delegate, m.List)
	if supports(list.Router(), http.MethodHead) {
		list.Head("", delegate, head, m.List)
	}

	if c.Service() {
		detail := list.From(c)
		c.detail = detail
		operations := c.Operations()
		if operations.Has(core.Create) {
			list.Post("", delegate, m.Create, m.Detail)
			verbs = append(verbs, http.MethodPost)
		}
		if operations.Has(core.Read) {
			detail.Get("", delegate, m.FindByID, m.Detail)
			if supports(detail.Router(), http.MethodHead) {
				detail.Head("", delegate, head, m.FindByID, m.Detail)
			}
		}
		if operations.Has(core.Update) {
			detail.Put("", delegate, m.FindByID, m.Update, m.Detail)
			verbs = append(verbs, http.MethodPut)
		}
		if operations.Has(core.Delete) {
			detail.Delete("", delegate, m.FindByID, m.Remove, m.Detail)
			verbs = append(verbs, http.MethodDelete)
		}
	}
	logger.Default().Debugln("handle collection routes:", list.Path(), strings.Join(verbs, " "), "tree:", strings.Join(c.tree.Names(), "/"))
}

func bindCustomRoutes(c *Collection, list *Namespace, delegate HandlerFunc) {
	paths := make([]string, 0, len(c.config.Routes))
	for path := range c.config.Routes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		route := c.config.Routes[path]
		if len(route.Verbs) == 0 {
			list.Get(path, delegate, route.resolve(c, path))
			continue
		}
		methods := make([]string, 0, len(route.Verbs))
		for method := range route.Verbs {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		for _, method := range methods {
			list.Handle(method, path, delegate, route.Verbs[method].resolve(c, path))
		}
	}
	logger.Default().Debugln("handle custom collection routes:", list.Path(), paths)
}

func supports(router Router, method string) bool {
	for _, m := range router.Methods() {
		if m == method {
			return true
		}
	}
	return false
}
