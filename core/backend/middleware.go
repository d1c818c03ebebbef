// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/restmodel/core/logger"
)

// HandlerFunc is one link of a route's handler chain. It continues the chain
// with c.Next(), or ends it by writing a response.
type HandlerFunc func(c *Context)

// Context is the state of one request passing through a handler chain
type Context struct {
	Writer  http.ResponseWriter
	Request *http.Request
	// Params are the route parameters
	Params map[string]string
	// Stack is the resource tree of the route, root first
	Stack Tree
	// Collection is the active collection, possibly a relationship view
	Collection *Collection
	// Parent is the entity of the parent collection selected by the route
	Parent *Entity
	// Entity is the entity selected or created by the route
	Entity *Entity
	// Body is the parsed JSON body, see Bind()
	Body map[string]interface{}

	handlers []HandlerFunc
	index    int
	headOnly bool
	status   int
}

// chain returns an http.Handler running handlers in order
func chain(router Router, handlers []HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := &Context{
			Request:  r,
			Params:   router.Params(r),
			handlers: handlers,
			index:    -1,
		}
		c.Writer = &statusWriter{ResponseWriter: w, context: c}
		c.Next()
	})
}

// Next runs the next handler of the chain
func (c *Context) Next() {
	c.index++
	if c.index < len(c.handlers) {
		c.handlers[c.index](c)
	}
}

// Param returns the route parameter name
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Context returns the context of the request
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Status returns the status written so far, or 0
func (c *Context) Status() int {
	return c.status
}

// Bind parses the JSON object of the request body into Body. An empty body is an
// empty object.
func (c *Context) Bind() error {
	if c.Body != nil {
		return nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	body := map[string]interface{}{}
	if len(data) > 0 {
		if err = json.Unmarshal(data, &body); err != nil {
			return err
		}
		if body == nil {
			return errors.New("body must be a JSON object")
		}
	}
	c.Body = body
	return nil
}

// JSON writes v as JSON response with status
func (c *Context) JSON(status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.FromContext(c.Context()).WithError(err).Errorln("cannot marshal response")
		http.Error(c.Writer, "cannot marshal response", http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	if c.headOnly {
		c.Writer.Header().Set("Content-Length", strconv.Itoa(len(data)))
		c.Writer.WriteHeader(status)
		return
	}
	c.Writer.WriteHeader(status)
	c.Writer.Write(data)
}

// Error writes a plain text error response
func (c *Context) Error(status int, message string) {
	http.Error(c.Writer, message, status)
}

type statusWriter struct {
	http.ResponseWriter
	context *Context
}

func (w *statusWriter) WriteHeader(status int) {
	if w.context.status == 0 {
		w.context.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(data []byte) (int, error) {
	if w.context.status == 0 {
		w.context.status = http.StatusOK
	}
	return w.ResponseWriter.Write(data)
}

// Middleware holds the default handlers of the CRUD routes. Non-nil fields of
// a collection's configuration replace the defaults.
type Middleware struct {
	// List writes the active collection
	List HandlerFunc
	// FindByID selects the entity of a detail route, or writes 404
	FindByID HandlerFunc
	// Detail writes the selected entity
	Detail HandlerFunc
	// Create creates a new entity from the body
	Create HandlerFunc
	// Update merges the body into the selected entity
	Update HandlerFunc
	// Remove destroys the selected entity
	Remove HandlerFunc
}

// DefaultMiddleware returns the default handlers
func DefaultMiddleware() Middleware {
	return Middleware{
		List:     sendAll,
		FindByID: findByID,
		Detail:   sendOne,
		Create:   create,
		Update:   update,
		Remove:   remove,
	}
}

func (m Middleware) merge(overrides Middleware) Middleware {
	if overrides.List != nil {
		m.List = overrides.List
	}
	if overrides.FindByID != nil {
		m.FindByID = overrides.FindByID
	}
	if overrides.Detail != nil {
		m.Detail = overrides.Detail
	}
	if overrides.Create != nil {
		m.Create = overrides.Create
	}
	if overrides.Update != nil {
		m.Update = overrides.Update
	}
	if overrides.Remove != nil {
		m.Remove = overrides.Remove
	}
	return m
}

// head marks the request as HEAD request, the response gets headers only
func head(c *Context) {
	c.headOnly = true
	c.Next()
}

// sendAll writes the active collection, after applying the list query
// options filter, where, sort, order, limit and page
func sendAll(c *Context) {
	query, err := parseListQuery(c.Request.URL.Query())
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}
	entities, err := query.apply(c.Collection.All())
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}
	query.setHeaders(c.Writer.Header(), len(entities))
	entities = query.page(entities)
	result := make([]map[string]interface{}, len(entities))
	for i, e := range entities {
		result[i] = e.ToJSON()
	}
	c.JSON(http.StatusOK, result)
}

func sendOne(c *Context) {
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}
	c.JSON(status, c.Entity)
}

func findByID(c *Context) {
	id := c.Param(c.Collection.Keyname())
	c.Entity = c.Collection.Get(id)
	if c.Entity == nil {
		c.Error(http.StatusNotFound, "no such "+c.Collection.Name())
		return
	}
	c.Next()
}

// writeSaveError maps the error of Save or Destroy to a response
func writeSaveError(c *Context, err error) {
	var validationError *ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": validationError.Errors})
		return
	}
	c.Error(http.StatusInternalServerError, err.Error())
}

func create(c *Context) {
	if err := c.Bind(); err != nil {
		c.Error(http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	e := c.Collection.New(c.Body)
	if c.Parent != nil && c.Collection.config.Relate != nil {
		c.Collection.config.Relate(c.Parent, e)
	}
	if err := e.Save(c.Context()); err != nil {
		writeSaveError(c, err)
		return
	}
	c.Entity = e
	c.Next()
}

func update(c *Context) {
	if err := c.Bind(); err != nil {
		c.Error(http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	key := c.Collection.UniqueKey()
	if id, ok := c.Body[key]; ok && !looseEqual(id, c.Entity.ID()) {
		c.Error(http.StatusBadRequest, "identifier mismatch for "+c.Collection.Name())
		return
	}
	previous := c.Entity.Changes()
	c.Entity.SetAll(c.Body)
	if err := c.Entity.Save(c.Context()); err != nil {
		// a failed save must not leave the body behind as pending changes
		c.Entity.store.restore(previous)
		writeSaveError(c, err)
		return
	}
	c.Next()
}

func remove(c *Context) {
	if err := c.Entity.Destroy(c.Context()); err != nil {
		writeSaveError(c, err)
		return
	}
	c.Next()
}
