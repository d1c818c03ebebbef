// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
)

// Tree is the chain of nested collections from the outermost mounted collection
// down to a bound one. Its length is the nesting depth.
type Tree []*Collection

// newTree walks up the namespace contexts, starting at the list namespace of c
func newTree(c *Collection, list *Namespace) Tree {
	tree := Tree{c}
	visited := map[*Collection]bool{c: true}
	context := list.Context()
	for context != nil && !visited[context] {
		visited[context] = true
		tree = append(Tree{context}, tree...)
		if !context.routable() {
			break
		}
		next := context.Namespace().Context()
		if next == nil || next == context {
			break
		}
		context = next
	}
	return tree
}

// Root returns the outermost collection
func (t Tree) Root() *Collection {
	if len(t) == 0 {
		return nil
	}
	return t[0]
}

// Leaf returns the collection the tree was built for
func (t Tree) Leaf() *Collection {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1]
}

// Parent returns the collection right above the leaf, or nil
func (t Tree) Parent() *Collection {
	if len(t) < 2 {
		return nil
	}
	return t[len(t)-2]
}

// Names returns the names of all collections, root first
func (t Tree) Names() []string {
	names := make([]string, len(t))
	for i, c := range t {
		names[i] = c.Name()
	}
	return names
}

// Delegate returns the handler which goes first in every route of the leaf
// collection. It resolves which collection and which parent entity the request
// works on:
//
//   - the stack is attached to the request and the leaf becomes the active collection
//   - the route parameter of the parent collection selects the parent entity. With a Key
//     relationship an unknown parent is 404 Not Found
//   - with a Key relationship and a parent entity, the active collection is replaced by
//     a view of the related entities, for this request only
//   - with LazyLoad, the collection is loaded from its adapter before the chain continues
func (t Tree) Delegate() HandlerFunc {
	return func(c *Context) {
		c.Stack = t
		active := t.Leaf()
		c.Collection = active

		if parent := t.Parent(); parent != nil {
			if id, ok := c.Params[parent.Keyname()]; ok {
				if parent.config.LazyLoad {
					if err := parent.Load(c.Context()); err != nil {
						c.Error(http.StatusInternalServerError, err.Error())
						return
					}
				}
				c.Parent = parent.Get(id)
				if c.Parent == nil && active.config.Key != nil {
					c.Error(http.StatusNotFound, "no such "+parent.Name())
					return
				}
			}
		}

		if active.config.LazyLoad {
			if err := active.Load(c.Context()); err != nil {
				c.Error(http.StatusInternalServerError, err.Error())
				return
			}
		}

		if active.config.Key != nil && c.Parent != nil {
			c.Collection = active.view(active.config.Key(c.Parent, active))
		}

		c.Next()

		if b := active.backend; b != nil && b.metrics != nil {
			b.metrics.request(active.Name(), c.Request.Method, c.Status())
		}
	}
}
