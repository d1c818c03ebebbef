// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"sort"
	"strings"
)

// Traversal over a snapshot of the entities. Select, Sort, SortBy, SortByFunc
// and Reverse return a chained collection: it shares configuration, routes and
// adapter with c but holds its own sequence of entities.

// chain returns a collection like c holding entities
func (c *Collection) chain(entities []*Entity) *Collection {
	d := &Collection{
		config:   c.config,
		uid:      c.uid,
		keyname:  c.keyname,
		parent:   c.parent,
		origin:   c.home(),
		isView:   c.isView,
		backend:  c.backend,
		adapter:  c.adapter,
		list:     c.list,
		detail:   c.detail,
		tree:     c.tree,
		entities: entities,
	}
	return d
}

// Each calls fn for every entity
func (c *Collection) Each(fn func(e *Entity, i int)) *Collection {
	for i, e := range c.All() {
		fn(e, i)
	}
	return c
}

// Map returns the results of fn for every entity
func (c *Collection) Map(fn func(e *Entity, i int) interface{}) []interface{} {
	all := c.All()
	result := make([]interface{}, len(all))
	for i, e := range all {
		result[i] = fn(e, i)
	}
	return result
}

// Filter returns the entities for which predicate is true
func (c *Collection) Filter(predicate func(e *Entity, i int) bool) []*Entity {
	var result []*Entity
	for i, e := range c.All() {
		if predicate(e, i) {
			result = append(result, e)
		}
	}
	return result
}

// Select returns a chained collection of the entities for which predicate is true
func (c *Collection) Select(predicate func(e *Entity, i int) bool) *Collection {
	return c.chain(c.Filter(predicate))
}

// Detect returns the first entity for which predicate is true, or nil
func (c *Collection) Detect(predicate func(e *Entity, i int) bool) *Entity {
	for i, e := range c.All() {
		if predicate(e, i) {
			return e
		}
	}
	return nil
}

// Pluck returns the current value of field for every entity
func (c *Collection) Pluck(field string) []interface{} {
	return c.Map(func(e *Entity, _ int) interface{} {
		v, _ := e.Get(field)
		return v
	})
}

// Sort returns a chained collection sorted by less. The sort is stable.
func (c *Collection) Sort(less func(a, b *Entity) bool) *Collection {
	all := c.All()
	sort.SliceStable(all, func(i, j int) bool { return less(all[i], all[j]) })
	return c.chain(all)
}

// SortBy returns a chained collection sorted by the value of field
func (c *Collection) SortBy(field string) *Collection {
	return c.SortByFunc(func(e *Entity) interface{} {
		v, _ := e.Get(field)
		return v
	})
}

// SortByFunc returns a chained collection sorted by the value extract returns for
// every entity
func (c *Collection) SortByFunc(extract func(e *Entity) interface{}) *Collection {
	return c.Sort(func(a, b *Entity) bool {
		return compareValues(extract(a), extract(b)) < 0
	})
}

// Reverse returns a chained collection in reverse order
func (c *Collection) Reverse() *Collection {
	all := c.All()
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return c.chain(all)
}

// compareValues orders nil first, then numbers numerically, everything else
// by its string form
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, aIsNumber := toFloat(a)
	fb, bIsNumber := toFloat(b)
	if aIsNumber && bIsNumber {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(KeyString(a), KeyString(b))
}
