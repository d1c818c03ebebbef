// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import "context"

// Adapter is the persistence binding of a collection. It may implement any
// subset of Creator, Reader, Updater and Destroyer. A missing capability means
// the operation succeeds in memory only.
type Adapter interface{}

// Creator persists new entities. It may assign the unique key with Entity.Set.
type Creator interface {
	Create(ctx context.Context, e *Entity) error
}

// Reader reads all stored records of a collection
type Reader interface {
	Read(ctx context.Context) ([]map[string]interface{}, error)
}

// Updater persists changes of existing entities
type Updater interface {
	Update(ctx context.Context, e *Entity) error
}

// Destroyer deletes entities
type Destroyer interface {
	Destroy(ctx context.Context, e *Entity) error
}

// AdapterFunc creates the adapter for a collection. It is called once when the
// collection is constructed and once for every collection derived from it.
type AdapterFunc func(c *Collection) Adapter

// Static returns an AdapterFunc which binds the same adapter to every collection
func Static(adapter Adapter) AdapterFunc {
	return func(*Collection) Adapter {
		return adapter
	}
}

// bindAdapter is the first plugin of every collection
func bindAdapter(c *Collection) {
	if c.config.Adapter != nil {
		c.adapter = c.config.Adapter(c)
	}
}
