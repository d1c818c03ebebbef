// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrAlreadyExists is returned by the memory adapter when an entity is created
// with a key which is already stored
var ErrAlreadyExists = errors.New("already exists")

// MemoryAdapter is an in-memory arena of records keyed by their unique key. It
// assigns a uuid to new entities without key.
type MemoryAdapter struct {
	mutex   sync.RWMutex
	records map[string]map[string]interface{}
	order   []string
}

// NewMemoryAdapter returns an empty arena
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{records: map[string]map[string]interface{}{}}
}

// Memory returns an AdapterFunc which binds one arena per resource, see Collection.Resource.
// Collections derived from another one without a new name share its arena.
func Memory() AdapterFunc {
	var mutex sync.Mutex
	arenas := map[string]*MemoryAdapter{}
	return func(c *Collection) Adapter {
		mutex.Lock()
		defer mutex.Unlock()
		resource := c.Resource()
		arena, ok := arenas[resource]
		if !ok {
			arena = NewMemoryAdapter()
			arenas[resource] = arena
		}
		return arena
	}
}

// Create implements Creator
func (m *MemoryAdapter) Create(ctx context.Context, e *Entity) error {
	if e.IsNew() {
		e.Set(e.KeyField(), uuid.NewString())
	}
	key := KeyString(e.ID())

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.records[key]; ok {
		return ErrAlreadyExists
	}
	m.records[key] = e.Attributes()
	m.order = append(m.order, key)
	return nil
}

// Update implements Updater. Unknown keys are inserted.
func (m *MemoryAdapter) Update(ctx context.Context, e *Entity) error {
	key := KeyString(e.ID())
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.records[key]; !ok {
		m.order = append(m.order, key)
	}
	m.records[key] = e.Attributes()
	return nil
}

// Destroy implements Destroyer
func (m *MemoryAdapter) Destroy(ctx context.Context, e *Entity) error {
	key := KeyString(e.ID())
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.records[key]; !ok {
		return nil
	}
	delete(m.records, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Read implements Reader, records are returned in insertion order
func (m *MemoryAdapter) Read(ctx context.Context) ([]map[string]interface{}, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	result := make([]map[string]interface{}, 0, len(m.order))
	for _, key := range m.order {
		record := make(map[string]interface{}, len(m.records[key]))
		for k, v := range m.records[key] {
			record[k] = v
		}
		result = append(result, record)
	}
	return result, nil
}

// Len returns the number of stored records
func (m *MemoryAdapter) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.records)
}
