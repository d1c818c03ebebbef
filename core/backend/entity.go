// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"sort"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/events"
	"github.com/relabs-tech/restmodel/core/logger"
)

// Entity is one addressable record of a collection.
//
// Setting a field does not touch the committed attributes, it records a pending
// change. Pending changes are merged into the attributes only after the
// persistence adapter of the owning collection reported success for Save or
// Destroy.
//
// Events emitted on the entity: "change:<field>", "change", "create", "update" and
// "destroy".
type Entity struct {
	uid    string
	owner  *Collection
	store  *attributeStore
	errors *Errors
	events events.Bus[*Entity]
}

// NewEntity creates an entity which does not belong to any collection. Its unique key is "id"
// and Save and Destroy never persist anything.
func NewEntity(attributes map[string]interface{}) *Entity {
	return newEntity(nil, attributes)
}

func newEntity(owner *Collection, attributes map[string]interface{}) *Entity {
	initial := map[string]interface{}{}
	if owner != nil {
		for k, v := range owner.config.Defaults {
			initial[k] = v
		}
	}
	for k, v := range attributes {
		initial[k] = v
	}
	e := &Entity{
		uid:    uuid.NewString(),
		owner:  owner,
		store:  newAttributeStore(initial),
		errors: NewErrors(),
	}
	if owner != nil && owner.config.Initialize != nil {
		owner.config.Initialize(e)
	}
	return e
}

// UID returns the process unique identifier of the entity. It is not the
// unique key, use ID() for that.
func (e *Entity) UID() string {
	return e.uid
}

// Collection returns the collection the entity belongs to, or nil
func (e *Entity) Collection() *Collection {
	return e.owner
}

// KeyField returns the name of the unique key attribute
func (e *Entity) KeyField() string {
	if e.owner == nil {
		return defaultUniqueKey
	}
	return e.owner.UniqueKey()
}

// Get returns the pending value of field if there is one, otherwise the committed value.
func (e *Entity) Get(field string) (interface{}, bool) {
	return e.store.get(field)
}

// Set records value as pending change for field. Setting the committed value
// again removes the pending change.
func (e *Entity) Set(field string, value interface{}) *Entity {
	e.store.set(field, value)
	e.events.Emit("change:"+field, e)
	return e
}

// SetAll sets all fields of values and emits a single "change" event
// afterwards. Fields are set in alphabetical order.
func (e *Entity) SetAll(values map[string]interface{}) *Entity {
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		e.Set(field, values[field])
	}
	e.events.Emit("change", e)
	return e
}

// Attributes returns the committed attributes merged with the pending changes
func (e *Entity) Attributes() map[string]interface{} {
	return e.store.merged()
}

// ToJSON returns the representation of the entity, the same as Attributes()
func (e *Entity) ToJSON() map[string]interface{} {
	return e.Attributes()
}

// MarshalJSON implements json.Marshaler
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Attributes())
}

// Changes returns a copy of the pending changes
func (e *Entity) Changes() map[string]interface{} {
	return e.store.pending()
}

// HasChanges returns true if there are pending changes
func (e *Entity) HasChanges() bool {
	return e.store.hasChanges()
}

// Pick returns the current values of keys. Keys without value are returned as nil.
func (e *Entity) Pick(keys ...string) map[string]interface{} {
	result := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		v, _ := e.Get(key)
		result[key] = v
	}
	return result
}

// Reset discards all pending changes and errors
func (e *Entity) Reset() *Entity {
	e.store.reset()
	e.errors.Clear()
	return e
}

// ID returns the value of the unique key
func (e *Entity) ID() interface{} {
	v, _ := e.Get(e.KeyField())
	return v
}

// IsNew returns true if the entity has no unique key yet. nil and the empty
// string do not count as key.
func (e *Entity) IsNew() bool {
	v, ok := e.Get(e.KeyField())
	return isUndefined(v, ok)
}

// Errors returns the validation errors of the last validation
func (e *Entity) Errors() *Errors {
	return e.errors
}

// Valid clears the errors, runs the validation of the collection and returns true
// if no errors were added.
func (e *Entity) Valid() bool {
	e.errors.Clear()
	if e.owner != nil && e.owner.config.Validate != nil {
		e.owner.config.Validate(e)
	}
	return e.errors.Size() == 0
}

// On registers a listener for an entity event
func (e *Entity) On(name string, fn events.Listener[*Entity]) *events.Subscription {
	return e.events.On(name, fn)
}

// Events returns the event bus of the entity
func (e *Entity) Events() *events.Bus[*Entity] {
	return &e.events
}

// Save validates the entity and persists it, with create for new entities and
// update otherwise. An invalid entity is not persisted, Save returns a
// *ValidationError instead.
func (e *Entity) Save(ctx context.Context) error {
	if !e.Valid() {
		return &ValidationError{Errors: e.errors.All()}
	}
	operation := core.OperationUpdate
	if e.IsNew() {
		operation = core.OperationCreate
	}
	return e.persist(ctx, operation)
}

// Destroy deletes the entity from the persistence and removes it from its collection
func (e *Entity) Destroy(ctx context.Context) error {
	return e.persist(ctx, core.OperationDestroy)
}

// persist calls the adapter capability for operation, if the collection has one. Only
// after success the pending changes are committed, the collection is updated and the
// operation event is emitted. A failed call leaves the pending changes as they were,
// including a unique key the adapter assigned.
func (e *Entity) persist(ctx context.Context, operation core.Operation) error {
	var err error
	pending := e.store.pending()
	if e.owner != nil {
		if adapter := e.owner.Adapter(); adapter != nil {
			switch operation {
			case core.OperationCreate:
				if creator, ok := adapter.(Creator); ok {
					err = creator.Create(ctx, e)
				}
			case core.OperationUpdate:
				if updater, ok := adapter.(Updater); ok {
					err = updater.Update(ctx, e)
				}
			case core.OperationDestroy:
				if destroyer, ok := adapter.(Destroyer); ok {
					err = destroyer.Destroy(ctx, e)
				}
			}
		}
	}
	if err != nil {
		e.store.restore(pending)
		name := ""
		if e.owner != nil {
			name = e.owner.Name()
		}
		logger.FromContext(ctx).WithError(err).Errorf("%s %s failed", operation, name)
		return &PersistenceError{Operation: operation, Collection: name, Err: err}
	}

	e.store.commit()
	e.errors.Clear()
	if e.owner != nil {
		if operation == core.OperationDestroy {
			e.owner.Remove(e)
		} else {
			e.owner.Add(e)
		}
	}
	e.events.Emit(string(operation), e)
	if e.owner != nil {
		e.owner.events.Emit(string(operation), e)
	}
	return nil
}
