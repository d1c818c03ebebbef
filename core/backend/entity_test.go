// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/events"
)

var errBroken = errors.New("broken")

// brokenAdapter fails every operation
type brokenAdapter struct{}

func (brokenAdapter) Create(ctx context.Context, e *Entity) error  { return errBroken }
func (brokenAdapter) Update(ctx context.Context, e *Entity) error  { return errBroken }
func (brokenAdapter) Destroy(ctx context.Context, e *Entity) error { return errBroken }
func (brokenAdapter) Read(ctx context.Context) ([]map[string]interface{}, error) {
	return nil, errBroken
}

// keyingAdapter assigns a key like the stores do, then fails
type keyingAdapter struct{}

func (keyingAdapter) Create(ctx context.Context, e *Entity) error {
	e.Set(e.KeyField(), "assigned")
	return errBroken
}

func (keyingAdapter) Update(ctx context.Context, e *Entity) error {
	e.Set("title", "changed by adapter")
	return errBroken
}

func TestEntityFailedSaveRestoresChanges(t *testing.T) {
	c := NewCollection(Config{Name: "post", Adapter: Static(keyingAdapter{})})
	e := c.New(map[string]interface{}{"title": "draft"})
	e.Set("likes", 1)
	before := e.Changes()

	err := e.Save(context.Background())
	require.ErrorIs(t, err, errBroken)
	assert.Equal(t, before, e.Changes())
	assert.True(t, e.IsNew())
	assert.Equal(t, 0, c.Count())

	existing := c.New(map[string]interface{}{"id": "1", "title": "draft"})
	existing.Set("likes", 2)
	before = existing.Changes()
	require.ErrorIs(t, existing.Save(context.Background()), errBroken)
	assert.Equal(t, before, existing.Changes())
	title, _ := existing.Get("title")
	assert.Equal(t, "draft", title)
}

func TestEntityChangeShadowing(t *testing.T) {
	e := NewEntity(map[string]interface{}{"id": 1, "title": "first"})
	assert.False(t, e.HasChanges())

	e.Set("title", "second")
	v, _ := e.Get("title")
	assert.Equal(t, "second", v)
	assert.Equal(t, map[string]interface{}{"title": "second"}, e.Changes())

	// setting the committed value again is not a change
	e.Set("title", "first")
	assert.False(t, e.HasChanges())

	e.Set("title", "third").Reset()
	v, _ = e.Get("title")
	assert.Equal(t, "first", v)
	assert.Empty(t, e.Changes())
}

func TestEntityNumbersCompareNumerically(t *testing.T) {
	e := NewEntity(map[string]interface{}{"id": 1, "likes": 3})
	e.Set("likes", float64(3))
	assert.False(t, e.HasChanges())
	e.Set("likes", "3")
	assert.True(t, e.HasChanges())
}

func TestEntityIsNew(t *testing.T) {
	assert.True(t, NewEntity(nil).IsNew())
	assert.True(t, NewEntity(map[string]interface{}{"id": nil}).IsNew())
	assert.True(t, NewEntity(map[string]interface{}{"id": ""}).IsNew())
	assert.False(t, NewEntity(map[string]interface{}{"id": 0}).IsNew())
	assert.False(t, NewEntity(map[string]interface{}{"id": "a"}).IsNew())
}

func TestEntityEvents(t *testing.T) {
	e := NewEntity(map[string]interface{}{"id": 1})
	var received []string
	e.Events().OnAny(func(ev events.Event[*Entity]) {
		received = append(received, ev.Name)
	})
	e.SetAll(map[string]interface{}{"b": 2, "a": 1})
	assert.Equal(t, []string{"change:a", "change:b", "change"}, received)
}

func TestEntityPick(t *testing.T) {
	e := NewEntity(map[string]interface{}{"id": 1, "title": "t", "body": "b"})
	assert.Equal(t, map[string]interface{}{"title": "t", "missing": nil}, e.Pick("title", "missing"))
}

func TestEntitySaveCommitsOnSuccess(t *testing.T) {
	c := NewCollection(Config{Name: "post", Adapter: Static(NewMemoryAdapter())})
	var created []*Entity
	c.On("create", func(ev events.Event[*Entity]) {
		created = append(created, ev.Payload)
	})

	e := c.New(map[string]interface{}{"title": "hello"})
	assert.Equal(t, 0, c.Count(), "new entities are not added before they are saved")

	require.NoError(t, e.Save(context.Background()))
	assert.False(t, e.IsNew())
	assert.False(t, e.HasChanges())
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, []*Entity{e}, created)
	assert.Same(t, e, c.Get(e.ID()))

	e.Set("title", "updated")
	require.NoError(t, e.Save(context.Background()))
	assert.False(t, e.HasChanges())

	require.NoError(t, e.Destroy(context.Background()))
	assert.Equal(t, 0, c.Count())
}

func TestEntitySaveKeepsChangesOnFailure(t *testing.T) {
	c := NewCollection(Config{Name: "post", Adapter: Static(brokenAdapter{})})
	var fired int
	c.Events().OnAny(func(events.Event[*Entity]) {
		fired++
	})

	e := c.New(map[string]interface{}{"id": "1", "title": "hello"})
	err := e.Save(context.Background())
	require.Error(t, err)

	var persistenceError *PersistenceError
	require.True(t, errors.As(err, &persistenceError))
	assert.Equal(t, core.OperationUpdate, persistenceError.Operation)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, 0, fired)

	existing := c.New(map[string]interface{}{"id": "2", "title": "committed"})
	c.Add(existing)
	existing.Set("title", "pending")
	require.Error(t, existing.Save(context.Background()))
	assert.Equal(t, map[string]interface{}{"title": "pending"}, existing.Changes())

	require.Error(t, existing.Destroy(context.Background()))
	assert.Same(t, existing, c.Get("2"))
}

func TestEntityValidation(t *testing.T) {
	c := NewCollection(Config{
		Name:    "post",
		Adapter: Static(NewMemoryAdapter()),
		Validate: func(e *Entity) {
			if v, ok := e.Get("title"); isUndefined(v, ok) {
				e.Errors().Add("title", "is required")
			}
		},
	})
	e := c.New(nil)
	err := e.Save(context.Background())
	var validationError *ValidationError
	require.True(t, errors.As(err, &validationError))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, map[string][]string{"title": {"is required"}}, validationError.Errors)
	assert.True(t, e.IsNew())
	assert.Equal(t, 0, c.Count())

	e.Set("title", "hello")
	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, 0, e.Errors().Size())
}

func TestEntityDefaultsAndInitialize(t *testing.T) {
	c := NewCollection(Config{
		Name:     "post",
		Defaults: map[string]interface{}{"draft": true, "likes": 0},
		Initialize: func(e *Entity) {
			e.Set("initialized", true)
		},
	})
	e := c.New(map[string]interface{}{"likes": 5})
	assert.Equal(t, map[string]interface{}{"draft": true, "likes": 5, "initialized": true}, e.Attributes())
}

func TestEntityWithoutAdapter(t *testing.T) {
	c := NewCollection(Config{Name: "post"})
	e := c.New(map[string]interface{}{"id": 7})
	require.NoError(t, e.Save(context.Background()))
	assert.Same(t, e, c.Get("7"))
}
