// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/events"
)

func TestCollectionAddDeduplicates(t *testing.T) {
	c := NewCollection(Config{Name: "post"})
	first := c.New(map[string]interface{}{"id": 1, "title": "first"})
	c.Add(first)
	c.Add(map[string]interface{}{"id": "1", "title": "merged"})
	c.Add([]interface{}{
		map[string]interface{}{"id": 2},
		map[string]interface{}{"title": "pending"},
	})

	require.Equal(t, 3, c.Count())
	assert.Same(t, first, c.Get(1))
	title, _ := first.Get("title")
	assert.Equal(t, "merged", title)
	assert.Len(t, c.List(), 2)
	assert.Len(t, c.Pending(), 1)

	// re-adding the same entity is a no-op
	c.Add(first)
	assert.Equal(t, 3, c.Count())

	assert.Panics(t, func() { c.Add(42) })
}

func TestCollectionAddAndRemoveEvents(t *testing.T) {
	c := NewCollection(Config{Name: "post"})
	var received []string
	c.Events().OnAny(func(ev events.Event[*Entity]) {
		received = append(received, ev.Name)
	})
	e := c.New(map[string]interface{}{"id": 1})
	c.Add(e)
	c.Add(map[string]interface{}{"id": 1, "title": "merged"})
	assert.True(t, c.Remove(e))
	assert.False(t, c.Remove(e))
	assert.Equal(t, []string{"add", "remove"}, received)
}

func TestCollectionGet(t *testing.T) {
	c := NewCollection(Config{Name: "user", UniqueKey: "email"})
	c.Add(map[string]interface{}{"email": "a@b.c"})
	assert.NotNil(t, c.Get("a@b.c"))
	assert.Nil(t, c.Get("x@b.c"))
	assert.Nil(t, c.Get(nil))
	assert.Equal(t, "email", c.First().KeyField())
}

func TestCollectionEnumerable(t *testing.T) {
	c := NewCollection(Config{Name: "post"})
	c.Add([]map[string]interface{}{
		{"id": 1, "title": "b", "likes": 10},
		{"id": 2, "title": "a", "likes": 2},
		{"id": 3, "title": "c"},
	})

	assert.Equal(t, []interface{}{"b", "a", "c"}, c.Pluck("title"))
	assert.Equal(t, []interface{}{"a", "b", "c"}, c.SortBy("title").Pluck("title"))
	assert.Equal(t, []interface{}{3, 2, 1}, c.SortBy("likes").Pluck("id"), "missing values sort first")
	assert.Equal(t, []interface{}{3, 2, 1}, c.Reverse().Pluck("id"))
	assert.Equal(t, 3, c.Count(), "chained collections leave c untouched")

	popular := c.Select(func(e *Entity, _ int) bool {
		v, _ := e.Get("likes")
		return v != nil && v.(int) > 5
	})
	assert.Equal(t, []interface{}{1}, popular.Pluck("id"))
	assert.Equal(t, 2, c.Detect(func(e *Entity, _ int) bool {
		v, _ := e.Get("title")
		return v == "a"
	}).ID())
	assert.Equal(t, []interface{}{"b!", "a!", "c!"}, c.Map(func(e *Entity, _ int) interface{} {
		v, _ := e.Get("title")
		return v.(string) + "!"
	}))
	assert.Equal(t, 1, c.First().ID())
	assert.Equal(t, 3, c.Last().ID())

	// entities created through a chain belong to the base collection
	e := popular.New(map[string]interface{}{"id": 4})
	require.NoError(t, e.Save(context.Background()))
	assert.Same(t, c, e.Collection())
	assert.Equal(t, 4, c.Count())
}

func TestCollectionExtend(t *testing.T) {
	router := NewMuxRouter(mux.NewRouter())
	base := NewCollection(Config{
		Router:     router,
		Path:       "posts",
		Defaults:   map[string]interface{}{"draft": true},
		Operations: core.Create | core.Read,
	})
	assert.Equal(t, "posts", base.Name())
	assert.Equal(t, "id", base.UniqueKey())

	same := base.Extend(Config{Defaults: map[string]interface{}{"draft": false}})
	assert.Same(t, base, same.Parent())
	assert.Equal(t, "posts", same.Name())
	assert.Equal(t, base.Namespace(), same.Namespace(), "same mount shares the routes")
	assert.NotEqual(t, base.Keyname(), same.Keyname())
	assert.Equal(t, core.Create|core.Read, same.Operations())
	draft, _ := same.New(nil).Get("draft")
	assert.Equal(t, false, draft)

	moved := base.Extend(Config{Path: "articles"})
	assert.Equal(t, "articles", moved.Name())
	assert.Equal(t, "/articles", moved.Namespace().Path())

	filtered := base.With(func(e *Entity, _ int) bool { return false })
	assert.Equal(t, 0, filtered.Count())
}

func TestCollectionLoad(t *testing.T) {
	arena := NewMemoryAdapter()
	seed := NewCollection(Config{Name: "post", Adapter: Static(arena)})
	for i := 0; i < 3; i++ {
		require.NoError(t, seed.New(map[string]interface{}{"n": i}).Save(context.Background()))
	}

	c := NewCollection(Config{Name: "post", Adapter: Static(arena)})
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []interface{}{0, 1, 2}, c.Pluck("n"))
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, 3, c.Count(), "loading twice does not duplicate")

	broken := NewCollection(Config{Name: "post", Adapter: Static(brokenAdapter{})})
	err := broken.Load(context.Background())
	var persistenceError *PersistenceError
	require.ErrorAs(t, err, &persistenceError)
	assert.Equal(t, core.OperationRead, persistenceError.Operation)
}

func TestMemoryArenasByName(t *testing.T) {
	adapters := Memory()
	a := NewCollection(Config{Name: "post", Adapter: adapters})
	b := a.Extend(Config{})
	c := NewCollection(Config{Name: "comment", Adapter: adapters})
	assert.Same(t, a.Adapter(), b.Adapter())
	assert.NotSame(t, a.Adapter(), c.Adapter())
}

func TestMemoryAdapterConflict(t *testing.T) {
	arena := NewMemoryAdapter()
	c := NewCollection(Config{Name: "post", Adapter: Static(arena)})
	e := c.New(nil)
	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, 1, arena.Len())

	require.ErrorIs(t, arena.Create(context.Background(), NewEntity(map[string]interface{}{"id": e.ID()})), ErrAlreadyExists)
	require.NoError(t, arena.Destroy(context.Background(), e))
	require.NoError(t, arena.Destroy(context.Background(), e))
	assert.Equal(t, 0, arena.Len())
}

func TestBelongsTo(t *testing.T) {
	posts := NewCollection(Config{Name: "post"})
	comments := NewCollection(Config{Name: "comment"})
	post := posts.New(map[string]interface{}{"id": 1})
	comments.Add([]map[string]interface{}{
		{"id": "a", "post_id": 1},
		{"id": "b", "post_id": "1"},
		{"id": "c", "post_id": 2},
		{"id": "d"},
	})

	related := BelongsTo("post_id")(post, comments)
	ids := []interface{}{}
	for _, e := range related {
		ids = append(ids, e.ID())
	}
	assert.Equal(t, []interface{}{"a", "b"}, ids)

	e := comments.New(nil)
	RelateBy("post_id")(post, e)
	v, _ := e.Get("post_id")
	assert.Equal(t, 1, v)
}

func TestCollectionView(t *testing.T) {
	comments := NewCollection(Config{Name: "comment", Adapter: Memory()})
	comments.Add(map[string]interface{}{"id": "a"})
	view := comments.view(comments.All())

	assert.True(t, view.IsView())
	assert.Equal(t, comments.Keyname(), view.Keyname())
	assert.Same(t, comments.Adapter(), view.Adapter())

	e := view.New(map[string]interface{}{"id": "b"})
	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, 2, comments.Count(), "new entities of a view belong to the base collection")
	assert.Equal(t, 1, view.Count())
}
