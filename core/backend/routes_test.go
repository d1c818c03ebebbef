// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/backend"
	"github.com/relabs-tech/restmodel/core/client"
)

func newBackend(t *testing.T) (*backend.Backend, client.Client) {
	router := mux.NewRouter()
	b := backend.New(&backend.Builder{Router: router})
	t.Cleanup(b.Close)
	return b, client.NewWithRouter(router)
}

func TestCustomRoutes(t *testing.T) {
	b, c := newBackend(t)
	songs := b.Collection(backend.Config{
		Path: "songs",
		Routes: backend.Routes{
			"":        backend.Named("index"),
			"count":   backend.Handle(func(ctx *backend.Context) { ctx.JSON(http.StatusOK, ctx.Collection.Count()) }),
			"{title}": {Verbs: map[string]backend.Route{http.MethodPut: backend.Named("store")}},
		},
		Methods: map[string]backend.HandlerFunc{
			"index": func(ctx *backend.Context) {
				ctx.JSON(http.StatusOK, ctx.Collection.SortBy("title").Pluck("title"))
			},
			"store": func(ctx *backend.Context) {
				e := ctx.Collection.New(map[string]interface{}{"id": ctx.Param("title"), "title": ctx.Param("title")})
				if err := e.Save(ctx.Context()); err != nil {
					ctx.Error(http.StatusInternalServerError, err.Error())
					return
				}
				ctx.JSON(http.StatusCreated, e)
			},
		},
	})

	for _, title := range []string{"b", "a"} {
		status, err := c.RawPut("/songs/"+title, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, status)
	}
	var titles []string
	_, err := c.RawGet("/songs", &titles)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles)

	var count int
	_, err = c.RawGet("/songs/count", &count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, songs.Count())

	status, err := c.RawPost("/songs", map[string]interface{}{}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	assert.Panics(t, func() {
		b.Collection(backend.Config{Path: "broken", Routes: backend.Routes{"": backend.Named("missing")}})
	})
}

func TestMiddlewareOverride(t *testing.T) {
	b, c := newBackend(t)
	b.Collection(backend.Config{
		Path:       "notes",
		Operations: core.Create | core.Read,
		Middleware: backend.Middleware{
			Detail: func(ctx *backend.Context) {
				ctx.JSON(http.StatusOK, map[string]interface{}{"wrapped": ctx.Entity})
			},
		},
	})

	var result map[string]interface{}
	status, err := c.RawPost("/notes", map[string]interface{}{"text": "x"}, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	wrapped := result["wrapped"].(map[string]interface{})
	assert.Equal(t, "x", wrapped["text"])

	status, err = c.RawPut("/notes/"+wrapped["id"].(string), map[string]interface{}{}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestLazyLoad(t *testing.T) {
	arena := backend.NewMemoryAdapter()
	b, c := newBackend(t)
	b.Collection(backend.Config{
		Path:     "readings",
		LazyLoad: true,
		Adapter:  backend.Static(arena),
	})

	// records written by someone else
	writer := backend.NewCollection(backend.Config{Name: "readings", Adapter: backend.Static(arena)})
	for _, value := range []int{1, 2} {
		require.NoError(t, writer.New(map[string]interface{}{"value": value}).Save(context.Background()))
	}

	var list []map[string]interface{}
	_, err := c.Collection("reading").List(&list)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	status, err := c.Collection("reading").Item(keyOf(writer.First())).Read(nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestLazyLoadFailure(t *testing.T) {
	b, c := newBackend(t)
	b.Collection(backend.Config{
		Path:     "broken",
		LazyLoad: true,
		Adapter:  backend.Static(failingReader{}),
	})
	status, err := c.RawGet("/broken", nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
}

type failingReader struct{}

func (failingReader) Read(ctx context.Context) ([]map[string]interface{}, error) {
	return nil, assert.AnError
}

// keyOf returns the unique key of e as string
func keyOf(e *backend.Entity) string {
	return backend.KeyString(e.ID())
}

func TestCORSAndCompression(t *testing.T) {
	router := mux.NewRouter()
	b := backend.New(&backend.Builder{Router: router, CORS: true, Compression: true})
	defer b.Close()
	b.Collection(backend.Config{Path: "items"})
	c := client.NewWithRouter(router)

	_, header, err := c.RawGetWithHeader("/items", map[string]string{
		"Origin":          "http://example.com",
		"Accept-Encoding": "gzip",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "*", header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "gzip", header.Get("Content-Encoding"))
}

func TestFailedUpdateKeepsEarlierChanges(t *testing.T) {
	b, c := newBackend(t)
	posts := b.Collection(backend.Config{
		Path: "posts",
		Validate: func(e *backend.Entity) {
			if title, _ := e.Get("title"); title == "" {
				e.Errors().Add("title", "is required")
			}
		},
	})
	posts.Add(map[string]interface{}{"id": "1", "title": "kept"})
	posts.Get("1").Set("likes", 5)

	status, err := c.RawPut("/posts/1", map[string]interface{}{"title": "", "draft": true}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	e := posts.Get("1")
	assert.Equal(t, map[string]interface{}{"likes": 5}, e.Changes())
	title, _ := e.Get("title")
	assert.Equal(t, "kept", title)
	_, ok := e.Get("draft")
	assert.False(t, ok)
}
