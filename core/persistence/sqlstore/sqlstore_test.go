// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package sqlstore

import (
	"context"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/restmodel/core/backend"
	"github.com/relabs-tech/restmodel/core/csql"
)

func openTestDB(t *testing.T) *csql.DB {
	t.Helper()
	db, err := csql.Open(csql.DriverSQLite, "file::memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "entity_post", TableName("post"))
	assert.Equal(t, "entity_user_device", TableName("user-device"))
	assert.Equal(t, "entity_a_b", TableName("a/b"))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	adapters := Adapter(db)

	posts := backend.NewCollection(backend.Config{Name: "post", Adapter: adapters})
	first := posts.New(map[string]interface{}{"title": "first", "likes": 1})
	require.NoError(t, first.Save(ctx))
	second := posts.New(map[string]interface{}{"id": "fixed", "title": "second"})
	require.NoError(t, second.Save(ctx))
	assert.False(t, first.IsNew())

	first.Set("likes", 2)
	require.NoError(t, first.Save(ctx))

	reloaded := backend.NewCollection(backend.Config{Name: "post", Adapter: adapters})
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 2, reloaded.Count())
	assert.Equal(t, []interface{}{"first", "second"}, reloaded.Pluck("title"), "updates keep the creation order")
	likes, _ := reloaded.Get(first.ID()).Get("likes")
	assert.Equal(t, float64(2), likes)

	require.NoError(t, reloaded.Get("fixed").Destroy(ctx))
	store := reloaded.Adapter().(*Store)
	count, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFailedCreateKeepsEntityNew(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	posts := backend.NewCollection(backend.Config{Name: "post", Adapter: Adapter(db)})
	_, err := db.Exec(`DROP TABLE ` + db.Table(TableName("post")))
	require.NoError(t, err)

	e := posts.New(map[string]interface{}{"title": "lost"})
	assert.Error(t, e.Save(ctx))
	assert.True(t, e.IsNew())
	assert.Empty(t, e.Changes())
	assert.Equal(t, 0, posts.Count())
}

func TestNestedResourcesHaveOwnTables(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	router := backend.NewMuxRouter(mux.NewRouter())
	adapters := Adapter(db)
	posts := backend.NewCollection(backend.Config{Name: "post", Path: "posts", Router: router, Adapter: adapters})
	photos := backend.NewCollection(backend.Config{Name: "photo", Path: "photos", Router: router, Adapter: adapters})
	postComments := backend.NewCollection(backend.Config{Name: "comment", Path: "comments", Mount: posts.Detail(), Adapter: adapters})
	photoComments := backend.NewCollection(backend.Config{Name: "comment", Path: "comments", Mount: photos.Detail(), Adapter: adapters})

	require.NoError(t, postComments.New(map[string]interface{}{"text": "on a post"}).Save(ctx))
	assert.Equal(t, db.Table("entity_post_comment"), postComments.Adapter().(*Store).table)
	records, err := photoComments.Adapter().(*Store).Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateConflict(t *testing.T) {
	ctx := context.Background()
	store, err := New(openTestDB(t), "conflict")
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, backend.NewEntity(map[string]interface{}{"id": "1"})))
	assert.Error(t, store.Create(ctx, backend.NewEntity(map[string]interface{}{"id": "1"})))
	assert.NoError(t, store.Update(ctx, backend.NewEntity(map[string]interface{}{"id": "1", "x": true})))

	records, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{{"id": "1", "x": true}}, records)
}

func TestSeparateTables(t *testing.T) {
	ctx := context.Background()
	adapters := Adapter(openTestDB(t))
	posts := backend.NewCollection(backend.Config{Name: "post", Adapter: adapters})
	comments := backend.NewCollection(backend.Config{Name: "comment", Adapter: adapters})
	require.NoError(t, posts.New(nil).Save(ctx))

	records, err := comments.Adapter().(*Store).Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Same(t, posts.Adapter(), posts.Extend(backend.Config{}).Adapter())
}
