// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/backend"
)

var configurationYAML = `
collections:
  # children first, the backend sorts by depth
  - resource: user/device
    operations: CRUD
    relation: user_id
  - resource: user
    path: people
    unique_key: email
    operations: CR
    lazy_load: true
`

func TestParseConfiguration(t *testing.T) {
	config, err := backend.ParseConfiguration([]byte(configurationYAML), "yaml")
	require.NoError(t, err)
	require.Len(t, config.Collections, 2)

	configJSON, err := backend.ParseConfiguration([]byte(`{"collections":[{"resource":"user","operations":"RU"}]}`), "")
	require.NoError(t, err)
	assert.Equal(t, core.Read|core.Update, configJSON.Collections[0].Operations)

	testCases := []struct {
		name   string
		data   string
		format string
	}{
		{"unknown format", `{}`, "toml"},
		{"broken json", `{`, "json"},
		{"unknown operation", `{"collections":[{"resource":"user","operations":"CRX"}]}`, "json"},
		{"empty resource", `{"collections":[{"resource":""}]}`, "json"},
		{"trailing slash", `{"collections":[{"resource":"user/"}]}`, "json"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := backend.ParseConfiguration([]byte(tc.data), tc.format)
			assert.Error(t, err)
		})
	}
}

func TestConfigurationNesting(t *testing.T) {
	s := CreateTestService(configurationYAML, "yaml")
	defer s.Close()

	var user map[string]interface{}
	status, err := s.client.RawPost("/people", map[string]interface{}{"email": "a@b.c"}, &user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	_, err = s.client.RawGet("/people/a@b.c", nil)
	require.NoError(t, err)

	status, err = s.client.RawPut("/people/a@b.c", map[string]interface{}{"name": "x"}, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	var device map[string]interface{}
	_, err = s.client.RawPost("/people/a@b.c/devices", map[string]interface{}{"thing": "1"}, &device)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", device["user_id"])
	_, err = s.client.RawPut("/people/a@b.c/devices/"+device["id"].(string), map[string]interface{}{"thing": "2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "a@b.c", user["email"])
	assert.Equal(t, []string{"user", "user/device"}, s.backend.Resources())
}

func TestConfigurationErrors(t *testing.T) {
	b := backend.New(&backend.Builder{Router: mux.NewRouter()})
	defer b.Close()

	err := b.Configure(backend.Configuration{Collections: nil})
	require.NoError(t, err)

	config, err := backend.ParseConfiguration([]byte(`{"collections":[{"resource":"user/device"}]}`), "json")
	require.NoError(t, err)
	err = b.Configure(config)
	assert.True(t, errors.Is(err, backend.ErrConfiguration), "parent must exist")

	config, err = backend.ParseConfiguration([]byte(`{"collections":[{"resource":"user","relation":"x"}]}`), "json")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Configure(config), backend.ErrConfiguration)

	config, err = backend.ParseConfiguration([]byte(`{"collections":[{"resource":"tag","list_only":true},{"resource":"tag/x"}]}`), "json")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Configure(config), backend.ErrConfiguration, "list only collections have no children")

	assert.Panics(t, func() {
		backend.New(&backend.Builder{Router: mux.NewRouter(), Config: `{"collections":[{"resource":"a/b"}]}`})
	})
	assert.Panics(t, func() { backend.New(&backend.Builder{}) })
}

func TestConfigurationSameNamedResources(t *testing.T) {
	s := CreateTestService(`
collections:
  - resource: post
  - resource: photo
  - resource: post/comment
    lazy_load: true
  - resource: photo/comment
    lazy_load: true
`, "yaml")
	defer s.Close()

	var post, photo map[string]interface{}
	_, err := s.client.RawPost("/posts", map[string]interface{}{}, &post)
	require.NoError(t, err)
	_, err = s.client.RawPost("/photos", map[string]interface{}{}, &photo)
	require.NoError(t, err)

	status, err := s.client.RawPost("/posts/"+post["id"].(string)+"/comments", map[string]interface{}{"text": "on a post"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	var comments []map[string]interface{}
	_, err = s.client.RawGet("/photos/"+photo["id"].(string)+"/comments", &comments)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = s.client.RawGet("/posts/"+post["id"].(string)+"/comments", &comments)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	assert.Equal(t, "post/comment", s.backend.Resource("post/comment").Resource())
}
