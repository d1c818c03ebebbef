// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice if one request handler needs to call other handlers to fulfill
its task. It is also perfectly suited for unit tests.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/restmodel/core"
)

// Client provides easy access to the REST API.
type Client struct {
	router     http.Handler
	httpClient *http.Client
	url        string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the router (typically a *mux.Router)
//
// WithContext() specifies a different base context all together.
func NewWithRouter(router http.Handler) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the base context of all requests
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Collection represents a collection of particular resource
type Collection struct {
	client     *Client
	resources  []string
	selectors  map[string]string
	parameters []string
}

// Collection returns a new collection client. Nested resources are separated
// by a slash, like "post/comment", which resolves to /posts/{post}/comments
func (c Client) Collection(resource string) Collection {
	return Collection{
		client:    &c,
		resources: strings.Split(resource, "/"),
	}
}

// WithSelector returns a new collection client with the identifier of one of
// the parent resources set
func (r Collection) WithSelector(resource string, id string) Collection {
	// we want a true copy to avoid side effects
	selectors := map[string]string{resource: id}
	for k, v := range r.selectors {
		if k != resource {
			selectors[k] = v
		}
	}
	r.selectors = selectors
	return r
}

// WithParent returns a new collection client with the direct parent selector set
func (r Collection) WithParent(parentID string) Collection {
	if len(r.resources) < 2 {
		panic("no parent resource to select")
	}
	return r.WithSelector(r.resources[len(r.resources)-2], parentID)
}

// WithParameter returns a new collection client with a URL parameter added.
func (r Collection) WithParameter(key string, value string) Collection {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	// we want a true copy to avoid side effects
	r.parameters = append(append([]string{}, r.parameters...), parameter)
	return r
}

// WithFilter returns a new collection client with a URL filter parameter added.
// This is a shortcut for WithParameter("filter", key+"="+value)
func (r Collection) WithFilter(key string, value string) Collection {
	return r.WithParameter("filter", key+"="+value)
}

// WithWhere returns a new collection client with a where expression added.
func (r Collection) WithWhere(expression string) Collection {
	return r.WithParameter("where", expression)
}

// CollectionPath returns the created path for the collection plus optional query strings
func (r Collection) CollectionPath() string {
	path := ""
	for i, resource := range r.resources {
		path += "/" + core.Plural(resource)
		if i < len(r.resources)-1 {
			selector, ok := r.selectors[resource]
			if !ok {
				panic("missing selector for " + resource)
			}
			path += "/" + url.PathEscape(selector)
		}
	}
	if len(r.parameters) > 0 {
		path += "?" + strings.Join(r.parameters, "&")
	}
	return path
}

func (r Collection) basePath() string {
	r.parameters = nil
	return r.CollectionPath()
}

// Create creates a new item.
//
// The operation corresponds to a POST request.
//
// Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (r Collection) Create(body interface{}, result interface{}) (int, error) {
	return r.client.RawPost(r.basePath(), body, result)
}

// List gets the collection, or the page of it selected by the parameters.
//
// The operation corresponds to a GET request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result can be []map[string]interface{} or a raw *[]byte.
func (r Collection) List(result interface{}) (int, error) {
	return r.client.RawGet(r.CollectionPath(), result)
}

// Item represents a single item in a collection
type Item struct {
	col Collection
	id  string
}

// Item gets an item from a collection
func (r Collection) Item(id string) Item {
	return Item{col: r, id: id}
}

// Path returns the created path for this item
func (r Item) Path() string {
	return r.col.basePath() + "/" + url.PathEscape(r.id)
}

// Subcollection returns a subcollection for this item
func (r Item) Subcollection(resource string) Collection {
	col := r.col.WithSelector(r.col.resources[len(r.col.resources)-1], r.id)
	// we want a true copy to avoid side effects
	col.resources = append(append([]string{}, r.col.resources...), resource)
	col.parameters = nil
	return col
}

// Read reads an item from a collection
//
// The operation corresponds to a GET request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result can also be map[string]interface{} or a raw *[]byte.
func (r Item) Read(result interface{}) (int, error) {
	return r.col.client.RawGet(r.Path(), result)
}

// Update merges body into an existing item
//
// The operation corresponds to a PUT request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
func (r Item) Update(body interface{}, result interface{}) (int, error) {
	return r.col.client.RawPut(r.Path(), body, result)
}

// Delete deletes an item from a collection
//
// The operation corresponds to a DELETE request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. The deleted item is returned in result, which can be nil.
func (r Item) Delete(result interface{}) (int, error) {
	return r.col.client.RawDelete(r.Path(), result)
}

// Page is a requester for one page in a collection
type Page struct {
	r          Collection
	page       int
	pageCount  int
	totalCount int
}

// FirstPage returns a requester for the first page of a collection
//
// Do not specify the page parameter when using the page requester, as
// it manages page itself. You can set all others parameters, including
// limit.
func (r Collection) FirstPage() Page {
	return Page{page: 1, r: r}
}

// HasData returns true if the page has data (by definition true for the first page)
func (p Page) HasData() bool {
	return p.page == 1 || p.page <= p.pageCount
}

// TotalCount returns the total number of elements (only available after you have called Get on the page)
func (p Page) TotalCount() int {
	return p.totalCount
}

// Get gets one page of the collection
func (p *Page) Get(result interface{}) (int, error) {
	path := p.r.WithParameter("page", strconv.Itoa(p.page)).CollectionPath()
	status, header, err := p.r.client.RawGetWithHeader(path, nil, result)
	if err != nil {
		return status, err
	}
	if pageCount, err := strconv.Atoi(header.Get("Pagination-Page-Count")); err == nil {
		p.pageCount = pageCount
	}
	if totalCount, err := strconv.Atoi(header.Get("Pagination-Total-Count")); err == nil {
		p.totalCount = totalCount
	}
	return status, nil
}

// Next returns the next page
func (p Page) Next() Page {
	return Page{
		r:         p.r,
		page:      p.page + 1,
		pageCount: p.pageCount,
	}
}

// do executes one request, either in-process against the router or over the network
func (c Client) do(method, path string, header map[string]string, body []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, nil, nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range header {
		r.Header.Add(key, value)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, res.Header, rec.Body.Bytes(), nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	return res.StatusCode, res.Header, resBody, err
}

func marshalBody(method, path string, body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if j, ok := body.([]byte); ok {
		return j, nil
	}
	j, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s to %s: %w", method, path, err)
	}
	return j, nil
}

func unmarshalResult(resBody []byte, result interface{}) error {
	if len(resBody) == 0 || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return nil
	}
	return json.Unmarshal(resBody, result)
}

func (c Client) roundTrip(method, path string, header map[string]string, body interface{}, result interface{}, expected ...int) (int, http.Header, error) {
	j, err := marshalBody(method, path, body)
	if err != nil {
		return http.StatusBadRequest, nil, err
	}
	status, resHeader, resBody, err := c.do(method, path, header, j)
	if err != nil {
		return status, resHeader, err
	}
	valid := false
	for _, e := range expected {
		if status == e {
			valid = true
			break
		}
	}
	if !valid {
		return status, resHeader, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, expected[0], strings.TrimSpace(string(resBody)))
	}
	return status, resHeader, unmarshalResult(resBody, result)
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.roundTrip(http.MethodGet, path, nil, nil, result, http.StatusOK)
	return status, err
}

// RawGetWithHeader gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code and the header.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	return c.roundTrip(http.MethodGet, path, header, nil, result, http.StatusOK)
}

// RawHead sends a HEAD request to path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code and the header.
func (c Client) RawHead(path string) (int, http.Header, error) {
	return c.roundTrip(http.MethodHead, path, nil, nil, nil, http.StatusOK)
}

// RawPost posts a resource to path. Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.roundTrip(http.MethodPost, path, nil, body, result, http.StatusCreated, http.StatusOK)
	return status, err
}

// RawPut puts a resource to path. Expects http.StatusOK, http.StatusCreated or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.roundTrip(http.MethodPut, path, nil, body, result, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	return status, err
}

// RawPatch sends a patch to path. Expects http.StatusOK, http.StatusCreated,  or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
func (c Client) RawPatch(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.roundTrip(http.MethodPatch, path, nil, body, result, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	return status, err
}

// RawDelete deletes the resource at path. Expects http.StatusOK or http.StatusNoContent as response,
// otherwise it will flag an error.
//
// Returns the actual http status code.
// result can be nil.
func (c Client) RawDelete(path string, result interface{}) (int, error) {
	status, _, err := c.roundTrip(http.MethodDelete, path, nil, nil, result, http.StatusOK, http.StatusNoContent)
	return status, err
}
