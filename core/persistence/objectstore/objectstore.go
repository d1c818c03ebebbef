// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package objectstore persists the entities of a collection as JSON objects

Every entity is one object "<prefix>/<key>.json". There are two drivers, a local
file system and AWS S3.
*/
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/restmodel/core/backend"
	"github.com/relabs-tech/restmodel/core/logger"
)

// ErrNotFound is returned by drivers for keys which do not exist
var ErrNotFound = errors.New("object not found")

// Driver defines the interface of an object storage
type Driver interface {
	// Put writes data to key, replacing existing objects
	Put(ctx context.Context, key string, data []byte) error
	// Get reads key, or returns ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete deletes key. Deleting a key which does not exist is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys starting with prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// DriverType represents the different types of drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation
const DriverTypeAWSS3 DriverType = "AWSS3"

// Configuration contains the configuration for the object storage
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// NewDriver creates the driver described by the configuration
func NewDriver(ctx context.Context, config Configuration) (Driver, error) {
	switch config.DriverType {
	case DriverTypeLocal:
		if config.LocalConfiguration == nil {
			return nil, fmt.Errorf("missing local configuration")
		}
		return NewFilesystem(config.LocalConfiguration.BasePath)
	case DriverTypeAWSS3:
		if config.S3Configuration == nil {
			return nil, fmt.Errorf("missing S3 configuration")
		}
		return NewS3(ctx, *config.S3Configuration)
	}
	return nil, fmt.Errorf("unsupported object storage driver '%s'", config.DriverType)
}

// Store is a persistence adapter for one collection. It implements
// backend.Creator, backend.Reader, backend.Updater and backend.Destroyer.
type Store struct {
	driver Driver
	prefix string
}

// New returns a store for the objects below prefix
func New(driver Driver, prefix string) *Store {
	return &Store{driver: driver, prefix: strings.Trim(prefix, "/")}
}

// Adapter returns an AdapterFunc which binds one store per resource, with the resource
// name like "post/comment" as prefix
func Adapter(driver Driver) backend.AdapterFunc {
	var mutex sync.Mutex
	stores := map[string]*Store{}
	return func(c *backend.Collection) backend.Adapter {
		mutex.Lock()
		defer mutex.Unlock()
		resource := c.Resource()
		s, ok := stores[resource]
		if !ok {
			s = New(driver, resource)
			stores[resource] = s
		}
		return s
	}
}

func (s *Store) objectKey(e *backend.Entity) string {
	return path.Join(s.prefix, url.PathEscape(backend.KeyString(e.ID()))+".json")
}

// Create implements backend.Creator. Entities without unique key get a uuid.
func (s *Store) Create(ctx context.Context, e *backend.Entity) error {
	if e.IsNew() {
		e.Set(e.KeyField(), uuid.NewString())
	}
	key := s.objectKey(e)
	_, err := s.driver.Get(ctx, key)
	if err == nil {
		return fmt.Errorf("object %s: %w", key, backend.ErrAlreadyExists)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.write(ctx, key, e)
}

// Update implements backend.Updater
func (s *Store) Update(ctx context.Context, e *backend.Entity) error {
	return s.write(ctx, s.objectKey(e), e)
}

func (s *Store) write(ctx context.Context, key string, e *backend.Entity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debugln("object store: write", key)
	return s.driver.Put(ctx, key, data)
}

// Destroy implements backend.Destroyer
func (s *Store) Destroy(ctx context.Context, e *backend.Entity) error {
	return s.driver.Delete(ctx, s.objectKey(e))
}

// Read implements backend.Reader. Records are returned sorted by key.
func (s *Store) Read(ctx context.Context) ([]map[string]interface{}, error) {
	keys, err := s.driver.List(ctx, s.prefix+"/")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	records := make([]map[string]interface{}, 0, len(keys))
	for _, key := range keys {
		// objects of nested resources live below the prefix as well
		if !strings.HasSuffix(key, ".json") || strings.Contains(strings.TrimPrefix(key, s.prefix+"/"), "/") {
			continue
		}
		data, err := s.driver.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			// deleted since listed
			continue
		}
		if err != nil {
			return nil, err
		}
		record := map[string]interface{}{}
		if err = json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("cannot read object %s: %w", key, err)
		}
		records = append(records, record)
	}
	return records, nil
}
