// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/events"
	"github.com/relabs-tech/restmodel/core/logger"
)

// Backend is the generic rest backend. It owns the router, the collections
// mounted on it, their metrics and their notifications.
type Backend struct {
	router   *mux.Router
	routes   *MuxRouter
	notifier core.Notifier
	metrics  *backendMetrics
	adapter  AdapterFunc

	collectionsMutex sync.RWMutex
	collections      map[string]*Collection
	resources        []string

	handlersMutex      sync.RWMutex
	handlers           map[string]notificationHandler
	queueMutex         sync.RWMutex
	queue              chan Notification
	workers            sync.WaitGroup
	notificationSerial int64
	subscriptions      []*events.Subscription
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Config is the JSON or YAML description of all collections. This is optional,
	// collections can also be added with Backend.Collection().
	Config string
	// ConfigFormat is "json" (default) or "yaml"
	ConfigFormat string
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Notifier receives all entity lifecycle notifications. This is optional.
	Notifier core.Notifier
	// Adapter is the persistence of the collections of the configuration and of all
	// collections added without own adapter. Default is an in-memory arena per collection.
	Adapter AdapterFunc
	// Registerer registers the metrics. Default is a new registry.
	Registerer prometheus.Registerer
	// MetricsRoute exposes the metrics on this route, for example "/metrics". Requires a
	// Registerer which is also a prometheus.Gatherer, like the default registry.
	MetricsRoute string
	// NotificationWorkers is the number of goroutines delivering notifications, default 2
	NotificationWorkers int
	// CORS adds permissive CORS headers and answers preflight requests
	CORS bool
	// Compression compresses responses if the client accepts it
	Compression bool
}

// New realizes the actual backend. It adds the middlewares and the routes of
// all configured collections to the router
func New(bb *Builder) *Backend {
	if bb.Router == nil {
		panic(configurationError("Router is missing"))
	}

	b := &Backend{
		router:      bb.Router,
		routes:      NewMuxRouter(bb.Router),
		notifier:    bb.Notifier,
		adapter:     bb.Adapter,
		collections: map[string]*Collection{},
		handlers:    map[string]notificationHandler{},
	}
	if b.adapter == nil {
		b.adapter = Memory()
	}

	registerer := bb.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	metrics, err := newBackendMetrics(registerer)
	if err != nil {
		panic(configurationError("cannot register metrics: %s", err))
	}
	b.metrics = metrics
	if bb.MetricsRoute != "" {
		gatherer, ok := registerer.(prometheus.Gatherer)
		if !ok {
			panic(configurationError("metrics route requires a registerer which is also a gatherer"))
		}
		b.handleMetrics(b.router, bb.MetricsRoute, gatherer)
	}

	logger.AddRequestID(b.router)
	if bb.CORS {
		b.handleCORS()
	}
	if bb.Compression {
		b.handleCompression()
	}
	b.handleVersion(b.router)

	workers := bb.NotificationWorkers
	if workers <= 0 {
		workers = 2
	}
	b.startNotificationWorkers(workers)

	if bb.Config != "" {
		config, err := ParseConfiguration([]byte(bb.Config), bb.ConfigFormat)
		if err != nil {
			panic(fmt.Errorf("parse error in backend configuration: %w", err))
		}
		if err = b.Configure(config); err != nil {
			panic(err)
		}
	}
	return b
}

// Router returns the mux router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

// Routes returns the router collections of this backend bind to
func (b *Backend) Routes() Router {
	return b.routes
}

// Collection creates a collection on the backend's router. Without own adapter the
// collection uses the adapter of the backend.
//
// The resource name of the collection, like "post/comment" for nested
// collections, must be unique within the backend.
func (b *Backend) Collection(cfg Config) *Collection {
	if cfg.Router == nil && cfg.Mount == nil {
		cfg.Router = b.routes
	}
	if cfg.Adapter == nil {
		cfg.Adapter = b.adapter
	}
	c := newCollection(cfg, nil)
	c.backend = b
	c.runPlugins()

	resource := resourceName(c)
	b.collectionsMutex.Lock()
	if _, ok := b.collections[resource]; ok {
		b.collectionsMutex.Unlock()
		panic(configurationError("collection %s already exists", resource))
	}
	b.collections[resource] = c
	b.resources = append(b.resources, resource)
	b.collectionsMutex.Unlock()

	b.subscriptions = append(b.subscriptions, b.metrics.observe(c)...)
	b.subscriptions = append(b.subscriptions, b.handleNotifications(c)...)
	return c
}

// Resource returns the collection for a resource name like "post/comment", or nil
func (b *Backend) Resource(resource string) *Collection {
	b.collectionsMutex.RLock()
	defer b.collectionsMutex.RUnlock()
	return b.collections[resource]
}

// Resources returns the names of all collections, sorted
func (b *Backend) Resources() []string {
	b.collectionsMutex.RLock()
	resources := append([]string{}, b.resources...)
	b.collectionsMutex.RUnlock()
	sort.Strings(resources)
	return resources
}
