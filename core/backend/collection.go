// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/events"
	"github.com/relabs-tech/restmodel/core/logger"
)

const defaultUniqueKey = "id"

// Config describes a collection. The zero value of every field means "default",
// which makes configurations mergeable with Extend.
type Config struct {
	// Name identifies the collection in logs, metrics and notifications. Defaults to the
	// last segment of the mount path.
	Name string
	// Path is the mount path of the list route. Without Mount it is mounted at the root
	// of Router, with Mount it is mounted below Mount.
	Path string
	// Mount is an already resolved namespace, typically parent.Detail().
	Mount *Namespace
	// Router is required for collections which are mounted by Path only.
	Router Router
	// UniqueKey is the attribute which identifies entities, default "id".
	UniqueKey string
	// Operations is the set of routes bound for the detail namespace. The zero value
	// means all operations.
	Operations core.Operations
	// ListOnly disables the detail namespace, only the list route is bound.
	ListOnly bool
	// Routes replaces the default CRUD routes with a custom route table.
	Routes Routes
	// Methods are named handlers which custom routes can refer to.
	Methods map[string]HandlerFunc
	// Middleware overrides single default handlers.
	Middleware Middleware
	// Adapter creates the persistence binding.
	Adapter AdapterFunc
	// Key returns the entities related to a parent entity. For nested routes it
	// replaces the collection for the duration of the request.
	Key func(parent *Entity, c *Collection) []*Entity
	// Relate is called by the default create handler of nested routes with the parent
	// entity, before the new entity is saved.
	Relate func(parent *Entity, e *Entity)
	// LazyLoad loads the collection from the adapter before every request.
	LazyLoad bool
	// Defaults are the initial attributes of new entities.
	Defaults map[string]interface{}
	// Initialize is called for every new entity.
	Initialize func(e *Entity)
	// Validate adds validation errors with e.Errors().Add().
	Validate func(e *Entity)
}

// merge returns a copy of cfg with all non-zero fields of overrides applied
func (cfg Config) merge(overrides Config) Config {
	if overrides.Name != "" {
		cfg.Name = overrides.Name
	} else if overrides.Path != "" || overrides.Mount != nil {
		cfg.Name = ""
	}
	if overrides.Path != "" {
		cfg.Path = overrides.Path
	}
	if overrides.Mount != nil {
		cfg.Mount = overrides.Mount
	}
	if overrides.Router != nil {
		cfg.Router = overrides.Router
	}
	if overrides.UniqueKey != "" {
		cfg.UniqueKey = overrides.UniqueKey
	}
	if overrides.Operations != 0 {
		cfg.Operations = overrides.Operations
	}
	if overrides.ListOnly {
		cfg.ListOnly = true
	}
	if overrides.Routes != nil {
		cfg.Routes = overrides.Routes
	}
	if overrides.Methods != nil {
		cfg.Methods = overrides.Methods
	}
	cfg.Middleware = cfg.Middleware.merge(overrides.Middleware)
	if overrides.Adapter != nil {
		cfg.Adapter = overrides.Adapter
	}
	if overrides.Key != nil {
		cfg.Key = overrides.Key
	}
	if overrides.Relate != nil {
		cfg.Relate = overrides.Relate
	}
	if overrides.LazyLoad {
		cfg.LazyLoad = true
	}
	if overrides.Defaults != nil {
		cfg.Defaults = overrides.Defaults
	}
	if overrides.Initialize != nil {
		cfg.Initialize = overrides.Initialize
	}
	if overrides.Validate != nil {
		cfg.Validate = overrides.Validate
	}
	return cfg
}

// Collection is an ordered set of entities of one resource type, with at most
// one entity per unique key. Unless it is unroutable, a collection binds its
// list and detail routes on construction.
//
// Events emitted on the collection: "add", "remove", and the lifecycle events
// "create", "update" and "destroy" of its entities.
type Collection struct {
	config  Config
	uid     string
	keyname string
	parent  *Collection
	// origin is the collection new entities belong to, for chained
	// collections and request views
	origin  *Collection
	isView  bool
	backend *Backend

	adapter Adapter
	list    *Namespace
	detail  *Namespace
	tree    Tree

	mutex    sync.RWMutex
	entities []*Entity
	events   events.Bus[*Entity]
}

// plugins run in order for every new or extended collection
var plugins = []func(c *Collection){bindAdapter, bindRoutes}

// NewCollection creates a collection and runs the plugin chain: adapter binding
// and route binding.
func NewCollection(cfg Config) *Collection {
	c := newCollection(cfg, nil)
	c.runPlugins()
	return c
}

func newCollection(cfg Config, parent *Collection) *Collection {
	if cfg.UniqueKey == "" {
		cfg.UniqueKey = defaultUniqueKey
	}
	if cfg.Name == "" {
		cfg.Name = deriveName(cfg)
	}
	uid := strings.ReplaceAll(uuid.NewString(), "-", "")
	c := &Collection{
		config:  cfg,
		uid:     uid,
		keyname: cfg.UniqueKey + "_" + uid,
		parent:  parent,
	}
	if parent != nil {
		c.backend = parent.backend
	}
	return c
}

func deriveName(cfg Config) string {
	p := cfg.Path
	if p == "" && cfg.Mount != nil {
		p = cfg.Mount.Path()
	}
	name := path.Base("/" + strings.Trim(p, "/"))
	if name == "/" || strings.HasPrefix(name, "{") {
		return "collection"
	}
	return name
}

func (c *Collection) runPlugins() {
	for _, plugin := range plugins {
		plugin(c)
	}
}

// Plugin runs an additional plugin against the collection and returns the collection
func (c *Collection) Plugin(plugin func(c *Collection)) *Collection {
	plugin(c)
	return c
}

// Name returns the name of the collection
func (c *Collection) Name() string {
	return c.config.Name
}

// Config returns a copy of the configuration of the collection
func (c *Collection) Config() Config {
	return c.config
}

// UniqueKey returns the name of the attribute which identifies entities
func (c *Collection) UniqueKey() string {
	return c.config.UniqueKey
}

// Keyname returns the route parameter name for the unique key of this collection,
// qualified by the collection's uid. Ancestors sharing the same unique key therefore
// never share a route parameter.
func (c *Collection) Keyname() string {
	return c.keyname
}

// Operations returns the operations bound for the detail namespace
func (c *Collection) Operations() core.Operations {
	return c.config.Operations.OrDefault()
}

// Service returns true if the collection has a detail namespace
func (c *Collection) Service() bool {
	return !c.config.ListOnly
}

// Parent returns the collection this one was derived from, or nil
func (c *Collection) Parent() *Collection {
	return c.parent
}

// Adapter returns the persistence binding, or nil
func (c *Collection) Adapter() Adapter {
	return c.adapter
}

// Tree returns the resource tree of the collection. It is nil until the routes
// are bound.
func (c *Collection) Tree() Tree {
	return c.tree
}

// home returns the collection which owns new entities
func (c *Collection) home() *Collection {
	if c.origin != nil {
		return c.origin
	}
	return c
}

// New creates a new entity of the collection. The entity is not added to the
// collection before it was saved successfully.
func (c *Collection) New(attributes map[string]interface{}) *Entity {
	return newEntity(c.home(), attributes)
}

// On registers a listener for a collection event
func (c *Collection) On(name string, fn events.Listener[*Entity]) *events.Subscription {
	return c.events.On(name, fn)
}

// Events returns the event bus of the collection
func (c *Collection) Events() *events.Bus[*Entity] {
	return &c.events
}

// Add adds entities to the collection. It accepts *Entity, []*Entity,
// map[string]interface{}, []map[string]interface{} and []interface{} of those.
// Raw attribute maps are turned into new entities first.
//
// If an entity with the same unique key already exists, the fields of the added
// entity are merged into the existing one, which keeps its identity.
func (c *Collection) Add(v interface{}) *Collection {
	switch x := v.(type) {
	case nil:
	case *Entity:
		c.addEntity(x)
	case map[string]interface{}:
		c.addEntity(c.New(x))
	case []*Entity:
		for _, e := range x {
			c.addEntity(e)
		}
	case []map[string]interface{}:
		for _, m := range x {
			c.addEntity(c.New(m))
		}
	case []interface{}:
		for _, item := range x {
			c.Add(item)
		}
	default:
		panic(fmt.Errorf("cannot add %T to collection %s", v, c.Name()))
	}
	return c
}

func (c *Collection) addEntity(e *Entity) {
	if e == nil {
		return
	}
	id, ok := e.Get(c.config.UniqueKey)
	c.mutex.Lock()
	var existing *Entity
	if !isUndefined(id, ok) {
		existing = c.find(id)
	}
	if existing == nil {
		c.entities = append(c.entities, e)
	}
	c.mutex.Unlock()

	if existing == nil {
		c.events.Emit("add", e)
		return
	}
	if existing != e {
		existing.SetAll(e.Attributes())
	}
}

// find must be called with the lock held
func (c *Collection) find(id interface{}) *Entity {
	for _, e := range c.entities {
		if v, ok := e.Get(c.config.UniqueKey); ok && looseEqual(v, id) {
			return e
		}
	}
	return nil
}

// Remove removes e by identity and returns true if it was part of the collection
func (c *Collection) Remove(e *Entity) bool {
	c.mutex.Lock()
	index := -1
	for i, x := range c.entities {
		if x == e {
			index = i
			break
		}
	}
	if index >= 0 {
		c.entities = append(c.entities[:index:index], c.entities[index+1:]...)
	}
	c.mutex.Unlock()

	if index < 0 {
		return false
	}
	c.events.Emit("remove", e)
	return true
}

// Get returns the first entity whose unique key equals key. Numbers and strings
// compare by their string representation, so Get("1") finds an entity with id 1.
func (c *Collection) Get(key interface{}) *Entity {
	if key == nil {
		return nil
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.find(key)
}

// All returns a copy of all entities
func (c *Collection) All() []*Entity {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return append([]*Entity{}, c.entities...)
}

// List returns the entities with a unique key
func (c *Collection) List() []*Entity {
	return c.Filter(func(e *Entity, _ int) bool { return !e.IsNew() })
}

// Pending returns the entities without unique key, which were never persisted
func (c *Collection) Pending() []*Entity {
	return c.Filter(func(e *Entity, _ int) bool { return e.IsNew() })
}

// Count returns the number of entities
func (c *Collection) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entities)
}

// First returns the first entity, or nil
func (c *Collection) First() *Entity {
	all := c.All()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Last returns the last entity, or nil
func (c *Collection) Last() *Entity {
	all := c.All()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Extend derives a new collection. The non-zero fields of overrides are merged
// onto a copy of the configuration, the parent of the new collection is c, and
// the plugin chain runs for the new collection. A derived collection which keeps
// the mount of c does not bind routes a second time.
func (c *Collection) Extend(overrides Config) *Collection {
	d := newCollection(c.config.merge(overrides), c)
	d.runPlugins()
	return d
}

// With derives a collection whose entities are the entities of c matching predicate
func (c *Collection) With(predicate func(e *Entity, i int) bool) *Collection {
	d := c.Extend(Config{})
	d.entities = c.Filter(predicate)
	return d
}

// view derives the per-request collection for a relationship. It keeps the
// keyname of c and is never routed.
func (c *Collection) view(entities []*Entity) *Collection {
	d := newCollection(c.config, c)
	d.keyname = c.keyname
	d.isView = true
	d.origin = c.home()
	d.list, d.detail, d.tree = c.list, c.detail, c.tree
	d.adapter = c.adapter
	d.entities = append([]*Entity{}, entities...)
	return d
}

// IsView returns true for the per-request relationship collections of nested routes
func (c *Collection) IsView() bool {
	return c.isView
}

// Load reads all records from the adapter and adds them. Without Reader
// capability Load does nothing.
func (c *Collection) Load(ctx context.Context) error {
	reader, ok := c.adapter.(Reader)
	if !ok {
		return nil
	}
	records, err := reader.Read(ctx)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("load", c.Name(), "failed")
		return &PersistenceError{Operation: core.OperationRead, Collection: c.Name(), Err: err}
	}
	c.Add(records)
	return nil
}

// ToJSON returns the representations of all entities
func (c *Collection) ToJSON() []map[string]interface{} {
	all := c.All()
	result := make([]map[string]interface{}, len(all))
	for i, e := range all {
		result[i] = e.ToJSON()
	}
	return result
}

// MarshalJSON implements json.Marshaler
func (c *Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToJSON())
}

func (c *Collection) String() string {
	return c.Name() + "(" + c.keyname + ")"
}

// BelongsTo returns a relationship for Config.Key: the entities whose attribute
// equals the unique key of the parent
func BelongsTo(attribute string) func(parent *Entity, c *Collection) []*Entity {
	return func(parent *Entity, c *Collection) []*Entity {
		id := parent.ID()
		return c.Filter(func(e *Entity, _ int) bool {
			v, ok := e.Get(attribute)
			return ok && looseEqual(v, id)
		})
	}
}

// RelateBy returns a Config.Relate function which sets attribute of new entities to
// the unique key of the parent
func RelateBy(attribute string) func(parent *Entity, e *Entity) {
	return func(parent *Entity, e *Entity) {
		e.Set(attribute, parent.ID())
	}
}
