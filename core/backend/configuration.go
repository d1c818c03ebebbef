// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/logger"
)

// Configuration holds a complete backend configuration
type Configuration struct {
	Collections []collectionConfiguration `json:"collections" yaml:"collections"`
}

// collectionConfiguration describes a collection resource. Nested resources
// like "post/comment" are mounted below the detail route of their parent.
type collectionConfiguration struct {
	Resource    string                 `json:"resource" yaml:"resource"`
	Path        string                 `json:"path" yaml:"path"`
	UniqueKey   string                 `json:"unique_key" yaml:"unique_key"`
	Operations  core.Operations        `json:"operations" yaml:"operations"`
	ListOnly    bool                   `json:"list_only" yaml:"list_only"`
	LazyLoad    bool                   `json:"lazy_load" yaml:"lazy_load"`
	Relation    string                 `json:"relation" yaml:"relation"`
	Required    []string               `json:"required" yaml:"required"`
	Defaults    map[string]interface{} `json:"defaults" yaml:"defaults"`
	Description string                 `json:"description" yaml:"description"`
}

// ParseConfiguration parses a JSON or YAML configuration. Format is "json", "yaml"
// or empty for JSON.
func ParseConfiguration(data []byte, format string) (Configuration, error) {
	var config Configuration
	var err error
	switch strings.ToLower(format) {
	case "", "json":
		err = json.Unmarshal(data, &config)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = fmt.Errorf("unknown configuration format '%s'", format)
	}
	if err != nil {
		return config, err
	}
	for _, rc := range config.Collections {
		if rc.Resource == "" || strings.HasPrefix(rc.Resource, "/") || strings.HasSuffix(rc.Resource, "/") || strings.Contains(rc.Resource, "//") {
			return config, fmt.Errorf("invalid resource name '%s'", rc.Resource)
		}
	}
	return config, nil
}

type byDepth []collectionConfiguration

func (r byDepth) Len() int {
	return len(r)
}
func (r byDepth) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}
func (r byDepth) Less(i, j int) bool {
	return strings.Count(r[i].Resource, "/") < strings.Count(r[j].Resource, "/")
}

// Configure adds the collections of config. Parents are created before their
// children, the parent of a nested resource must be part of the configuration or
// exist already.
func (b *Backend) Configure(config Configuration) error {
	logger.Default().Debugln("backend: configure collections")

	all := append([]collectionConfiguration{}, config.Collections...)
	sort.Stable(byDepth(all))

	for _, rc := range all {
		if err := b.createCollectionResource(rc); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) createCollectionResource(rc collectionConfiguration) error {
	resources := strings.Split(rc.Resource, "/")
	this := resources[len(resources)-1]

	cfg := Config{
		Name:       this,
		Path:       rc.Path,
		UniqueKey:  rc.UniqueKey,
		Operations: rc.Operations,
		ListOnly:   rc.ListOnly,
		LazyLoad:   rc.LazyLoad,
		Defaults:   rc.Defaults,
	}
	if cfg.Path == "" {
		cfg.Path = core.Plural(this)
	}
	if len(rc.Required) > 0 {
		required := append([]string{}, rc.Required...)
		cfg.Validate = func(e *Entity) {
			for _, field := range required {
				if v, ok := e.Get(field); isUndefined(v, ok) {
					e.Errors().Add(field, "is required")
				}
			}
		}
	}

	if len(resources) > 1 {
		owner := strings.Join(resources[:len(resources)-1], "/")
		parent := b.Resource(owner)
		if parent == nil {
			return fmt.Errorf("%s: parent resource %s does not exist: %w", rc.Resource, owner, ErrConfiguration)
		}
		if !parent.Service() {
			return fmt.Errorf("%s: parent resource %s has no detail route: %w", rc.Resource, owner, ErrConfiguration)
		}
		cfg.Mount = parent.Detail()
		if rc.Relation != "" {
			cfg.Key = BelongsTo(rc.Relation)
			cfg.Relate = RelateBy(rc.Relation)
		}
	} else if rc.Relation != "" {
		return fmt.Errorf("%s: relation requires a nested resource: %w", rc.Resource, ErrConfiguration)
	}

	if b.Resource(rc.Resource) != nil {
		return fmt.Errorf("%s: resource exists already: %w", rc.Resource, ErrConfiguration)
	}
	logger.Default().Debugln("create collection", rc.Resource, rc.Description)
	b.Collection(cfg)
	return nil
}
