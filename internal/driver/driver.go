// Package driver defines the datasource driver contract and the registry
// the orchestrator resolves datasource names against.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/coverage"
	"github.com/spatialmesh/stac-federator/internal/fetch"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

// ErrSkip is returned from Search when the query footprint has no coverage
// for the datasource. Not an error: the datasource contributes an empty
// feature collection.
var ErrSkip = errors.New("driver: no coverage for query")

// Interface is the per-datasource contract. Search translates the
// normalized query into an opaque provider request and must not perform
// network I/O against the provider; Execute performs the upstream call and
// maps the response into STAC items.
type Interface interface {
	Search(q query.Query) (any, error)
	Execute(ctx context.Context, req any) ([]stac.Item, error)
}

// Descriptor is a registry entry: driver handle plus its metadata.
type Descriptor struct {
	Name          string
	Tags          []string
	STACCompliant bool
	Driver        Interface
}

// HasTag reports whether the descriptor carries the functional tag.
func (d Descriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Env carries the shared collaborators handed to driver factories.
// Coverage may be nil when no spatial coverage index is configured.
type Env struct {
	Logger   *slog.Logger
	Fetch    *fetch.Client
	Coverage coverage.Index
}

// Factory builds a descriptor from the driver's config section.
type Factory func(cfg config.Driver, env Env) (Descriptor, error)

var factories = map[string]Factory{}

// RegisterFactory makes a compiled-in driver available for registry
// population. Called from driver package init() functions.
func RegisterFactory(name string, f Factory) {
	factories[name] = f
}

// Build populates a registry from the enabled drivers in cfg. Factories for
// names absent from cfg are left out; enabled names without a compiled-in
// factory are an error, since a query for them could never succeed.
func Build(cfgs map[string]config.Driver, env Env) (*Registry, error) {
	reg := NewRegistry()
	for name, dc := range cfgs {
		if !dc.Enabled {
			continue
		}
		f, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("driver %q enabled but not compiled in", name)
		}
		d, err := f(dc, env)
		if err != nil {
			return nil, fmt.Errorf("driver %q: %w", name, err)
		}
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
