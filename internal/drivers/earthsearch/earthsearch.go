// Package earthsearch federates the Element 84 Earth Search STAC API.
// The upstream is already STAC compliant, so items pass through with no
// remapping.
package earthsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/driver"
	"github.com/spatialmesh/stac-federator/internal/fetch"
	"github.com/spatialmesh/stac-federator/internal/geo"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

const Name = "EarthSearch"

func init() {
	driver.RegisterFactory(Name, New)
}

type Driver struct {
	endpoint string
	fetch    *fetch.Client
	logger   *slog.Logger
}

func New(cfg config.Driver, env driver.Env) (driver.Descriptor, error) {
	if cfg.Endpoint == "" {
		return driver.Descriptor{}, fmt.Errorf("earthsearch: endpoint is required")
	}
	d := &Driver{endpoint: cfg.Endpoint, fetch: env.Fetch, logger: env.Logger}
	return driver.Descriptor{
		Name:          Name,
		Tags:          []string{"raster", "satellite"},
		STACCompliant: true,
		Driver:        d,
	}, nil
}

// request follows the STAC API item search spec.
type request struct {
	Intersects geo.Polygon               `json:"intersects"`
	Datetime   string                    `json:"datetime,omitempty"`
	Query      map[string]map[string]any `json:"query,omitempty"`
	Limit      int                       `json:"limit"`
}

func (d *Driver) Search(q query.Query) (any, error) {
	req := &request{
		Intersects: q.Geometry,
		Limit:      q.Limit,
	}
	if q.Temporal != nil {
		req.Datetime = q.Temporal.Start.Format(time.RFC3339) + "/" + q.Temporal.End.Format(time.RFC3339)
	}
	if len(q.Properties) > 0 {
		req.Query = make(map[string]map[string]any, len(q.Properties))
		for key, pred := range q.Properties {
			req.Query[key] = map[string]any{string(pred.Op): pred.Value}
		}
	}
	return req, nil
}

func (d *Driver) Execute(ctx context.Context, raw any) ([]stac.Item, error) {
	req, ok := raw.(*request)
	if !ok {
		return nil, fmt.Errorf("earthsearch: unexpected request type %T", raw)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("earthsearch: encode request: %w", err)
	}
	data, err := d.fetch.Do(ctx, http.MethodPost, d.endpoint, body, "application/json")
	if err != nil {
		return nil, fmt.Errorf("earthsearch: %w", err)
	}

	var fc stac.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("earthsearch: decode response: %w", err)
	}
	return fc.Features, nil
}
