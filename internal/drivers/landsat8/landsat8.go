// Package landsat8 federates the development-seed sat-api Landsat archive.
// The upstream predates the STAC spec, so responses are remapped item by
// item before aggregation.
package landsat8

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/driver"
	"github.com/spatialmesh/stac-federator/internal/fetch"
	"github.com/spatialmesh/stac-federator/internal/geo"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

const Name = "Landsat8"

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
		return driver.Descriptor{}, fmt.Errorf("landsat8: endpoint is required")
	}
	d := &Driver{endpoint: cfg.Endpoint, fetch: env.Fetch, logger: env.Logger}
	return driver.Descriptor{
		Name:   Name,
		Tags:   []string{"raster", "satellite"},
		Driver: d,
	}, nil
}

// request is the sat-api search payload.
type request struct {
	Intersects geo.Polygon               `json:"intersects"`
	Time       string                    `json:"time,omitempty"`
	Query      map[string]map[string]any `json:"query,omitempty"`
	Limit      int                       `json:"limit"`
}

func (d *Driver) Search(q query.Query) (any, error) {
	req := &request{
		Intersects: q.Geometry,
		Limit:      q.Limit,
	}
	if q.Temporal != nil {
		req.Time = q.Temporal.Start.Format(time.RFC3339) + "/" + q.Temporal.End.Format(time.RFC3339)
	}
	if len(q.Properties) > 0 {
		req.Query = make(map[string]map[string]any, len(q.Properties))
		for key, pred := range q.Properties {
			req.Query[key] = map[string]any{string(pred.Op): pred.Value}
		}
	}
	return req, nil
}

type upstreamFeature struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Geometry   *stac.Geometry `json:"geometry"`
	BBox       []float64      `json:"bbox"`
	Properties map[string]any `json:"properties"`
	Assets     map[string]any `json:"assets"`
	Collection string         `json:"collection"`
}

type upstreamResponse struct {
	Features []upstreamFeature `json:"features"`
}

func (d *Driver) Execute(ctx context.Context, raw any) ([]stac.Item, error) {
	req, ok := raw.(*request)
	if !ok {
		return nil, fmt.Errorf("landsat8: unexpected request type %T", raw)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("landsat8: encode request: %w", err)
	}
	data, err := d.fetch.Do(ctx, http.MethodPost, d.endpoint, body, "application/json")
	if err != nil {
		return nil, fmt.Errorf("landsat8: %w", err)
	}

	var resp upstreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("landsat8: decode response: %w", err)
	}

	items := make([]stac.Item, 0, len(resp.Features))
	for _, f := range resp.Features {
		items = append(items, mapFeature(f))
	}
	return items, nil
}

// mapFeature lifts a pre-STAC scene into the item schema. Fields with no
// STAC equivalent survive under the legacy prefix rather than being lost.
func mapFeature(f upstreamFeature) stac.Item {
	it := stac.Item{
		ID:         f.ID,
		Type:       "Feature",
		Geometry:   f.Geometry,
		BBox:       f.BBox,
		Properties: map[string]any{},
		Assets:     f.Assets,
		Collection: f.Collection,
	}

	if len(it.BBox) < 4 && f.Geometry != nil {
		if env, err := f.Geometry.Envelope(); err == nil {
			it.BBox = env.Slice()
		}
	}

	for key, val := range f.Properties {
		switch {
		case key == "datetime":
			it.Properties["datetime"] = val
		case key == "acquisitionDate":
			// older sat-api deployments name the capture timestamp this way
			if _, have := f.Properties["datetime"]; !have {
				it.Properties["datetime"] = val
			}
		case strings.Contains(key, ":"):
			// already-namespaced extension fields (eo:, landsat:, view:)
			it.Properties[key] = val
		default:
			it.Properties[stac.LegacyPrefix+key] = val
		}
	}
	return it
}
