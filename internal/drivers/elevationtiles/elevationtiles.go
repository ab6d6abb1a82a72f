// Package elevationtiles serves the Terrain Tiles DEM mosaic. There is no
// queryable upstream catalog: tile footprints are synthesized locally from
// the slippy-map grid, and the coverage index decides whether the query
// footprint has any data at all.
package elevationtiles

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/coverage"
	"github.com/spatialmesh/stac-federator/internal/coverage/h3grid"
	"github.com/spatialmesh/stac-federator/internal/driver"
	"github.com/spatialmesh/stac-federator/internal/geo"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

const Name = "ElevationTiles"

// The mosaic is dominated by the SRTM mission; every tile reports its
// acquisition epoch.
const srtmDatetime = "2000-02-11T00:00:00Z"

const defaultZoom = 8

func init() {
	driver.RegisterFactory(Name, New)
}

type Driver struct {
	zoom     int
	coverage coverage.Index
	logger   *slog.Logger
}

func New(cfg config.Driver, env driver.Env) (driver.Descriptor, error) {
	zoom := cfg.Zoom
	if zoom <= 0 {
		zoom = defaultZoom
	}
	if zoom > 18 {
		return driver.Descriptor{}, fmt.Errorf("elevationtiles: zoom %d out of range", zoom)
	}
	d := &Driver{zoom: zoom, coverage: env.Coverage, logger: env.Logger}
	return driver.Descriptor{
		Name:   Name,
		Tags:   []string{"raster", "elevation"},
		Driver: d,
	}, nil
}

type request struct {
	bbox geo.BBox
	q    query.Query
}

// Search consults the coverage index; a footprint with no coverage makes
// the datasource skip rather than enumerate empty tiles.
func (d *Driver) Search(q query.Query) (any, error) {
	bb := q.BBox()

	if d.coverage != nil {
		cells, err := h3grid.CellsForBBox(bb, d.coverage.Resolution())
		if err != nil {
			return nil, fmt.Errorf("elevationtiles: map footprint: %w", err)
		}
		covered, err := d.coverage.Covers(context.Background(), Name, cells)
		if err != nil {
			return nil, fmt.Errorf("elevationtiles: coverage lookup: %w", err)
		}
		if !covered {
			return nil, driver.ErrSkip
		}
	}

	return &request{bbox: bb, q: q}, nil
}

func (d *Driver) Execute(ctx context.Context, raw any) ([]stac.Item, error) {
	req, ok := raw.(*request)
	if !ok {
		return nil, fmt.Errorf("elevationtiles: unexpected request type %T", raw)
	}

	acquired, _ := time.Parse(time.RFC3339, srtmDatetime)
	if !req.q.TemporalContains(acquired) {
		return []stac.Item{}, nil
	}

	xMin, yMax := tileAt(req.bbox.MinX, req.bbox.MinY, d.zoom)
	xMax, yMin := tileAt(req.bbox.MaxX, req.bbox.MaxY, d.zoom)

	items := []stac.Item{}
	for x := xMin; x <= xMax; x++ {
		for y := yMin; y <= yMax; y++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			it, err := tileItem(x, y, d.zoom)
			if err != nil {
				return nil, fmt.Errorf("elevationtiles: tile %d/%d/%d: %w", d.zoom, x, y, err)
			}
			if !req.q.MatchesProperties(it.Properties) {
				continue
			}
			items = append(items, it)
			if req.q.Limit > 0 && len(items) == req.q.Limit {
				return items, nil
			}
		}
	}
	return items, nil
}

// tileAt returns the slippy-map tile containing the coordinate.
func tileAt(lon, lat float64, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))
	x = int(math.Floor((lon + 180) / 360 * n))
	latRad := lat * math.Pi / 180
	y = int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))
	max := int(n) - 1
	x = clamp(x, 0, max)
	y = clamp(y, 0, max)
	return x, y
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func tileBounds(x, y, zoom int) geo.BBox {
	n := math.Exp2(float64(zoom))
	return geo.BBox{
		MinX: float64(x)/n*360 - 180,
		MaxX: float64(x+1)/n*360 - 180,
		MaxY: tileLat(float64(y), n),
		MinY: tileLat(float64(y+1), n),
	}
}

func tileLat(y, n float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
}

func tileItem(x, y, zoom int) (stac.Item, error) {
	bb := tileBounds(x, y, zoom)
	geom, err := polygonGeometry(geo.FromBBox(bb))
	if err != nil {
		return stac.Item{}, err
	}

	return stac.Item{
		ID:       fmt.Sprintf("%s-%d-%d-%d", Name, zoom, x, y),
		Type:     "Feature",
		Geometry: geom,
		BBox:     bb.Slice(),
		Properties: map[string]any{
			"datetime":                  srtmDatetime,
			"gsd":                       groundResolution(zoom),
			stac.LegacyPrefix + "x":     x,
			stac.LegacyPrefix + "y":     y,
			stac.LegacyPrefix + "zoom":  zoom,
			stac.LegacyPrefix + "style": "terrarium",
		},
	}, nil
}

func polygonGeometry(p geo.Polygon) (*stac.Geometry, error) {
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var g stac.Geometry
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// groundResolution approximates meters per pixel at the equator for
// 256px tiles.
func groundResolution(zoom int) float64 {
	return 156543.03392 / math.Exp2(float64(zoom))
}
