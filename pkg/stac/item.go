// Package stac defines the SpatioTemporal Asset Catalog item shape returned
// by every driver and the soft validator applied before aggregation.
package stac

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spatialmesh/stac-federator/internal/geo"
)

// LegacyPrefix namespaces provider fields that have no STAC equivalent.
const LegacyPrefix = "legacy:"

// Geometry is a thin GeoJSON geometry wrapper. Coordinates stay raw so
// STAC-compliant providers pass through untouched.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type Item struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Geometry   *Geometry      `json:"geometry"`
	BBox       []float64      `json:"bbox,omitempty"`
	Properties map[string]any `json:"properties"`
	Assets     map[string]any `json:"assets,omitempty"`
	Collection string         `json:"collection,omitempty"`
}

type FeatureCollection struct {
	Type     string `json:"type"`
	Features []Item `json:"features"`
}

// NewFeatureCollection keeps Features non-nil so an empty collection
// marshals as "features": [].
func NewFeatureCollection(items []Item) *FeatureCollection {
	if items == nil {
		items = []Item{}
	}
	return &FeatureCollection{Type: "FeatureCollection", Features: items}
}

// Datetime parses the required properties.datetime field.
func (it Item) Datetime() (time.Time, error) {
	v, ok := it.Properties["datetime"]
	if !ok {
		return time.Time{}, errors.New("properties.datetime missing")
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("properties.datetime is %T (want string)", v)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if t, err2 := time.Parse("2006-01-02", s); err2 == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t, nil
}

// Envelope computes the axis-aligned bounds of the geometry. Supports the
// geometry types the federated providers actually emit.
func (g Geometry) Envelope() (geo.BBox, error) {
	bb := geo.BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	grow := func(c []float64) {
		if len(c) < 2 {
			return
		}
		bb.MinX = math.Min(bb.MinX, c[0])
		bb.MinY = math.Min(bb.MinY, c[1])
		bb.MaxX = math.Max(bb.MaxX, c[0])
		bb.MaxY = math.Max(bb.MaxY, c[1])
	}

	switch g.Type {
	case "Point":
		var c []float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return geo.BBox{}, fmt.Errorf("point coords: %w", err)
		}
		grow(c)
	case "LineString":
		var cs [][]float64
		if err := json.Unmarshal(g.Coordinates, &cs); err != nil {
			return geo.BBox{}, fmt.Errorf("linestring coords: %w", err)
		}
		for _, c := range cs {
			grow(c)
		}
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return geo.BBox{}, fmt.Errorf("polygon coords: %w", err)
		}
		for _, ring := range rings {
			for _, c := range ring {
				grow(c)
			}
		}
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return geo.BBox{}, fmt.Errorf("multipolygon coords: %w", err)
		}
		for _, rings := range polys {
			for _, ring := range rings {
				for _, c := range ring {
					grow(c)
				}
			}
		}
	default:
		return geo.BBox{}, fmt.Errorf("unsupported geometry type %q", g.Type)
	}

	if math.IsInf(bb.MinX, 1) {
		return geo.BBox{}, errors.New("geometry has no coordinates")
	}
	return bb, nil
}
