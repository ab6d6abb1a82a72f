// Package h3grid maps query footprints onto H3 cells for coverage lookups.
package h3grid

import (
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/spatialmesh/stac-federator/internal/geo"
)

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func CellsForBBox(bb geo.BBox, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	outer := h3.GeoLoop{
		{Lat: bb.MinY, Lng: bb.MinX},
		{Lat: bb.MinY, Lng: bb.MaxX},
		{Lat: bb.MaxY, Lng: bb.MaxX},
		{Lat: bb.MaxY, Lng: bb.MinX},
	}
	return polyfillOne(outer, nil, res)
}

func CellsForPolygon(p geo.Polygon, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	outer := toLoop(p.Exterior)
	if len(outer) < 3 {
		return nil, errors.New("outer ring has too few vertices")
	}
	var holes []h3.GeoLoop
	for i, hr := range p.Holes {
		h := toLoop(hr)
		if len(h) < 3 {
			return nil, fmt.Errorf("hole %d has too few vertices", i)
		}
		holes = append(holes, h)
	}
	return polyfillOne(outer, holes, res)
}

// Convert a ring to an h3.GeoLoop (degrees). If the ring is explicitly
// closed, drop the trailing duplicate.
func toLoop(r geo.Ring) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(r))
	for _, pt := range r {
		loop = append(loop, h3.LatLng{Lat: pt.Y, Lng: pt.X})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, holes []h3.GeoLoop, res int) ([]string, error) {
	poly := h3.GeoPolygon{
		GeoLoop: outer,
		Holes:   holes,
	}

	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
