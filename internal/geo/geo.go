// Package geo defines the planar geometry primitives shared across the service.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Point is a lon/lat coordinate in EPSG:4326.
type Point struct {
	X float64 // longitude
	Y float64 // latitude
}

// Ring is an ordered sequence of points. A valid ring is explicitly closed
// (first == last) and carries at least 4 coordinates.
type Ring []Point

type Polygon struct {
	Exterior Ring
	Holes    []Ring
}

// BBox is an axis-aligned envelope: minX, minY, maxX, maxY.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b BBox) Validate() error {
	if b.MinX < -180 || b.MinX > 180 || b.MaxX < -180 || b.MaxX > 180 {
		return errors.New("longitude must be in [-180,180]")
	}
	if b.MinY < -90 || b.MinY > 90 || b.MaxY < -90 || b.MaxY > 90 {
		return errors.New("latitude must be in [-90,90]")
	}
	if b.MaxX <= b.MinX || b.MaxY <= b.MinY {
		return errors.New("coordinates must satisfy maxX>minX and maxY>minY")
	}
	return nil
}

func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

func (b BBox) Slice() []float64 {
	return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// FromBBox converts an envelope to the equivalent rectangular polygon. The
// vertex order matches the wire format emitted for bbox-only searches:
// top-left, top-right, bottom-right, bottom-left, closing top-left.
func FromBBox(b BBox) Polygon {
	return Polygon{
		Exterior: Ring{
			{X: b.MinX, Y: b.MaxY},
			{X: b.MaxX, Y: b.MaxY},
			{X: b.MaxX, Y: b.MinY},
			{X: b.MinX, Y: b.MinY},
			{X: b.MinX, Y: b.MaxY},
		},
	}
}

func (r Ring) Closed() bool {
	if len(r) < 2 {
		return false
	}
	return r[0] == r[len(r)-1]
}

// Envelope computes the axis-aligned bounds of the exterior ring.
func (p Polygon) Envelope() BBox {
	bb := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, pt := range p.Exterior {
		bb.MinX = math.Min(bb.MinX, pt.X)
		bb.MinY = math.Min(bb.MinY, pt.Y)
		bb.MaxX = math.Max(bb.MaxX, pt.X)
		bb.MaxY = math.Max(bb.MaxY, pt.Y)
	}
	return bb
}

// Validate checks ring closure, minimum vertex count and self-intersection
// for the exterior ring and every hole.
func (p Polygon) Validate() error {
	if err := validateRing(p.Exterior); err != nil {
		return fmt.Errorf("exterior ring: %w", err)
	}
	for i, h := range p.Holes {
		if err := validateRing(h); err != nil {
			return fmt.Errorf("hole %d: %w", i, err)
		}
	}
	return nil
}

func validateRing(r Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("ring has %d coordinates (want >= 4)", len(r))
	}
	if !r.Closed() {
		return errors.New("ring is not closed (first and last coordinate differ)")
	}
	if r.SelfIntersects() {
		return errors.New("ring is self-intersecting")
	}
	return nil
}

// SelfIntersects reports whether any two non-adjacent edges of the ring
// cross. The closing edge is adjacent to the first edge.
func (r Ring) SelfIntersects() bool {
	n := len(r) - 1 // edges, ring is closed
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// skip adjacent edges (shared vertex), including the wrap-around pair
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d Point) bool {
	o1 := orient(a, b, c)
	o2 := orient(a, b, d)
	o3 := orient(c, d, a)
	o4 := orient(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}

	// collinear overlap counts as an intersection
	if o1 == 0 && onSegment(a, b, c) {
		return true
	}
	if o2 == 0 && onSegment(a, b, d) {
		return true
	}
	if o3 == 0 && onSegment(c, d, a) {
		return true
	}
	if o4 == 0 && onSegment(c, d, b) {
		return true
	}
	return false
}

// orient returns +1 for counter-clockwise, -1 for clockwise, 0 for collinear.
func orient(a, b, c Point) int {
	v := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// geoJSONPolygon is the wire shape for (Un)MarshalJSON.
type geoJSONPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

func (p Polygon) MarshalJSON() ([]byte, error) {
	rings := make([][][]float64, 0, 1+len(p.Holes))
	rings = append(rings, ringCoords(p.Exterior))
	for _, h := range p.Holes {
		rings = append(rings, ringCoords(h))
	}
	return json.Marshal(geoJSONPolygon{Type: "Polygon", Coordinates: rings})
}

func (p *Polygon) UnmarshalJSON(b []byte) error {
	var tmp geoJSONPolygon
	if err := json.Unmarshal(b, &tmp); err != nil {
		return fmt.Errorf("parse geojson: %w", err)
	}
	if tmp.Type != "Polygon" {
		return fmt.Errorf(`unsupported GeoJSON "type": %q (must be Polygon)`, tmp.Type)
	}
	if len(tmp.Coordinates) == 0 {
		return errors.New("polygon has no rings")
	}
	out := Polygon{Exterior: coordsRing(tmp.Coordinates[0])}
	for _, rc := range tmp.Coordinates[1:] {
		out.Holes = append(out.Holes, coordsRing(rc))
	}
	*p = out
	return nil
}

func ringCoords(r Ring) [][]float64 {
	out := make([][]float64, 0, len(r))
	for _, pt := range r {
		out = append(out, []float64{pt.X, pt.Y})
	}
	return out
}

func coordsRing(cs [][]float64) Ring {
	out := make(Ring, 0, len(cs))
	for _, c := range cs {
		if len(c) < 2 {
			continue
		}
		out = append(out, Point{X: c[0], Y: c[1]})
	}
	return out
}
