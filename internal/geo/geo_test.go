package geo

import (
	"encoding/json"
	"testing"
)

func TestBBoxValidate(t *testing.T) {
	tests := []struct {
		name    string
		bb      BBox
		wantErr bool
	}{
		{"valid", BBox{MinX: -10, MinY: -5, MaxX: 10, MaxY: 5}, false},
		{"lon out of range", BBox{MinX: -190, MinY: 0, MaxX: 10, MaxY: 5}, true},
		{"lat out of range", BBox{MinX: 0, MinY: -95, MaxX: 10, MaxY: 5}, true},
		{"inverted x", BBox{MinX: 10, MinY: 0, MaxX: -10, MaxY: 5}, true},
		{"zero area", BBox{MinX: 10, MinY: 0, MaxX: 10, MaxY: 5}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bb.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate()=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestFromBBoxRingOrder(t *testing.T) {
	p := FromBBox(BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4})

	want := Ring{
		{X: 1, Y: 4}, {X: 3, Y: 4}, {X: 3, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 4},
	}
	if len(p.Exterior) != len(want) {
		t.Fatalf("ring length=%d want %d", len(p.Exterior), len(want))
	}
	for i := range want {
		if p.Exterior[i] != want[i] {
			t.Fatalf("vertex %d = %v want %v", i, p.Exterior[i], want[i])
		}
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("rectangle should validate: %v", err)
	}
}

func TestPolygonValidate(t *testing.T) {
	open := Polygon{Exterior: Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	if err := open.Validate(); err == nil {
		t.Fatal("open ring should fail validation")
	}

	bowtie := Polygon{Exterior: Ring{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}
	if err := bowtie.Validate(); err == nil {
		t.Fatal("self-intersecting ring should fail validation")
	}

	square := Polygon{Exterior: Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	if err := square.Validate(); err != nil {
		t.Fatalf("square should validate: %v", err)
	}
}

func TestPolygonJSONRoundTrip(t *testing.T) {
	in := Polygon{
		Exterior: Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		Holes:    []Ring{{{1, 1}, {2, 1}, {2, 2}, {1, 2}, {1, 1}}},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Polygon
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Exterior) != 5 || len(out.Holes) != 1 {
		t.Fatalf("round trip lost rings: %+v", out)
	}
	if out.Exterior[1] != (Point{X: 4, Y: 0}) {
		t.Fatalf("vertex mismatch: %v", out.Exterior[1])
	}
}

func TestPolygonUnmarshalRejectsOtherTypes(t *testing.T) {
	var p Polygon
	err := json.Unmarshal([]byte(`{"type":"MultiPolygon","coordinates":[]}`), &p)
	if err == nil {
		t.Fatal("expected error for non-Polygon type")
	}
}

func TestEnvelope(t *testing.T) {
	p := Polygon{Exterior: Ring{{-3, 1}, {5, 1}, {5, 7}, {-3, 7}, {-3, 1}}}
	bb := p.Envelope()
	want := BBox{MinX: -3, MinY: 1, MaxX: 5, MaxY: 7}
	if bb != want {
		t.Fatalf("Envelope()=%+v want %+v", bb, want)
	}
}

func TestBBoxIntersects(t *testing.T) {
	a := BBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2}
	if !a.Intersects(BBox{MinX: 1, MinY: 1, MaxX: 3, MaxY: 3}) {
		t.Fatal("overlapping boxes should intersect")
	}
	if a.Intersects(BBox{MinX: 5, MinY: 5, MaxX: 6, MaxY: 6}) {
		t.Fatal("disjoint boxes should not intersect")
	}
}
