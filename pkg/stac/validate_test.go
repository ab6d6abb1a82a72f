package stac

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validItem() Item {
	return Item{
		ID:   "scene-1",
		Type: "Feature",
		Geometry: &Geometry{
			Type:        "Polygon",
			Coordinates: json.RawMessage(`[[[0,0],[1,0],[1,1],[0,1],[0,0]]]`),
		},
		BBox:       []float64{0, 0, 1, 1},
		Properties: map[string]any{"datetime": "2019-06-01T10:00:00Z"},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(validItem()); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Item)
		missing string
	}{
		{"no id", func(it *Item) { it.ID = " " }, "id"},
		{"wrong type", func(it *Item) { it.Type = "FeatureCollection" }, "type"},
		{"nil geometry", func(it *Item) { it.Geometry = nil }, "geometry"},
		{"short bbox", func(it *Item) { it.BBox = []float64{0, 0} }, "bbox"},
		{"no datetime", func(it *Item) { delete(it.Properties, "datetime") }, "datetime"},
		{"garbage datetime", func(it *Item) { it.Properties["datetime"] = "soon" }, "datetime"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			it := validItem()
			tc.mutate(&it)
			err := Validate(it)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.missing) {
				t.Fatalf("error %q does not mention %q", err, tc.missing)
			}
		})
	}
}

func TestItemDatetimeFormats(t *testing.T) {
	it := validItem()
	it.Properties["datetime"] = "2000-02-11"
	if _, err := it.Datetime(); err != nil {
		t.Fatalf("bare date should parse: %v", err)
	}
}

func TestGeometryEnvelope(t *testing.T) {
	g := Geometry{
		Type:        "Polygon",
		Coordinates: json.RawMessage(`[[[-3,1],[5,1],[5,7],[-3,7],[-3,1]]]`),
	}
	bb, err := g.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if bb.MinX != -3 || bb.MinY != 1 || bb.MaxX != 5 || bb.MaxY != 7 {
		t.Fatalf("envelope=%+v", bb)
	}

	if _, err := (Geometry{Type: "GeometryCollection"}).Envelope(); err == nil {
		t.Fatal("unsupported type should error")
	}
}

func TestNewFeatureCollectionMarshalsEmpty(t *testing.T) {
	b, err := json.Marshal(NewFeatureCollection(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"features":[]`) {
		t.Fatalf("empty collection marshaled as %s", b)
	}
}
