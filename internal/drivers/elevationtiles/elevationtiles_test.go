package elevationtiles

import (
	"context"
	"errors"
	"testing"

	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/driver"
	"github.com/spatialmesh/stac-federator/internal/geo"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

type staticCoverage struct {
	covered bool
	err     error
	asked   [][]string
}

func (s *staticCoverage) Covers(_ context.Context, _ string, cells []string) (bool, error) {
	s.asked = append(s.asked, cells)
	return s.covered, s.err
}
func (s *staticCoverage) Add(context.Context, string, []string) error    { return nil }
func (s *staticCoverage) Remove(context.Context, string, []string) error { return nil }
func (s *staticCoverage) Resolution() int                                { return 5 }

func newDriver(t *testing.T, cov *staticCoverage) driver.Interface {
	t.Helper()
	env := driver.Env{}
	if cov != nil {
		env.Coverage = cov
	}
	d, err := New(config.Driver{Enabled: true, Zoom: 8}, env)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.Driver
}

func testQuery(t *testing.T, raw query.Raw) query.Query {
	t.Helper()
	q, err := query.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return q
}

func TestSearchSkipsWithoutCoverage(t *testing.T) {
	cov := &staticCoverage{covered: false}
	d := newDriver(t, cov)

	q := testQuery(t, query.Raw{Datasources: []string{Name}, BBox: []float64{17.5, 59.2, 18.6, 59.9}})
	_, err := d.Search(q)
	if !errors.Is(err, driver.ErrSkip) {
		t.Fatalf("want ErrSkip, got %v", err)
	}
	if len(cov.asked) != 1 || len(cov.asked[0]) == 0 {
		t.Fatalf("coverage lookup not performed: %+v", cov.asked)
	}
}

func TestSearchProceedsWithCoverage(t *testing.T) {
	d := newDriver(t, &staticCoverage{covered: true})
	q := testQuery(t, query.Raw{Datasources: []string{Name}, BBox: []float64{17.5, 59.2, 18.6, 59.9}})
	if _, err := d.Search(q); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestSearchWithoutIndexAlwaysProceeds(t *testing.T) {
	d := newDriver(t, nil)
	q := testQuery(t, query.Raw{Datasources: []string{Name}, BBox: []float64{0, 0, 1, 1}})
	if _, err := d.Search(q); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestExecuteSynthesizesTiles(t *testing.T) {
	d := newDriver(t, nil)
	q := testQuery(t, query.Raw{Datasources: []string{Name}, BBox: []float64{17.5, 59.2, 18.6, 59.9}})

	raw, err := d.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	items, err := d.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected at least one tile")
	}

	queryBB := geo.BBox{MinX: 17.5, MinY: 59.2, MaxX: 18.6, MaxY: 59.9}
	for _, it := range items {
		if err := stac.Validate(it); err != nil {
			t.Fatalf("tile %s invalid: %v", it.ID, err)
		}
		if it.Properties["datetime"] != srtmDatetime {
			t.Fatalf("tile %s datetime=%v", it.ID, it.Properties["datetime"])
		}
		tileBB := geo.BBox{MinX: it.BBox[0], MinY: it.BBox[1], MaxX: it.BBox[2], MaxY: it.BBox[3]}
		if !tileBB.Intersects(queryBB) {
			t.Fatalf("tile %s (%+v) outside query bbox", it.ID, tileBB)
		}
	}
}

func TestExecuteHonorsLimit(t *testing.T) {
	d := newDriver(t, nil)
	limit := 3
	q := testQuery(t, query.Raw{
		Datasources: []string{Name},
		BBox:        []float64{0, 0, 20, 20},
		Limit:       &limit,
	})

	raw, err := d.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	items, err := d.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items=%d want 3", len(items))
	}
}

func TestExecuteTemporalExclusion(t *testing.T) {
	d := newDriver(t, nil)
	// the mosaic's acquisition epoch is outside this window
	q := testQuery(t, query.Raw{
		Datasources: []string{Name},
		BBox:        []float64{0, 0, 5, 5},
		Time:        "2019-01-01/2019-12-31",
	})

	raw, err := d.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	items, err := d.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items=%d want 0 outside acquisition window", len(items))
	}
}

func TestExecutePropertyFiltering(t *testing.T) {
	d := newDriver(t, nil)
	q := testQuery(t, query.Raw{
		Datasources: []string{Name},
		BBox:        []float64{0, 0, 5, 5},
		Properties:  map[string]map[string]any{"gsd": {"lt": 1.0}},
	})

	raw, err := d.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	items, err := d.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// zoom 8 ground resolution is ~611 m/px, nothing satisfies gsd < 1
	if len(items) != 0 {
		t.Fatalf("items=%d want 0", len(items))
	}
}

func TestNewRejectsAbsurdZoom(t *testing.T) {
	if _, err := New(config.Driver{Enabled: true, Zoom: 25}, driver.Env{}); err == nil {
		t.Fatal("zoom 25 should be rejected")
	}
}
