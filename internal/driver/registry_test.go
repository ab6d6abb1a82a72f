package driver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

type nopDriver struct{}

func (nopDriver) Search(query.Query) (any, error)                  { return nil, nil }
func (nopDriver) Execute(context.Context, any) ([]stac.Item, error) { return nil, nil }

func desc(name string, tags ...string) Descriptor {
	return Descriptor{Name: name, Tags: tags, Driver: nopDriver{}}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(desc("A")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(desc("A")); err == nil {
		t.Fatal("duplicate name should fail")
	}
	if err := r.Register(Descriptor{Name: "B"}); err == nil {
		t.Fatal("nil driver should fail")
	}
	if err := r.Register(desc("")); err == nil {
		t.Fatal("empty name should fail")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(desc("A")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := r.Lookup("A"); err != nil {
		t.Fatalf("lookup A: %v", err)
	}

	_, err := r.Lookup("missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
	if nf.Name != "missing" {
		t.Fatalf("NotFoundError.Name=%q", nf.Name)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"Zulu", "Alpha", "Mike"} {
		if err := r.Register(desc(n)); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	want := []string{"Alpha", "Mike", "Zulu"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names()=%v want %v", got, want)
	}
}

func TestRegistryListByTag(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(desc("A", "raster"))
	_ = r.Register(desc("B", "vector"))
	_ = r.Register(desc("C", "raster", "elevation"))

	got := r.ListByTag("raster")
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "C" {
		t.Fatalf("ListByTag=%+v", got)
	}
}

func TestBuildRejectsUnknownEnabledDriver(t *testing.T) {
	cfgs := map[string]config.Driver{
		"NoSuchDriver": {Enabled: true},
	}
	if _, err := Build(cfgs, Env{}); err == nil {
		t.Fatal("enabled driver without a factory should fail Build")
	}
}

func TestBuildSkipsDisabled(t *testing.T) {
	cfgs := map[string]config.Driver{
		"NoSuchDriver": {Enabled: false},
	}
	reg, err := Build(cfgs, Env{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("Len()=%d want 0", reg.Len())
	}
}
