// Package coverage defines the read-mostly spatial coverage index some
// drivers consult when their upstream has no native spatial query support.
package coverage

import (
	"context"
	"encoding/json"
	"errors"
)

// Index is a datasource -> H3 cell membership lookup. Implementations must
// be safe for concurrent use; queries only ever read.
type Index interface {
	// Covers reports whether any of the cells is covered by the datasource.
	Covers(ctx context.Context, datasource string, cells []string) (bool, error)
	Add(ctx context.Context, datasource string, cells []string) error
	Remove(ctx context.Context, datasource string, cells []string) error
	// Resolution is the H3 resolution the index is keyed at.
	Resolution() int
}

const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// Event is a coverage update published by dataset ingestion pipelines and
// consumed from Kafka. Exactly one of BBox or Geometry describes the
// affected footprint.
type Event struct {
	Op         string          `json:"op"`
	Datasource string          `json:"datasource"`
	BBox       []float64       `json:"bbox,omitempty"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

func (ev Event) Validate() error {
	if ev.Op != OpAdd && ev.Op != OpRemove {
		return errors.New("op must be add or remove")
	}
	if ev.Datasource == "" {
		return errors.New("datasource is required")
	}
	if len(ev.BBox) == 0 && len(ev.Geometry) == 0 {
		return errors.New("event carries neither bbox nor geometry")
	}
	if len(ev.BBox) != 0 && len(ev.BBox) != 4 {
		return errors.New("bbox must have 4 numbers")
	}
	return nil
}
