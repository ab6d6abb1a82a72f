// Package query normalizes raw search requests into the immutable Query
// consumed by the orchestrator and every driver.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spatialmesh/stac-federator/internal/geo"
)

const DefaultLimit = 10

// CodeMalformed is the error code surfaced to clients for request-level
// validation failures.
const CodeMalformed = "MalformedQuery"

// MalformedError fails the whole request before any driver runs.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed query: " + e.Reason
}

func malformed(format string, args ...any) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is a request-level validation failure.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

type Operator string

const (
	OpEq  Operator = "eq"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpIn  Operator = "in"
)

var operators = map[Operator]struct{}{
	OpEq: {}, OpLt: {}, OpLte: {}, OpGt: {}, OpGte: {}, OpIn: {},
}

// Predicate is a single-operator comparison against a STAC property value.
type Predicate struct {
	Op    Operator
	Value any
}

// Matches evaluates the predicate against a candidate property value.
// Numbers compare numerically, everything else as strings. Used by drivers
// that must filter client-side.
func (p Predicate) Matches(v any) bool {
	if p.Op == OpIn {
		vals, ok := p.Value.([]any)
		if !ok {
			return false
		}
		for _, candidate := range vals {
			if equalValues(candidate, v) {
				return true
			}
		}
		return false
	}

	if an, aok := toFloat(v); aok {
		if bn, bok := toFloat(p.Value); bok {
			return compare(p.Op, an, bn)
		}
		return false
	}

	as := fmt.Sprintf("%v", v)
	bs := fmt.Sprintf("%v", p.Value)
	switch p.Op {
	case OpEq:
		return as == bs
	case OpLt:
		return as < bs
	case OpLte:
		return as <= bs
	case OpGt:
		return as > bs
	case OpGte:
		return as >= bs
	}
	return false
}

func compare(op Operator, a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	}
	return false
}

func equalValues(a, b any) bool {
	if an, ok := toFloat(a); ok {
		if bn, ok := toFloat(b); ok {
			return an == bn
		}
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Interval is a closed temporal range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// Raw is the inbound wire shape of a search request.
type Raw struct {
	Datasources []string                  `json:"datasources"`
	BBox        []float64                 `json:"bbox,omitempty"`
	Intersects  json.RawMessage           `json:"intersects,omitempty"`
	Time        string                    `json:"time,omitempty"`
	Properties  map[string]map[string]any `json:"properties,omitempty"`
	Limit       *int                      `json:"limit,omitempty"`
}

// Query is the normalized, validated request. Immutable after Normalize;
// owned by one orchestrator run.
type Query struct {
	Geometry    geo.Polygon
	Temporal    *Interval
	Properties  map[string]Predicate
	Limit       int
	Datasources []string
}

// BBox is the envelope of the normalized geometry.
func (q Query) BBox() geo.BBox {
	return q.Geometry.Envelope()
}

// TemporalContains reports whether t falls inside the query's temporal
// range. Queries without a range accept everything.
func (q Query) TemporalContains(t time.Time) bool {
	if q.Temporal == nil {
		return true
	}
	return q.Temporal.Contains(t)
}

// MatchesProperties evaluates every property predicate against a candidate
// item's properties map.
func (q Query) MatchesProperties(props map[string]any) bool {
	for key, pred := range q.Properties {
		v, ok := props[key]
		if !ok || !pred.Matches(v) {
			return false
		}
	}
	return true
}

// Normalize validates the raw request and computes the canonical geometry.
// Any violation yields a MalformedError; unknown datasource names are NOT
// checked here (the orchestrator scopes those failures per datasource).
func Normalize(raw Raw) (Query, error) {
	var q Query

	if len(raw.Datasources) == 0 {
		return q, malformed("datasources must be a non-empty list")
	}
	for i, ds := range raw.Datasources {
		if strings.TrimSpace(ds) == "" {
			return q, malformed("datasources[%d] is empty", i)
		}
	}
	q.Datasources = append([]string(nil), raw.Datasources...)

	hasBBox := len(raw.BBox) > 0
	hasIntersects := len(raw.Intersects) > 0
	switch {
	case hasBBox && hasIntersects:
		return q, malformed("exactly one of bbox or intersects is required (both given)")
	case !hasBBox && !hasIntersects:
		return q, malformed("exactly one of bbox or intersects is required (neither given)")
	case hasBBox:
		if len(raw.BBox) != 4 {
			return q, malformed("bbox must have 4 numbers (got %d)", len(raw.BBox))
		}
		bb := geo.BBox{MinX: raw.BBox[0], MinY: raw.BBox[1], MaxX: raw.BBox[2], MaxY: raw.BBox[3]}
		if err := bb.Validate(); err != nil {
			return q, malformed("invalid bbox: %v", err)
		}
		q.Geometry = geo.FromBBox(bb)
	default:
		var poly geo.Polygon
		if err := json.Unmarshal(raw.Intersects, &poly); err != nil {
			return q, malformed("invalid intersects: %v", err)
		}
		if err := poly.Validate(); err != nil {
			return q, malformed("invalid intersects: %v", err)
		}
		q.Geometry = poly
	}

	if raw.Time != "" {
		iv, err := parseInterval(raw.Time)
		if err != nil {
			return q, err
		}
		q.Temporal = &iv
	}

	if len(raw.Properties) > 0 {
		preds := make(map[string]Predicate, len(raw.Properties))
		for key, spec := range raw.Properties {
			if len(spec) != 1 {
				return q, malformed("properties[%s] must have exactly one operator (got %d)", key, len(spec))
			}
			for opName, val := range spec {
				op := Operator(opName)
				if _, ok := operators[op]; !ok {
					return q, malformed("properties[%s]: unsupported operator %q", key, opName)
				}
				if op == OpIn {
					if _, ok := val.([]any); !ok {
						return q, malformed("properties[%s]: operator in requires an array value", key)
					}
				}
				preds[key] = Predicate{Op: op, Value: val}
			}
		}
		q.Properties = preds
	}

	q.Limit = DefaultLimit
	if raw.Limit != nil {
		if *raw.Limit <= 0 {
			return q, malformed("limit must be a positive integer (got %d)", *raw.Limit)
		}
		q.Limit = *raw.Limit
	}

	return q, nil
}

// parseInterval splits "start/end" and parses each side as RFC3339 or a
// bare date, matching the formats the upstream catalogs accept.
func parseInterval(s string) (Interval, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Interval{}, malformed("time must be of the form start/end (got %q)", s)
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return Interval{}, malformed("time start: %v", err)
	}
	end, err := parseTimestamp(parts[1])
	if err != nil {
		return Interval{}, malformed("time end: %v", err)
	}
	if start.After(end) {
		return Interval{}, malformed("time start %s is after end %s", parts[0], parts[1])
	}
	return Interval{Start: start, End: end}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}
