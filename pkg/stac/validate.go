package stac

import (
	"fmt"
	"strings"
)

// ValidationError lists the required fields a candidate item is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Validate is the soft schema check applied to every candidate item before
// it is accepted into a result set. Presence and basic shape only, no deep
// GeoJSON conformance. Safe for concurrent use.
func Validate(it Item) error {
	var missing []string

	if strings.TrimSpace(it.ID) == "" {
		missing = append(missing, "id")
	}
	if it.Type != "Feature" {
		missing = append(missing, `type="Feature"`)
	}
	if it.Geometry == nil || it.Geometry.Type == "" || len(it.Geometry.Coordinates) == 0 {
		missing = append(missing, "geometry")
	}
	if len(it.BBox) < 4 {
		missing = append(missing, "bbox")
	}
	if _, err := it.Datetime(); err != nil {
		missing = append(missing, "properties.datetime")
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
