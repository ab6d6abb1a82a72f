package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spatialmesh/stac-federator/pkg/stac"
)

// Error codes surfaced in per-datasource error entries.
const (
	CodeUnknownDatasource = "UnknownDatasource"
	CodeDriverSearch      = "DriverSearchError"
	CodeDriverExecute     = "DriverExecuteError"
	CodeTimeout           = "Timeout"
)

type ErrorEntry struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Entry is the outcome for one datasource: a feature collection on
// success, an error entry otherwise. Dropped counts items discarded by
// the schema validator; it is diagnostic only and not serialized.
type Entry struct {
	Collection *stac.FeatureCollection
	Err        *ErrorEntry
	Dropped    int
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Err != nil {
		return json.Marshal(struct {
			Error *ErrorEntry `json:"error"`
		}{Error: e.Err})
	}
	fc := e.Collection
	if fc == nil {
		fc = stac.NewFeatureCollection(nil)
	}
	return json.Marshal(fc)
}

// Result maps datasource name to its outcome. Every requested datasource
// appears exactly once.
type Result map[string]Entry

// NoValidDatasourcesError means every requested datasource was unknown, so
// nothing could run.
type NoValidDatasourcesError struct {
	Unknown []string
}

func (e *NoValidDatasourcesError) Error() string {
	return fmt.Sprintf("no known datasources among [%s]", strings.Join(e.Unknown, ", "))
}
