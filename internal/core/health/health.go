// Package health exposes liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// DatasourceLister reports the datasources the service can currently serve.
type DatasourceLister interface {
	Names() []string
}

func Readiness(dl DatasourceLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status      string   `json:"status"`
			Datasources []string `json:"datasources,omitempty"`
		}
		names := dl.Names()
		out := resp{Status: "not_ready"}
		w.Header().Set("Content-Type", "application/json")
		if len(names) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		out.Status = "ready"
		out.Datasources = names
		_ = json.NewEncoder(w).Encode(out)
	}
}
