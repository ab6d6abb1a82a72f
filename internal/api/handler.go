// Package api implements the search endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spatialmesh/stac-federator/internal/manifest"
	"github.com/spatialmesh/stac-federator/internal/query"
)

// Searcher runs a normalized query; the concrete implementation is
// *manifest.Manifest.
type Searcher interface {
	Run(ctx context.Context, q query.Query) (manifest.Result, error)
}

type Handler struct {
	search Searcher
	logger *slog.Logger
}

func NewHandler(search Searcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{search: search, logger: logger}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Search handles POST /stac/search. Malformed queries are rejected before
// any driver runs; driver failures come back inside the per-datasource
// entries with status 200.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var raw query.Raw
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, query.CodeMalformed, "invalid JSON body: "+err.Error())
		return
	}

	q, err := query.Normalize(raw)
	if err != nil {
		if query.IsMalformed(err) {
			writeError(w, http.StatusBadRequest, query.CodeMalformed, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "normalize failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal", "query normalization failed")
		return
	}

	res, err := h.search.Run(r.Context(), q)
	if err != nil {
		var nv *manifest.NoValidDatasourcesError
		if errors.As(err, &nv) {
			// The result still carries one UnknownDatasource entry per name.
			writeJSON(w, http.StatusBadRequest, res)
			return
		}
		h.logger.ErrorContext(r.Context(), "search run failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal", "search failed")
		return
	}

	okCount, errCount := 0, 0
	for _, e := range res {
		if e.Err != nil {
			errCount++
		} else {
			okCount++
		}
	}
	h.logger.InfoContext(r.Context(), "search completed",
		"datasources", len(res), "ok", okCount, "failed", errCount)

	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
