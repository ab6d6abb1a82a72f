package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spatialmesh/stac-federator/internal/manifest"
	"github.com/spatialmesh/stac-federator/internal/query"
	"github.com/spatialmesh/stac-federator/pkg/stac"
)

type fakeSearcher struct {
	calls int
	res   manifest.Result
	err   error
}

func (f *fakeSearcher) Run(_ context.Context, _ query.Query) (manifest.Result, error) {
	f.calls++
	return f.res, f.err
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/stac/search", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Search(rr, req)
	return rr
}

func TestSearchRejectsMalformedBeforeDrivers(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no datasources", `{"bbox":[0,0,1,1]}`},
		{"no spatial source", `{"datasources":["A"]}`},
		{"both spatial sources", `{"datasources":["A"],"bbox":[0,0,1,1],"intersects":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`},
		{"negative limit", `{"datasources":["A"],"bbox":[0,0,1,1],"limit":-5}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeSearcher{}
			h := NewHandler(fs, nil)

			rr := post(t, h, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d want 400", rr.Code)
			}
			if fs.calls != 0 {
				t.Fatalf("searcher ran %d times; malformed queries must not reach drivers", fs.calls)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Code != query.CodeMalformed {
				t.Fatalf("code=%q want %q", body.Error.Code, query.CodeMalformed)
			}
		})
	}
}

func TestSearchSuccess(t *testing.T) {
	fs := &fakeSearcher{res: manifest.Result{
		"A": {Collection: stac.NewFeatureCollection(nil)},
		"B": {Err: &manifest.ErrorEntry{Code: manifest.CodeDriverExecute, Message: "boom"}},
	}}
	h := NewHandler(fs, nil)

	rr := post(t, h, `{"datasources":["A","B"],"bbox":[0,0,1,1]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	if fs.calls != 1 {
		t.Fatalf("calls=%d want 1", fs.calls)
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(string(out["A"]), "FeatureCollection") {
		t.Fatalf("A=%s", out["A"])
	}
	if !strings.Contains(string(out["B"]), manifest.CodeDriverExecute) {
		t.Fatalf("B=%s", out["B"])
	}
}

func TestSearchAllUnknownDatasources(t *testing.T) {
	res := manifest.Result{
		"X": {Err: &manifest.ErrorEntry{Code: manifest.CodeUnknownDatasource, Message: `datasource "X" is not registered`}},
	}
	fs := &fakeSearcher{res: res, err: &manifest.NoValidDatasourcesError{Unknown: []string{"X"}}}
	h := NewHandler(fs, nil)

	rr := post(t, h, `{"datasources":["X"],"bbox":[0,0,1,1]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), manifest.CodeUnknownDatasource) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}
