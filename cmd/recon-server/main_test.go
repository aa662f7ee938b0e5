package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"finrecon/internal/discrepancy"
	"finrecon/internal/recon"
	"finrecon/internal/store"
)

func seededServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	rep := recon.Report{
		Status: recon.StatusOK,
		Discrepancies: []discrepancy.Record{
			{Key: "1-1111-1111", Column: "Amount", Variance: 2, Severity: discrepancy.Minor},
			{Key: "1-2222-2222", Column: "Amount", Variance: 900, MissingInRight: true, Severity: discrepancy.Major},
		},
	}
	id, err := s.SaveRun(context.Background(), rep, "left.csv", "right.csv")
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	return newMux(s), id
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRunsEndpoints(t *testing.T) {
	h, id := seededServer(t)

	if rec := get(t, h, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health got=%d %q", rec.Code, rec.Body.String())
	}

	rec := get(t, h, "/runs?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("list got=%d want=200", rec.Code)
	}
	var runs []store.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Fatalf("runs got=%+v want id %s", runs, id)
	}

	rec = get(t, h, "/runs/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("get run got=%d want=200", rec.Code)
	}
	var run struct {
		ID     string          `json:"id"`
		Report json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID != id || len(run.Report) == 0 {
		t.Fatalf("run got=%+v", run)
	}

	rec = get(t, h, "/runs/"+id+"/discrepancies?severity=MAJOR")
	var recs []discrepancy.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode discrepancies: %v", err)
	}
	if len(recs) != 1 || recs[0].Key != "1-2222-2222" {
		t.Fatalf("major discrepancies got=%+v", recs)
	}
}

func TestRunsErrors(t *testing.T) {
	h, id := seededServer(t)
	cases := map[string]int{
		"/runs?limit=0":               http.StatusBadRequest,
		"/runs/missing":               http.StatusNotFound,
		"/runs/missing/discrepancies": http.StatusNotFound,
		"/runs/" + id + "/other":      http.StatusNotFound,
		"/runs/":                      http.StatusNotFound,
	}
	for path, want := range cases {
		if got := get(t, h, path).Code; got != want {
			t.Fatalf("%s got=%d want=%d", path, got, want)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /runs got=%d want=405", rec.Code)
	}
}
