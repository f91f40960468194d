package testdata

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jask/simdash/internal/wire"
)

func TestSimLifecycle(t *testing.T) {
	s := NewSim(1)
	p := s.Add("a.csv", "x", "y")
	if len(p.Data.Datasets) != 2 || len(p.Data.Datasets[0].Values) != 2 {
		t.Fatalf("payload = %+v", p)
	}
	p, ok := s.Step("a.csv")
	if !ok || len(p.Data.Datasets[1].Values) != 3 {
		t.Fatalf("step = %+v, %v", p, ok)
	}
	if _, ok := s.Step("missing"); ok {
		t.Fatal("step on missing chart succeeded")
	}
	s.Add("b.csv", "x")
	if !s.Remove("a.csv") || s.Remove("a.csv") {
		t.Fatal("remove should succeed once")
	}
	if ids := s.IDs(); len(ids) != 1 || ids[0] != "b.csv" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestSimHandler(t *testing.T) {
	s := NewSim(2)
	s.Add("a.csv", "x")
	srv := httptest.NewServer(s.Handler("/getcsvdata", "/buildsingledata"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/getcsvdata")
	if err != nil {
		t.Fatal(err)
	}
	var batch []wire.ChartPayload
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(batch) != 1 || batch[0].File != "a.csv" {
		t.Fatalf("batch = %+v", batch)
	}

	resp, err = http.Get(srv.URL + "/buildsingledata/missing.csv")
	if err != nil {
		t.Fatal(err)
	}
	var detail []wire.ChartPayload
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(detail) != 0 {
		t.Fatalf("detail for missing = %+v", detail)
	}
}
