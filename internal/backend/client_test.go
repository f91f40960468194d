package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jask/simdash/internal/testdata"
	"github.com/jask/simdash/internal/wire"
)

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "/getcsvdata", "/buildsingledata", 2*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchAllAndOne(t *testing.T) {
	sim := testdata.NewSim(5)
	sim.Add("a.csv", "agents")
	sim.Add("b b.csv", "x", "y")
	c := newClient(t, sim.Handler("/getcsvdata", "/buildsingledata"))
	ctx := context.Background()

	all, err := c.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(all) != 2 || all[0].File != "a.csv" || all[1].File != "b b.csv" {
		t.Fatalf("FetchAll = %+v", all)
	}

	one, err := c.FetchOne(ctx, "b b.csv")
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if one.File != "b b.csv" || len(one.Data.Datasets) != 2 {
		t.Fatalf("FetchOne = %+v", one)
	}

	sim.Remove("a.csv")
	if _, err := c.FetchOne(ctx, "a.csv"); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("FetchOne removed = %v", err)
	}
}

func TestFetchErrors(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/getcsvdata", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})
	mux.HandleFunc("/buildsingledata/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newClient(t, mux)

	if _, err := c.FetchAll(ctx); !errors.Is(err, wire.ErrMalformed) {
		t.Fatalf("FetchAll err = %v", err)
	}
	if _, err := c.FetchOne(ctx, "x"); err == nil || errors.Is(err, ErrUnknownID) {
		t.Fatalf("FetchOne err = %v", err)
	}

	c404 := newClient(t, http.NotFoundHandler())
	if _, err := c404.FetchOne(ctx, "x"); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("404 err = %v", err)
	}
}

func TestNewClientValidatesURL(t *testing.T) {
	if _, err := NewClient("ftp://host", "/a", "/b", time.Second); err == nil {
		t.Fatal("expected scheme error")
	}
}
