package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPageProber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a user agent")
		}
		switch r.URL.Query().Get("v") {
		case "live":
			w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	prober := NewPageProber(server.Client())

	t.Run("reachable", func(t *testing.T) {
		ok, err := prober.Probe(context.Background(), server.URL+"/watch?v=live")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Error("expected reachable page")
		}
	})

	t.Run("missing", func(t *testing.T) {
		ok, err := prober.Probe(context.Background(), server.URL+"/watch?v=gone")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected unreachable page")
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		ok, err := prober.Probe(context.Background(), "http://127.0.0.1:1/watch?v=x")
		if err == nil || ok {
			t.Errorf("expected failure, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("default client", func(t *testing.T) {
		if NewPageProber(nil).client == nil {
			t.Error("expected a default client")
		}
	})
}
