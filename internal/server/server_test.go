package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytpub/internal/formatter"
	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
)

type stubDB struct{ err error }

func (s stubDB) PingContext(context.Context) error { return s.err }

type stubRecords struct {
	records  []*models.PublicationRecord
	err      error
	criteria map[string]any
}

func (s *stubRecords) List(criteria map[string]any) ([]*models.PublicationRecord, error) {
	s.criteria = criteria
	return s.records, s.err
}

type stubAssets map[string]string

func (s stubAssets) Get(id string) (*models.Asset, error) {
	title, ok := s[id]
	if !ok {
		return nil, shared.ErrAssetNotFound
	}
	a := models.NewAsset(0, title, "")
	a.SetID(id)
	return a, nil
}

func setupServer(t *testing.T, db Pinger, records *stubRecords) *httptest.Server {
	t.Helper()
	router := New(Opts{
		DB:      db,
		Records: records,
		Assets:  stubAssets{"asset-1": "Keynote"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "ytpub_up 1\n") }),
		Logger:  shared.NewLogger(io.Discard),
		Now:     func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var calls []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls = append(calls, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle("get", "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls = append(calls, "handler") }))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		if strings.Join(calls, ",") != "first,second,handler" {
			t.Errorf("unexpected call order %v", calls)
		}
	})

	t.Run("method filtering", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed || !strings.Contains(rec.Header().Get("Allow"), http.MethodGet) {
			t.Errorf("expected 405 with Allow header, got %d %q", rec.Code, rec.Header().Get("Allow"))
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected HEAD to be accepted, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/y", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown path, got %d", rec.Code)
		}
	})

	t.Run("recover middleware", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recover(shared.NewLogger(io.Discard)))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		server := setupServer(t, stubDB{}, &stubRecords{})
		resp, body := get(t, server.URL+"/healthz")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
			t.Errorf("expected ok, got %d %s", resp.StatusCode, body)
		}
	})

	t.Run("database down", func(t *testing.T) {
		server := setupServer(t, stubDB{err: errors.New("disk I/O error")}, &stubRecords{})
		resp, body := get(t, server.URL+"/healthz")
		if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, "disk I/O error") {
			t.Errorf("expected 503, got %d %s", resp.StatusCode, body)
		}
	})
}

func TestMetrics(t *testing.T) {
	server := setupServer(t, stubDB{}, &stubRecords{})
	resp, body := get(t, server.URL+"/metrics")
	if resp.StatusCode != http.StatusOK || body != "ytpub_up 1\n" {
		t.Errorf("unexpected metrics response %d %q", resp.StatusCode, body)
	}
}

func TestPublications(t *testing.T) {
	records := &stubRecords{records: []*models.PublicationRecord{
		models.RestorePublicationRecord(1, "asset-1", "vid-1", models.StatusPublished, "", "https://www.youtube.com/watch?v=vid-1", nil, false, false),
		models.RestorePublicationRecord(2, "asset-2", "", models.StatusError, "", "", nil, false, false),
	}}

	t.Run("json report", func(t *testing.T) {
		server := setupServer(t, stubDB{}, records)
		resp, body := get(t, server.URL+"/api/publications")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %s", ct)
		}

		var report formatter.Report
		if err := json.Unmarshal([]byte(body), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(report.Rows) != 2 || report.Rows[0].Title != "Keynote" || report.Rows[1].Title != "asset-2" {
			t.Errorf("unexpected rows %+v", report.Rows)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		server := setupServer(t, stubDB{}, records)
		resp, _ := get(t, server.URL+"/api/publications?status=published")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if records.criteria["status"] != "published" {
			t.Errorf("expected status criteria, got %v", records.criteria)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		server := setupServer(t, stubDB{}, records)
		resp, body := get(t, server.URL+"/api/publications?status=bogus")
		if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "bogus") {
			t.Errorf("expected 400, got %d %s", resp.StatusCode, body)
		}
	})

	t.Run("csv format", func(t *testing.T) {
		server := setupServer(t, stubDB{}, records)
		resp, body := get(t, server.URL+"/api/publications?format=csv")
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
			t.Errorf("expected CSV content type, got %s", resp.Header.Get("Content-Type"))
		}
		if !strings.HasPrefix(body, "Asset,Title") {
			t.Errorf("expected CSV body, got %s", body)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		server := setupServer(t, stubDB{}, records)
		resp, _ := get(t, server.URL+"/api/publications?format=xml")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		server := setupServer(t, stubDB{}, &stubRecords{err: errors.New("locked")})
		resp, _ := get(t, server.URL+"/api/publications")
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", resp.StatusCode)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		server := setupServer(t, stubDB{}, records)
		resp, err := http.Post(server.URL+"/api/publications", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), shared.NewLogger(io.Discard))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
