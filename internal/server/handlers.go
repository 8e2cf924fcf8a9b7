package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpub/internal/formatter"
	"github.com/desertthunder/ytpub/internal/models"
	"github.com/desertthunder/ytpub/internal/shared"
)

// PublicationLister lists publication records by criteria.
type PublicationLister interface {
	List(criteria map[string]any) ([]*models.PublicationRecord, error)
}

// AssetReader reads single assets.
type AssetReader interface {
	Get(id string) (*models.Asset, error)
}

// Pinger reports whether the database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Opts carries the collaborators of the status server.
type Opts struct {
	DB      Pinger
	Records PublicationLister
	Assets  AssetReader
	Metrics http.Handler
	Logger  *log.Logger
	Now     func() time.Time
}

// New builds the router of the status server.
func New(opts Opts) *BasicRouter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = http.NotFoundHandler()
	}

	r := NewBasicRouter()
	r.Use(Recover(opts.Logger), Logging(opts.Logger))
	r.Handle(http.MethodGet, "/healthz", &HealthHandler{db: opts.DB})
	r.Handle(http.MethodGet, "/metrics", opts.Metrics)
	r.Handler(&PublicationsHandler{records: opts.Records, assets: opts.Assets, logger: opts.Logger, now: opts.Now})
	return r
}

// HealthHandler answers 200 while the database is reachable and 503 otherwise.
type HealthHandler struct {
	db Pinger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PublicationsHandler serves the publication report.
//
// Query parameters: status filters records, format picks the encoding (json by default).
type PublicationsHandler struct {
	records PublicationLister
	assets  AssetReader
	logger  *log.Logger
	now     func() time.Time
}

// NewPublicationsHandler creates a [PublicationsHandler].
func NewPublicationsHandler(records PublicationLister, assets AssetReader, logger *log.Logger) *PublicationsHandler {
	return &PublicationsHandler{records: records, assets: assets, logger: logger, now: time.Now}
}

func (h *PublicationsHandler) Routes() []string {
	return []string{"GET /api/publications"}
}

func (h *PublicationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	query := r.URL.Query()
	criteria := map[string]any{}
	if status := query.Get("status"); status != "" {
		if !models.Status(status).Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown status %q", status)})
			return
		}
		criteria["status"] = status
	}

	records, err := h.records.List(criteria)
	if err != nil {
		h.logger.Error("failed to list publications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list publications"})
		return
	}

	titles := make(map[string]string, len(records))
	for _, rec := range records {
		if asset, err := h.assets.Get(rec.AssetID()); err == nil {
			titles[rec.AssetID()] = asset.Title()
		}
	}

	format := query.Get("format")
	if format == "" {
		format = formatter.FormatJSON
	}

	data, err := formatter.Render(formatter.NewReport(records, titles, h.now()), format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func contentType(format string) string {
	switch format {
	case formatter.FormatCSV:
		return "text/csv; charset=utf-8"
	case formatter.FormatMarkdown, "md":
		return "text/markdown; charset=utf-8"
	case formatter.FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
