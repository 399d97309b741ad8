// Package api serves the report tables and the lead upload endpoint to the
// presentation layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/artifact"
	"github.com/sells-group/leadops-cli/internal/fetcher"
	"github.com/sells-group/leadops-cli/internal/metrics"
	"github.com/sells-group/leadops-cli/internal/pipeline"
	"github.com/sells-group/leadops-cli/internal/report"
)

// maxUpload bounds the size of an uploaded lead export.
const maxUpload = 32 << 20

// Reports is what the API serves.
type Reports interface {
	Cohort(ctx context.Context) (report.Cohort, error)
	Funnel(ctx context.Context, opts report.FunnelOptions) ([]report.FunnelRow, error)
	CachedFunnel(ctx context.Context) ([]report.FunnelRow, time.Time, error)
	Duplicates(ctx context.Context, opts report.DuplicateOptions) ([]report.DuplicateRow, error)
	UploadLeads(ctx context.Context, header []string, rows [][]string, dryRun bool) (pipeline.UploadResult, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type server struct {
	reports Reports
	db      Pinger
	now     func() time.Time
}

// NewRouter builds the API handler. db may be nil.
func NewRouter(reports Reports, db Pinger, corsOrigins []string) http.Handler {
	s := &server{reports: reports, db: db, now: time.Now}
	return s.routes(corsOrigins)
}

func (s *server) routes(corsOrigins []string) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(requestLogger)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	mux.Get("/health", s.health)
	mux.Handle("/metrics", metrics.Handler())
	mux.Route("/reports", func(r chi.Router) {
		r.Get("/cohort", s.cohort)
		r.Get("/funnel-channel", s.funnel)
		r.Get("/duplicates", s.duplicates)
	})
	mux.Post("/leads/upload", s.upload)

	return mux
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) cohort(w http.ResponseWriter, r *http.Request) {
	c, err := s.reports.Cohort(r.Context())
	if err != nil {
		zap.L().Error("api: cohort report", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "cohort report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type funnelResponse struct {
	BuiltAt *time.Time         `json:"built_at,omitempty"`
	Rows    []report.FunnelRow `json:"rows"`
}

// funnel serves the stored artifact when no lead window is given and
// computes the report otherwise.
func (s *server) funnel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		rows, built, err := s.reports.CachedFunnel(r.Context())
		switch {
		case errors.Is(err, artifact.ErrNotBuilt):
			writeJSON(w, http.StatusOK, funnelResponse{Rows: report.FunnelPlaceholder()})
		case err != nil:
			zap.L().Error("api: cached funnel", zap.Error(err))
			writeJSON(w, http.StatusOK, funnelResponse{Rows: report.FunnelPlaceholder()})
		default:
			writeJSON(w, http.StatusOK, funnelResponse{BuiltAt: &built, Rows: rows})
		}
		return
	}

	from, to, err := dateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.reports.Funnel(r.Context(), report.FunnelOptions{
		LeadFrom:   from,
		LeadTo:     to,
		Categories: list(q.Get("categories")),
		Cumulative: flag(q.Get("cumulative")),
		ROMI:       flag(q.Get("romi")),
	})
	if err != nil {
		zap.L().Error("api: funnel report", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "funnel report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, funnelResponse{Rows: rows})
}

// duplicates defaults to yesterday.
func (s *server) duplicates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	yesterday := report.Day(s.now()).AddDate(0, 0, -1).Format(time.DateOnly)
	fromS, toS := q.Get("from"), q.Get("to")
	if fromS == "" {
		fromS = yesterday
	}
	if toS == "" {
		toS = fromS
	}
	from, to, err := dateRange(fromS, toS)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.reports.Duplicates(r.Context(), report.DuplicateOptions{From: from, To: to, Events: list(q.Get("events"))})
	if err != nil {
		zap.L().Error("api: duplicates report", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "duplicates report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// upload accepts a CSV export either as the "file" form field or as the raw
// request body.
func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	body := r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer f.Close() //nolint:errcheck
		body = f
	}

	rows, err := fetcher.ReadCSV(r.Context(), body, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid csv: "+err.Error())
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	res, err := s.reports.UploadLeads(r.Context(), rows[0], rows[1:], flag(r.URL.Query().Get("dry_run")))
	if err != nil {
		zap.L().Error("api: lead upload", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "lead upload failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func dateRange(fromS, toS string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.DateOnly, fromS)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
	}
	to, err := time.Parse(time.DateOnly, toS)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to is before from")
	}
	return from, to, nil
}

func list(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func flag(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
