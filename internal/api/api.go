package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/calendar"
	"github.com/pmholt/eventscout/internal/pipeline"
	"github.com/pmholt/eventscout/internal/storage"
)

// EventLister reads persisted events. *storage.Store satisfies it.
type EventLister interface {
	ListEvents(ctx context.Context, col storage.Collection, date string) ([]storage.StoredEvent, error)
}

// Runner executes one pipeline run. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, date string, opts pipeline.Options) *pipeline.Result
}

// Config configures the HTTP server.
type Config struct {
	Addr string
	// AllowedOrigins is the CORS allowlist. Empty disables CORS headers.
	AllowedOrigins []string
	// RunOptions are the pipeline settings applied to API-triggered runs.
	RunOptions pipeline.Options
}

// Server serves the REST API over the stored collections and exposes a
// trigger endpoint for pipeline runs.
type Server struct {
	cfg    Config
	store  EventLister
	runner Runner
	srv    *http.Server
	log    zerolog.Logger
}

// New creates a Server. gatherer backs /metrics; pass the registry the
// pipeline's collectors are registered with.
func New(cfg Config, store EventLister, runner Runner, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		runner: runner,
		log:    log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.handleList(storage.CollectionEvents))
		r.Get("/compilations", s.handleList(storage.CollectionCompilations))
		r.Get("/curated", s.handleList(storage.CollectionCurated))
		r.Get("/events.ics", s.handleICS)
		r.Post("/runs", s.handleRun)
	})

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run starts the server and blocks until ctx is cancelled or the listener
// fails. Shutdown drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(col storage.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date != "" && !validDate(date) {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}

		events, err := s.store.ListEvents(r.Context(), col, date)
		if err != nil {
			s.log.Error().Err(err).Str("collection", string(col)).Msg("list query failed")
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		if events == nil {
			events = []storage.StoredEvent{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"collection": col,
			"count":      len(events),
			"events":     events,
		})
	}
}

// handleICS serves the events collection as an iCalendar feed, for
// subscribing from calendar apps.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" && !validDate(date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	events, err := s.store.ListEvents(r.Context(), storage.CollectionEvents, date)
	if err != nil {
		s.log.Error().Err(err).Msg("ics query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write([]byte(calendar.GenerateICS(events)))
}

type runRequest struct {
	Date string `json:"date"`
}

// handleRun triggers a synchronous pipeline run. The run itself never
// errors; a failed run comes back as 200 with success=false in the body.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !validDate(req.Date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	result := s.runner.Run(r.Context(), req.Date, s.cfg.RunOptions)
	writeJSON(w, http.StatusOK, result)
}

func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
