// Package api serves the cache and the live score overlay over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leonardcser/livescore-mcp/internal/livescore"
)

// Cache is the part of *cache.Tiered the API serves.
type Cache interface {
	Peek(url string) (json.RawMessage, bool)
	InvalidateAll()
}

// Scores is the part of *livescore.Overlay the API serves.
type Scores interface {
	Refresh(ctx context.Context) (livescore.RefreshResult, error)
	ByEventID(id string) (livescore.Record, bool)
	ByTeams(home, away string) (livescore.Record, bool)
	MatchScore(home, away string, isLive bool) *livescore.MatchScore
}

// Server holds the router and the components it serves.
type Server struct {
	router   *chi.Mux
	cache    Cache
	scores   Scores
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

type Options struct {
	// Logger is the *zap.Logger for request logs.
	// A nil Logger will disable logging.
	Logger *zap.Logger
	// Gatherer backs /metrics. Nil leaves /metrics unrouted.
	Gatherer prometheus.Gatherer
	// Timeout bounds every request. Default is 30s.
	Timeout time.Duration
}

// New constructs a Server with middleware and routes configured.
func New(c Cache, scores Scores, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	s := &Server{
		router:   chi.NewRouter(),
		cache:    c,
		scores:   scores,
		logger:   opts.Logger,
		gatherer: opts.Gatherer,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLog)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(opts.Timeout))

	s.router.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/scores", func(r chi.Router) {
		r.Get("/events/{id}", s.handleByEvent)
		r.Get("/match", s.handleMatch)
		r.Post("/refresh", s.handleRefresh)
	})
	s.router.Route("/cache", func(r chi.Router) {
		r.Get("/peek", s.handlePeek)
		r.Post("/invalidate", s.handleInvalidate)
	})
	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleByEvent(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.scores.ByEventID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleMatch answers with the record and the subscription tuple. live
// defaults to true; live=false always yields a null score.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	home, away := q.Get("home"), q.Get("away")
	if home == "" || away == "" {
		writeError(w, http.StatusBadRequest, "home and away are required")
		return
	}
	live := true
	if v := q.Get("live"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid live flag")
			return
		}
		live = b
	}
	if !live {
		writeJSON(w, http.StatusOK, map[string]any{"score": nil})
		return
	}
	rec, ok := s.scores.ByTeams(home, away)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record": rec,
		"score":  s.scores.MatchScore(home, away, true),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.scores.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	type category struct {
		Category string `json:"category"`
		Records  int    `json:"records"`
		Error    string `json:"error,omitempty"`
	}
	cats := make([]category, 0, len(res.Categories))
	for _, c := range res.Categories {
		out := category{Category: string(c.Category), Records: c.Records}
		if c.Err != nil {
			out.Error = c.Err.Error()
		}
		cats = append(cats, out)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"skipped":    res.Skipped,
		"startedAt":  res.StartedAt,
		"written":    res.Written,
		"pruned":     res.Pruned,
		"categories": cats,
	})
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	payload, ok := s.cache.Peek(url)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, _ *http.Request) {
	s.cache.InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
