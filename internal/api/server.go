package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/geo"
	"github.com/JakeFAU/tournament-scraper/internal/metrics"
	"github.com/JakeFAU/tournament-scraper/internal/throttle"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

// Geocoder looks up a city and reports which stage answered.
type Geocoder interface {
	Lookup(raw string) (*tournament.Geo, geo.Stage)
}

// Server wires HTTP handlers to the running services.
type Server struct {
	router    chi.Router
	throttles []*throttle.Throttle
	geocoder  Geocoder
	logger    *zap.Logger
	httpSrv   *http.Server
}

// NewServer constructs a Server with middleware and routes. geocoder may be
// nil, in which case /v1/geocode answers 503.
func NewServer(throttles []*throttle.Throttle, geocoder Geocoder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		throttles: throttles,
		geocoder:  geocoder,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/throttles", s.listThrottles)
		r.Get("/geocode", s.geocode)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr in the background and returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.httpSrv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type throttleStatus struct {
	Name          string `json:"name"`
	Active        int64  `json:"active"`
	Queued        int64  `json:"queued"`
	MaxConcurrent int    `json:"max_concurrent"`
}

func (s *Server) listThrottles(w http.ResponseWriter, _ *http.Request) {
	out := make([]throttleStatus, 0, len(s.throttles))
	for _, t := range s.throttles {
		st := t.Stats()
		out = append(out, throttleStatus{
			Name:          st.Name,
			Active:        st.Active,
			Queued:        st.Queued,
			MaxConcurrent: st.MaxConcurrent,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type geocodeResponse struct {
	Query string          `json:"query"`
	Stage string          `json:"stage"`
	Geo   *tournament.Geo `json:"geo"`
}

func (s *Server) geocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoder not configured")
		return
	}
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	g, stage := s.geocoder.Lookup(q)
	status := http.StatusOK
	if g == nil {
		status = http.StatusNotFound
	}
	writeJSON(w, status, geocodeResponse{Query: q, Stage: string(stage), Geo: g})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
