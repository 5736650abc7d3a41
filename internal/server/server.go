// Package server exposes ingestion over HTTP: file upload, policy lookup and
// aggregation, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/vvka-141/polingest/internal/config"
	"github.com/vvka-141/polingest/internal/domain"
	"github.com/vvka-141/polingest/internal/worker"
	"github.com/vvka-141/polingest/pkg/polingest"
)

// shutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const shutdownTimeout = 30 * time.Second

// Ingester runs one uploaded file. *worker.Pool implements it.
type Ingester interface {
	Do(ctx context.Context, path string) (worker.Result, error)
}

// PolicyStore answers policy lookups. store.Store implements it.
type PolicyStore interface {
	FindUserByFirstName(ctx context.Context, firstName string) (*domain.User, error)
	PoliciesForUser(ctx context.Context, userID uuid.UUID) ([]domain.PolicyView, error)
	AggregatedPolicies(ctx context.Context) ([]domain.UserPolicies, error)
	Ping(ctx context.Context) error
}

// Server routes requests to the ingestion pool and the store.
type Server struct {
	settings config.ServerSettings
	ingester Ingester
	store    PolicyStore
	metrics  http.Handler
	logger   polingest.Logger

	started time.Time
	now     func() time.Time
}

// New creates a Server. metrics may be nil to disable the metrics endpoint.
// Panics if ingester, store or logger is nil.
func New(settings config.ServerSettings, ingester Ingester, store PolicyStore, metrics http.Handler, logger polingest.Logger) *Server {
	if ingester == nil {
		panic("ingester cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Server{
		settings: settings,
		ingester: ingester,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		started:  time.Now(),
		now:      time.Now,
	}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/policy", s.handlePolicy).Methods(http.MethodGet)
	r.HandleFunc("/aggregated-policies", s.handleAggregatedPolicies).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil && s.settings.MetricsPath != "" {
		r.Handle(s.settings.MetricsPath, s.metrics).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	r.Use(s.logRequests)

	c := cors.New(cors.Options{
		AllowedOrigins: s.settings.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.settings.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w: %w", s.settings.Addr, polingest.ErrInvalidConfig, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Verbose("%s %s %d %s", r.Method, r.URL.Path, rec.status, s.now().Sub(start).Round(time.Millisecond))
	})
}
