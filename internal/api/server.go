// Package api serves the Query API over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/observability"
	"cloudboost-metrics/internal/query"
)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes bounds POST /v1/records request bodies.
	MaxBodyBytes int64
}

// Server is the HTTP front of a query.Service.
type Server struct {
	svc     *query.Service
	opts    Options
	log     *slog.Logger
	started time.Time
	http    *http.Server
}

// NewServer creates a server for svc. Zero options take defaults.
func NewServer(svc *query.Service, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	s := &Server{
		svc:     svc,
		opts:    opts,
		log:     logging.Component("api"),
		started: time.Now(),
	}
	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// NewRouter registers all routes.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/metrics", s.listMetrics).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/{id}", s.getMetric).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/{id}/series", s.getSeries).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/{id}/rollup", s.getRollup).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/{id}/stream", s.stream).Methods(http.MethodGet)
	v1.HandleFunc("/records", s.appendRecords).Methods(http.MethodPost)

	return r
}

// Handler returns the router wrapped in recovery and compression middleware.
// The stream route is excluded from compression since hijacked websocket
// connections cannot be gzipped.
func (s *Server) Handler() http.Handler {
	router := s.NewRouter()
	compressed := handlers.CompressHandler(router)
	mixed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocket(r) {
			router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.log}),
		handlers.PrintRecoveryStack(false),
	)(mixed)
}

// Start listens and serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }
	s.log.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return s.Stop()
}

// Stop shuts the server down, waiting up to the shutdown timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

// requestIDMiddleware echoes the caller's X-Request-ID, or generates one,
// and stores it in the request context for logging.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

type recoveryLogger struct{ log *slog.Logger }

func (l recoveryLogger) Println(args ...any) {
	l.log.Error("handler panic", "panic", fmt.Sprint(args...))
}
