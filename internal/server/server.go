// Package server runs the agent's HTTP front: the /agent control surface,
// health and metrics endpoints, and the catch-all intercept that routes
// every other request through the strategy router.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/truckfixgo/offline-agent/internal/api"
	"github.com/truckfixgo/offline-agent/internal/observability"
	"github.com/truckfixgo/offline-agent/internal/strategy"
)

// Server is the HTTP server for the offline agent.
type Server struct {
	apiServer  *api.Server
	router     *strategy.Router
	upstream   *url.URL
	port       int
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a new Server. allowedOrigins is the set of page origins the
// control surface accepts cross-origin calls from.
func New(
	apiSrv *api.Server,
	strategyRouter *strategy.Router,
	upstreamBase string,
	port int,
	allowedOrigins []string,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	upstream, err := url.Parse(upstreamBase)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream base %q: %w", upstreamBase, err)
	}

	s := &Server{
		apiServer: apiSrv,
		router:    strategyRouter,
		upstream:  upstream,
		port:      port,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	// Control surface
	r.Route("/agent", func(r chi.Router) {
		apiSrv.Mount(r)
	})

	// Everything else is application traffic and goes through the
	// strategy router.
	r.Handle("/*", http.HandlerFunc(s.intercept))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the HTTP server and blocks until ctx is canceled. Shutdown
// waits for in-flight background revalidations before returning.
func (s *Server) Run(ctx context.Context) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		err := s.httpServer.Shutdown(shutdownCtx)
		s.router.Wait()
		return err
	case err := <-errCh:
		return err
	}
}

// intercept rewrites the incoming request onto the upstream origin and
// serves whatever the strategy router decides: live response, cached copy,
// or the synthetic network-error response. The page never sees a transport
// failure from here.
func (s *Server) intercept(w http.ResponseWriter, r *http.Request) {
	target := *s.upstream
	target.Path = r.URL.Path
	target.RawQuery = r.URL.RawQuery

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		body = b
	}

	resp := s.router.Handle(r.Context(), strategy.Request{
		Method: r.Method,
		URL:    target.String(),
		Header: r.Header,
		Body:   body,
	})

	for name, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// requestLogger is a chi middleware that logs each incoming request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
