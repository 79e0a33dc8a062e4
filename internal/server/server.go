// Package server serves aggregated lineage graphs and their layouts over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaplineage/internal/service"
)

// DefaultPort is the port used when Config.Port is zero.
const DefaultPort = 5173

// Server is the lineage HTTP server.
type Server struct {
	svc            *service.Service
	port           int
	watchDir       string
	schedule       string
	allowedOrigins []string
	logger         *slog.Logger
}

// Config holds configuration for the server.
type Config struct {
	Service *service.Service
	Port    int
	// WatchDir is a local results directory to watch for changes. Empty disables watching.
	WatchDir string
	// Schedule is a cron expression for periodic rebuilds. Empty disables it.
	Schedule       string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// New creates a new server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return &Server{
		svc:            cfg.Service,
		port:           port,
		watchDir:       cfg.WatchDir,
		schedule:       cfg.Schedule,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.MethodNotAllowed(methodNotAllowed)

	h := &handlers{svc: s.svc, logger: s.logger}
	r.Get("/health", h.health)
	r.Get("/api/lineage", h.lineage)
	r.Get("/api/lineage/layout", h.layout)
	r.Get("/api/lineage/updates", h.updates)
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
// The graph is built once before listening so the first request is served from cache
// when watching or scheduling.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	live := s.watchDir != "" || s.schedule != ""
	if _, err := s.svc.Build(ctx); err != nil {
		// a broken source at startup still serves 500s until it recovers
		s.logger.Error("initial build failed", slog.String("error", err.Error()))
	}
	s.svc.SetLive(live)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watchDir != "" {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}
	if s.schedule != "" {
		sched, err := newScheduler(s.svc, s.schedule, s.logger)
		if err != nil {
			_ = ln.Close()
			return err
		}
		eg.Go(func() error {
			sched.Start()
			<-egctx.Done()
			sched.Stop()
			return nil
		})
	}

	s.logger.Info("serving lineage",
		slog.String("addr", fmt.Sprintf("http://localhost%s", displayAddr(ln.Addr()))),
		slog.String("source", s.svc.SourceName()),
		slog.Bool("live", live),
	)

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func displayAddr(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprintf(":%d", tcp.Port)
	}
	return addr.String()
}

// requestLogger logs each request through slog at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("took", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
