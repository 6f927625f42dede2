package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"coffeetea/internal/log"
	"coffeetea/internal/middleware/ratelimit"
	"coffeetea/internal/middleware/security"
	"coffeetea/internal/middleware/trace"
)

// ServerOptions tune the middleware stack. Zero values use defaults.
type ServerOptions struct {
	Logger    *log.Logger
	RateLimit ratelimit.Config
	Headers   *security.HeadersConfig
	// Ready reports backend health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	svc      BeverageService
	ready    func(ctx context.Context) error
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc BeverageService, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}
	if opts.RateLimit.RequestsPerMinute == 0 && len(opts.RateLimit.Methods) == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		svc:      svc,
		ready:    opts.Ready,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /beverages", s.handleBeverages)
	mux.HandleFunc("POST /records", s.handleCreateRecord)
	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /today", s.handleToday)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /stats/navigate", s.handleNavigate)
	mux.HandleFunc("GET /calendar", s.handleCalendar)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, nil)(h)
	h = security.NewHeadersMiddleware(headers).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Run serves until ctx is cancelled, then shuts down within 10 seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	return s.Shutdown(shutdownCtx)
}
