package http

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"gastos/internal/core"
	"gastos/internal/log"
)

// ReportBuilder builds the combined report for a window.
type ReportBuilder interface {
	Build(ctx context.Context, from, to core.Date) (core.Report, error)
}

// Pinger reports whether the expense store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	reports ReportBuilder
	store   Pinger
	loc     *time.Location
	logger  *log.Logger
	limiter *rateLimiter
	proxies []netip.Prefix
	started time.Time

	// now is replaced in tests.
	now func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithRateLimit caps report requests per client IP per minute. Zero or less
// disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.limiter = newRateLimiter(perMinute)
		}
	}
}

// WithTrustedProxies makes the server believe X-Forwarded-For when the
// connection comes from one of proxies. Without it the header is ignored.
func WithTrustedProxies(proxies []netip.Prefix) Option {
	return func(s *Server) {
		s.proxies = proxies
	}
}

// NewServer wires the read-only JSON API. loc decides what "today" means for
// the default window.
func NewServer(addr string, reports ReportBuilder, store Pinger, loc *time.Location, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &Server{
		reports: reports,
		store:   store,
		loc:     loc,
		logger:  logger.WithComponent(log.ComponentHTTP),
		started: time.Now(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /api/gastos/combinados", s.limit(s.handleCombined))
	mux.Handle("GET /api/gastos/proyectados", s.limit(s.handleProjected))
	mux.Handle("GET /api/gastos/totales", s.limit(s.handleTotals))
	mux.Handle("GET /api/gastos/exportar.xlsx", s.limit(s.handleExport))

	var h http.Handler = mux
	h = NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(h)
	h = log.AccessLogMiddleware(h)
	h = log.RequestIDMiddleware(h)
	h = log.Middleware(s.logger)(h)
	h = log.ClientIPMiddleware(s.proxies)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) limit(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.middleware(h)
}

// Shutdown stops the rate limiter before draining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.Server.Shutdown(ctx)
}
