// Package web is the JSON HTTP API: bulk imports and their job history,
// import templates, CSV exports, attendance and leave reports, and leave
// balance lookups.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/hrpipe/internal/config"
	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/export"
	"github.com/JonMunkholm/hrpipe/internal/report"
	mw "github.com/JonMunkholm/hrpipe/internal/web/middleware"
)

// Deps are the application services the handlers call.
type Deps struct {
	Imports  *core.Service
	Reports  *report.Engine
	Exporter *export.Exporter

	// Now resolves the default accounting year; defaults to time.Now.
	Now func() time.Time
}

// Server is the HTTP server.
type Server struct {
	imports  *core.Service
	reports  *report.Engine
	exporter *export.Exporter
	cfg      *config.Config
	now      func() time.Time

	router *chi.Mux
	server *http.Server

	// stop ends the rate limiter sweepers.
	stop context.CancelFunc
}

// NewServer builds the router. Call Shutdown to release its background
// goroutines even if Start is never called.
func NewServer(cfg *config.Config, deps Deps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		imports:  deps.Imports,
		reports:  deps.Reports,
		exporter: deps.Exporter,
		cfg:      cfg,
		now:      now,
		router:   chi.NewRouter(),
		stop:     stop,
	}
	s.setupMiddleware(ctx)
	s.setupRoutes(ctx)
	return s
}

func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, 0).Handler)
	}
}

func (s *Server) setupRoutes(ctx context.Context) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.Auth(mw.AuthConfig{
			Required: s.cfg.Auth.Required,
			Secret:   s.cfg.Auth.JWTSecret,
			Issuer:   s.cfg.Auth.Issuer,
		}))

		// Imports are bounded by the import limiter and IMPORT_TIMEOUT
		// rather than the request timeout.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(mw.RoleHR))
			if s.cfg.Rate.Enabled {
				r.Use(mw.NewRateLimiter(ctx, s.cfg.Rate.ImportLimit, 1).Handler)
			}
			r.Post("/imports/{kind}", s.handleImport)
		})

		r.Group(func(r chi.Router) {
			if t := s.cfg.Server.RequestTimeout; t > 0 {
				r.Use(middleware.Timeout(t))
			}

			r.Get("/leave/balances/me", s.handleMyBalances)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(mw.RoleHR))

				r.Get("/imports/templates/{kind}", s.handleTemplate)
				r.Get("/imports/jobs", s.handleListJobs)
				r.Get("/imports/jobs/{id}", s.handleGetJob)

				r.Get("/exports/{kind}", s.handleExport)

				r.Get("/reports/attendance", s.handleAttendanceReport)
				r.Get("/reports/leave", s.handleLeaveReport)

				r.Get("/leave/balances/{staffID}", s.handleStaffBalances)
			})
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// securityHeaders hardens API responses; nothing here renders HTML.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
