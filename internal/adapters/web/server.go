// Package web serves the marketing site. Each visitor gets a live widget tab
// from the TabPool; pages render the tab's widget state and a relay script
// reports the browser's widget events back to it.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAddr        = "127.0.0.1:8080"
	DefaultReadTimeout = 15 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// SessionTokens issues and verifies the signed session cookie.
type SessionTokens interface {
	Issue(user domain.AuthUser) (string, error)
	Parse(raw string) (domain.AuthUser, error)
	TTL() time.Duration
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	PollInterval time.Duration
}

type ServerDeps struct {
	Pool   *TabPool
	Site   *application.SiteService
	Tokens SessionTokens
	Logger *logger.Logger
}

type Server struct {
	cfg          ServerConfig
	pool         *TabPool
	site         *application.SiteService
	tokens       SessionTokens
	renderer     *renderer
	logger       *logger.Logger
	pollInterval time.Duration
	router       chi.Router
}

func NewServer(cfg ServerConfig, deps ServerDeps) (*Server, error) {
	if deps.Pool == nil {
		return nil, errors.New("tab pool is required")
	}
	if deps.Site == nil {
		return nil, errors.New("site service is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("session tokens are required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = application.DefaultPollInterval
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg,
		pool:         deps.Pool,
		site:         deps.Site,
		tokens:       deps.Tokens,
		renderer:     pages,
		logger:       deps.Logger.Named("web"),
		pollInterval: cfg.PollInterval,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFiles())))

	r.Get("/", s.page(pageHome))
	r.Get("/home", s.page(pageHome))
	r.Get("/contact", s.page(pageContact))
	r.Post("/contact", s.submitContact)
	r.Get("/login", s.page(pageLogin))
	r.Post("/login", s.signIn)
	r.Get("/signup", s.page(pageSignUp))
	r.Post("/signup", s.signUp)
	r.Post("/logout", s.signOut)
	r.Get("/reset-password", s.page(pageResetPassword))
	r.Post("/reset-password", s.resetPassword)
	r.Post(EventsPath, s.widgetEvent)

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server and the pool's idle sweeper on ln. When ctx ends
// the server drains in-flight requests and the pool is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.pool.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.pool.Close()
	return err
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
