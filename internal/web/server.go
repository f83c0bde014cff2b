package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/eatinformed/internal/service"
)

// Options tunes request limits.
type Options struct {
	MaxImageBytes     int64
	ScanRatePerMinute int
	ScanBurst         int
}

type Server struct {
	scans     *service.ScanService
	accounts  *service.AccountService
	templates embed.FS
	opts      Options
	limiter   *ipLimiter
	mux       *http.ServeMux
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(scans *service.ScanService, accounts *service.AccountService, tmpl embed.FS, opts Options, logger *slog.Logger) *Server {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = defaultMaxImageBytes
	}
	s := &Server{
		scans:     scans,
		accounts:  accounts,
		templates: tmpl,
		opts:      opts,
		limiter:   newIPLimiter(opts.ScanRatePerMinute, opts.ScanBurst),
		mux:       http.NewServeMux(),
		logger:    logger,
		tmplFuncs: template.FuncMap{
			"stars":  stars,
			"rating": func(r float64) string { return fmt.Sprintf("%.1f", r) },
			"join":   strings.Join,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/check", http.StatusSeeOther)
	})
	s.mux.HandleFunc("GET /check", s.handleCheckPage)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogIn)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogOut)
	s.mux.HandleFunc("GET /api/auth/verify", s.requireAuth(s.handleVerify))

	s.mux.HandleFunc("POST /api/scan", s.requireAuth(s.rateLimited(s.handleScan)))
	s.mux.HandleFunc("POST /api/scan/stream", s.requireAuth(s.rateLimited(s.handleScanStream)))
	s.mux.HandleFunc("GET /ws/scan", s.requireAuth(s.rateLimited(s.handleScanSocket)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial parses file and executes the template named by its
// {{define}} block.
func (s *Server) renderPartial(w http.ResponseWriter, file, name string, data any) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, file)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, name, data)
}

// stars renders a 0-5 rating as five filled or empty stars.
func stars(rating float64) string {
	filled := int(math.Round(rating))
	filled = max(0, min(5, filled))
	return strings.Repeat("★", filled) + strings.Repeat("☆", 5-filled)
}
