// Package server serves the dashboard over HTTP. Pages are built lazily from
// the bundle prepared at startup; charts are rendered on first request and cached.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/dashboard"
	"go.uber.org/zap"
)

// Options configures the server.
type Options struct {
	Addr   string
	Format string
	DPI    int
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Server HTTP: dashboard pages, chart images and a small JSON API.
type Server struct {
	builder *dashboard.Builder
	opt     Options
	log     *zap.Logger
	mux     *http.ServeMux

	mu     sync.Mutex
	charts map[string][]byte
}

// New returns a Server over builder.
func New(builder *dashboard.Builder, opt Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.Format == "" {
		opt.Format = "png"
	}
	if opt.ShutdownTimeout <= 0 {
		opt.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{builder: builder, opt: opt, log: log, mux: http.NewServeMux(), charts: map[string][]byte{}}
	s.routes()
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler { return s.logRequests(s.mux) }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /pages/{slug}", s.handlePage)
	s.mux.HandleFunc("GET /charts/{slug}/{file}", s.handleChart)
	s.mux.HandleFunc("GET /api/pages", s.handlePages)
	s.mux.HandleFunc("GET /api/pages/{slug}", s.handlePageJSON)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opt.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", s.opt.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), s.opt.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) links() dashboard.Links { return dashboard.ServerLinks{Format: s.opt.Format} }

// GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := dashboard.RenderIndex(&buf, s.builder.Pages(), s.links()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeHTML(w, buf.Bytes())
}

// GET /pages/{slug}?year=
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	p, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := dashboard.RenderHTML(&buf, p, s.builder.Pages(), s.links()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeHTML(w, buf.Bytes())
}

// GET /charts/{slug}/{id}.{format}?year=
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	dot := strings.LastIndexByte(file, '.')
	if dot <= 0 {
		http.NotFound(w, r)
		return
	}
	id, format := file[:dot], strings.ToLower(file[dot+1:])
	if format != "png" && format != "svg" {
		http.Error(w, "unsupported chart format "+strconv.Quote(format), http.StatusBadRequest)
		return
	}
	p, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	key := p.Slug + "/" + strconv.Itoa(p.Year) + "/" + file
	s.mu.Lock()
	data, ok := s.charts[key]
	s.mu.Unlock()
	if !ok {
		f, found := p.Figure(id)
		if !found {
			http.NotFound(w, r)
			return
		}
		var buf bytes.Buffer
		if err := chart.Write(&buf, f.Fig, format, s.opt.DPI); err != nil {
			s.fail(w, r, err)
			return
		}
		data = buf.Bytes()
		s.mu.Lock()
		s.charts[key] = data
		s.mu.Unlock()
	}
	w.Header().Set("Content-Type", chart.ContentType(format))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

// GET /api/pages
func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.builder.Pages())
}

// GET /api/pages/{slug}?year=
func (s *Server) handlePageJSON(w http.ResponseWriter, r *http.Request) {
	p, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) page(r *http.Request) (*dashboard.Page, error) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", dashboard.ErrYear, v)
		}
		year = y
	}
	return s.builder.Page(r.PathValue("slug"), year)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dashboard.ErrYear):
		status = http.StatusBadRequest
	case errors.Is(err, dashboard.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
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
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.RequestURI()),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
