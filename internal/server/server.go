// Package server serves the site over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/nirman-site/internal/content"
	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/metrics"
	"github.com/jonathan/nirman-site/internal/server/middleware"
	"github.com/jonathan/nirman-site/internal/server/ratelimit"
	"github.com/jonathan/nirman-site/internal/site"
)

// RequestIDHeader carries the request id. An incoming value is reused.
const RequestIDHeader = "X-Request-ID"

// maxRevalidateBody caps the revalidation request body.
const maxRevalidateBody = 64 << 10

// Pages renders site pages.
type Pages interface {
	Render(ctx context.Context, path string) (*site.Page, error)
	NotFound(ctx context.Context) (*site.Page, error)
}

// Invalidator drops cached content.
type Invalidator interface {
	Invalidate(ctx context.Context, docType string) error
}

// Config holds server configuration
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	pages           Pages
	static          fs.FS
	cache           Invalidator
	jwtService      *JWTService
	rateLimiter     *ratelimit.Limiter
	metrics         *metrics.Metrics
	gatherer        prometheus.Gatherer
	log             logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records request metrics on m and serves g at /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithRateLimiter limits requests per client. The server stops the
// limiter when it shuts down.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.rateLimiter = l }
}

// WithRevalidation enables POST /api/revalidate, authenticated by jwt.
func WithRevalidation(inv Invalidator, jwt *JWTService) Option {
	return func(s *Server) {
		s.cache = inv
		s.jwtService = jwt
	}
}

// WithStatic serves every file in files at its own path.
func WithStatic(files fs.FS) Option {
	return func(s *Server) { s.static = files }
}

// New creates a new server instance
func New(cfg Config, pages Pages, opts ...Option) (*Server, error) {
	s := &Server{
		pages:           pages,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 30 * time.Second
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.cache != nil && s.jwtService != nil {
		auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
		mux.Handle("POST /api/revalidate", auth(http.HandlerFunc(s.handleRevalidate)))
	}
	if s.static != nil {
		if err := s.registerStatic(mux); err != nil {
			return nil, err
		}
	}
	mux.HandleFunc("GET /", s.handlePage)

	handler := http.Handler(mux)
	if s.rateLimiter != nil {
		handler = s.withRateLimit(handler)
	}
	handler = s.withLogging(handler)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", logger.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-errCh
	s.log.Info("server stopped")
	return nil
}

func (s *Server) registerStatic(mux *http.ServeMux) error {
	files := http.FileServerFS(s.static)
	return fs.WalkDir(s.static, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		mux.Handle("GET /"+name, files)
		return nil
	})
}

// handlePage renders the page for the request path. Content store
// failures render a plain error; missing content is the not-found page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, err := s.pages.Render(r.Context(), r.URL.Path)
	if err != nil {
		status := HTTPStatus(err)
		s.log.Error("failed to render page",
			logger.String("path", r.URL.Path),
			logger.String("request_id", w.Header().Get(RequestIDHeader)),
			logger.Int("status", status),
			logger.Error(err),
		)
		if status != http.StatusNotFound {
			http.Error(w, http.StatusText(status), status)
			return
		}
		if page, err = s.pages.NotFound(r.Context()); err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(page.HTML)))
	w.WriteHeader(page.Status)
	if _, err := w.Write(page.HTML); err != nil {
		s.log.Debug("failed to write page", logger.String("path", r.URL.Path), logger.Error(err))
	}
}

type revalidateRequest struct {
	Type string `json:"type"`
	// DocType is the document type in a CMS webhook payload.
	DocType string `json:"_type"`
}

type revalidateResponse struct {
	Revalidated bool   `json:"revalidated"`
	Type        string `json:"type,omitempty"`
	Now         int64  `json:"now"`
}

// handleRevalidate drops cached content for one document type, or all
// content when the body names none.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRevalidate(http.MaxBytesReader(w, r.Body, maxRevalidateBody))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	docType := req.Type
	if docType == "" {
		docType = req.DocType
	}
	switch docType {
	case "", content.TypeService, content.TypeProject:
	default:
		s.errorResponse(w, http.StatusBadRequest, (&ErrValidation{Field: "type", Message: fmt.Sprintf("unknown document type %q", docType)}).Error())
		return
	}

	if err := s.cache.Invalidate(r.Context(), docType); err != nil {
		s.log.Error("revalidation failed", logger.String("type", docType), logger.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "revalidation failed")
		return
	}

	subject, _ := middleware.GetSubject(r)
	s.log.Info("content revalidated", logger.String("type", docType), logger.String("subject", subject))
	s.jsonResponse(w, http.StatusOK, revalidateResponse{Revalidated: true, Type: docType, Now: time.Now().UnixMilli()})
}

func decodeRevalidate(body io.Reader) (revalidateRequest, error) {
	var req revalidateRequest
	data, err := io.ReadAll(body)
	if err != nil {
		return req, &ErrValidation{Field: "body", Message: "request body too large"}
	}
	if len(data) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, &ErrValidation{Field: "body", Message: "invalid JSON"}
	}
	return req, nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode JSON response", logger.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// statusRecorder remembers the status code written.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging assigns a request id, then logs and counts every request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, strconv.Itoa(rec.status), elapsed)
		s.log.Info("request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", elapsed),
			logger.String("client", extractClientID(r)),
			logger.String("request_id", requestID),
		)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID uses the IP address from RemoteAddr. Forwarded headers
// are ignored since they are set by the client.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		// Round up so clients never retry early.
		seconds := int((info.RetryAfter + time.Second - 1) / time.Second)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.log.Warn("rate limit exceeded",
		logger.String("client", extractClientID(r)),
		logger.String("path", r.URL.Path),
		logger.Int("limit", info.Limit),
	)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
