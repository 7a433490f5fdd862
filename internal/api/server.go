// Package api wires the OpenT1D HTTP surface: the REST mirror of the
// settings, measurements, audit, health and metrics endpoints, plus the
// GraphQL and web UI handlers mounted next to them.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"opent1d/internal/audit"
	"opent1d/internal/credentials"
	"opent1d/internal/domain"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// SettingsService reads and saves the LibreLinkUp settings.
// *credentials.Service implements it.
type SettingsService interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, username, password string) (domain.Settings, error)
}

type Server struct {
	mux         *http.ServeMux
	settings    SettingsService
	store       storage.CGMStore
	logger      observability.Logger
	metrics     *observability.Metrics
	auditLogger audit.AuditLogger
}

// NewServer creates a new HTTP server with the given dependencies.
// If logger is nil, a default logger will be used.
// If metrics is nil, metrics collection is disabled.
// If auditLogger is nil, a memory-based audit logger will be used.
func NewServer(mux *http.ServeMux, settings SettingsService, store storage.CGMStore, logger observability.Logger, metrics *observability.Metrics, auditLogger audit.AuditLogger) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	if auditLogger == nil {
		auditLogger = audit.NewMemoryAuditLogger()
	}
	return &Server{
		mux:         mux,
		settings:    settings,
		store:       store,
		logger:      logger.WithComponent("api"),
		metrics:     metrics,
		auditLogger: auditLogger,
	}
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
		} else {
			sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
		}
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeStoreErr maps a service or storage error to the appropriate HTTP status
// code and writes the error response. Unknown errors become 500.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credentials.ErrLoginFailed):
		s.writeErr(ctx, w, http.StatusUnauthorized, err.Error(), "")
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// RegisterRoutes registers the REST, system, GraphQL and web UI routes.
// graphHandler is mounted at /query and webHandler at /; either may be nil.
func (s *Server) RegisterRoutes(graphHandler, webHandler http.Handler) {
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPISpec)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}

	s.mux.Handle("/api/v1/settings/librelinkup", withActor("rest", http.HandlerFunc(s.handleSettings)))
	s.mux.HandleFunc("/api/v1/measurements", s.handleMeasurements)
	s.mux.HandleFunc("/api/v1/audit", s.handleAuditList)

	if graphHandler != nil {
		s.mux.Handle("/query", graphHandler)
	}
	if webHandler != nil {
		s.mux.Handle("/", webHandler)
	}
}

// Handler wraps the mux with the standard middleware chain.
func (s *Server) Handler(rl RateLimitConfig) http.Handler {
	return ApplyMiddlewares(s.mux,
		Middleware(observability.MetricsMiddleware(s.metrics)),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		Middleware(observability.RateLimitMetricsMiddleware(s.metrics, rl.Enabled())),
		RateLimitMiddleware(rl, s.logger),
	)
}

func withActor(actor string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(audit.WithActor(r.Context(), actor)))
	})
}
