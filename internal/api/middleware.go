package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NewRouter wires the ingestion, health and metrics endpoints.
func NewRouter(h *Handler, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", h.HandleChat)
	mux.HandleFunc("/healthz", h.HandleHealth)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return Recover(logger, LogRequests(logger, KeepAlive("/api/chat", mux)))
}

// KeepAlive asks clients to hold the connection open on slow completion
// routes. Uploads plus a provider round trip can take a while.
func KeepAlive(prefix string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, prefix) {
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("Keep-Alive", "timeout=60")
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func LogRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func Recover(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error("Recovered from panic",
					zap.Any("panic", p),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"))
				writeJSON(logger, w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
