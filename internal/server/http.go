package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tboby/wyoming-onnx-asr/internal/config"
	"github.com/tboby/wyoming-onnx-asr/internal/metrics"
	"github.com/tboby/wyoming-onnx-asr/internal/registry"
)

// HTTPServer provides HTTP endpoints for monitoring the ASR service.
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	registry  *registry.Registry
	asrServer *Server
	metrics   *metrics.Metrics
	startTime time.Time
}

// NewHTTPServer creates the monitoring HTTP server.
func NewHTTPServer(cfg config.HTTPConfig, reg *registry.Registry, asrServer *Server,
	m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		registry:  reg,
		asrServer: asrServer,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/models", h.withMetrics("/models", h.handleModels))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Start begins serving HTTP requests in the background.
func (h *HTTPServer) Start() error {
	h.logger.Info("HTTP server starting", slog.String("address", h.server.Addr))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server failed", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts the HTTP server down.
func (h *HTTPServer) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// withMetrics wraps a handler with request counting and timing.
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		handler(recorder, r)

		h.metrics.HTTPRequests.WithLabelValues(endpoint, fmt.Sprintf("%d", recorder.status)).Inc()
		h.metrics.HTTPRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleHealth reports liveness and basic session counts.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.asrServer.Stats()
	h.writeJSON(w, map[string]interface{}{
		"status":          "healthy",
		"uptime_seconds":  time.Since(h.startTime).Seconds(),
		"active_sessions": stats.ActiveSessions,
	})
}

// handleModels serves the capability descriptor.
func (h *HTTPServer) handleModels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.registry.Describe())
}

// handleStats serves session and utterance counters.
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.asrServer.Stats()
	h.writeJSON(w, map[string]interface{}{
		"active_sessions": stats.ActiveSessions,
		"total_sessions":  stats.TotalSessions,
		"uptime_seconds":  stats.Uptime.Seconds(),
		"backends":        h.registry.Tags(),
	})
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode HTTP response", slog.String("error", err.Error()))
	}
}
