// Package dashboard serves the status API and websocket stream: the current
// audit summary over HTTP, on-demand health checks, and a periodic broadcast
// of fresh status to connected clients.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/InnerAnimal/meaux-infra/internal/domain"
	"github.com/InnerAnimal/meaux-infra/internal/orchestrator"
	"github.com/InnerAnimal/meaux-infra/internal/ws"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
)

// Runner executes audits on behalf of the dashboard.
type Runner interface {
	Run(ctx context.Context, opts orchestrator.Options) (*domain.Summary, error)
	RunHealthChecks(ctx context.Context) []domain.HealthResult
}

const (
	rateWindowDefault   = time.Minute
	rateLimitStatusRead = 120
	rateLimitAuditRun   = 6
	rateLimitWebsocket  = 30
)

// Server wires HTTP endpoints to the orchestrator and status hub.
type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	cfg      config.Config
	runner   Runner
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	wsClients          prometheus.Gauge
	broadcastTotal     prometheus.Counter
}

// NewServer assembles routes with dependencies.
func NewServer(logger *slog.Logger, cfg config.Config, runner Runner, hub *ws.Hub, limiter RateLimiter) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		cfg:    cfg,
		runner: runner,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter: limiter,
	}
	if s.limiter == nil {
		s.limiter = NewMemoryRateLimiter()
	}
	if s.hub == nil {
		s.hub = ws.NewHub()
	}
	s.initMetrics()
	s.register()
	return s
}

// ServeHTTP delegates to the underlying mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) register() {
	s.mux.HandleFunc("/healthz", s.audit(s.handleHealthz))
	s.mux.HandleFunc("/api/status", s.audit(s.withRateLimit("/api/status", rateLimitStatusRead, rateWindowDefault, s.handleStatus)))
	s.mux.HandleFunc("/api/config", s.audit(s.withRateLimit("/api/config", rateLimitStatusRead, rateWindowDefault, s.handleConfig)))
	s.mux.HandleFunc("/api/health-check", s.audit(s.withRateLimit("/api/health-check", rateLimitAuditRun, rateWindowDefault, s.handleHealthCheck)))
	s.mux.HandleFunc("/ws", s.audit(s.withRateLimit("/ws", rateLimitWebsocket, rateWindowDefault, s.handleWS)))
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Broadcast runs the periodic plan-only audit and pushes every fresh summary
// to connected clients. It returns when ctx is done.
func (s *Server) Broadcast(ctx context.Context) {
	interval := s.cfg.BroadcastInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAndBroadcast(ctx)
		}
	}
}

func (s *Server) refreshAndBroadcast(ctx context.Context) {
	summary, err := s.runner.Run(ctx, orchestrator.Options{PlanOnly: true})
	if err != nil {
		s.logger.Error("status refresh failed", "error", err)
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type": "status_update",
		"data": summary,
	})
	if err != nil {
		s.logger.Error("status encode failed", "error", err)
		return
	}
	s.hub.Broadcast(payload)
	if s.metricsInitialized {
		s.broadcastTotal.Inc()
		s.wsClients.Set(float64(s.hub.Count()))
	}
	s.logger.Info("status broadcast", "recommendations", len(summary.Recommendations))
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	// Always a fresh plan-only run: status reads never serve a prior result.
	summary, err := s.runner.Run(req.Context(), orchestrator.Options{PlanOnly: true})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleConfig(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	// Secrets never appear here: credential fields are excluded from the
	// config types' JSON form.
	writeJSON(w, http.StatusOK, map[string]any{
		"environment":  s.cfg.Environment,
		"projects":     s.cfg.Projects,
		"workers":      s.cfg.Workers,
		"healthChecks": s.cfg.HealthChecks,
		"requiredEnv":  s.cfg.RequiredEnv,
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	results := s.runner.RunHealthChecks(req.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"healthChecks": results,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, s.logger)
	s.hub.Register(client)
	if s.metricsInitialized {
		s.wsClients.Set(float64(s.hub.Count()))
	}
	go func() {
		defer func() {
			s.hub.Unregister(client)
			client.Close()
			if s.metricsInitialized {
				s.wsClients.Set(float64(s.hub.Count()))
			}
		}()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleWSMessage(context.Background(), client, payload)
		}
	}()
}

func (s *Server) handleWSMessage(ctx context.Context, client *ws.Client, payload []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	if msg.Type != "get_status" {
		return
	}
	// The read goroutine outlives the upgrade request, so the run is bounded
	// by the orchestrator's own deadline rather than a request context.
	summary, err := s.runner.Run(ctx, orchestrator.Options{PlanOnly: true})
	if err != nil {
		s.logger.Error("status reply failed", "error", err)
		return
	}
	reply, err := json.Marshal(map[string]any{
		"type": "status",
		"data": summary,
	})
	if err != nil {
		return
	}
	_ = client.Send(reply)
}

func (s *Server) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		requestID := strings.TrimSpace(req.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		recorder.Header().Set("X-Request-ID", requestID)
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		s.recordRequestMetrics(req.Method, req.URL.Path, status, duration)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", requestID,
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("http_request", fields...)
		default:
			s.logger.Info("http_request", fields...)
		}
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
