package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/goccy/go-json"
)

// pingTimeout bounds the storage check behind /ready
const pingTimeout = 2 * time.Second

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	manager *manager.Manager
	mux     *http.ServeMux

	mu     sync.Mutex
	server *http.Server
}

// NewHealthServer creates a new health check HTTP server. mgr may be nil,
// in which case /ready reports the storage as unavailable.
func NewHealthServer(mgr *manager.Manager) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		manager: mgr,
		mux:     mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.HandleFunc("/live", hs.liveHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start serves the endpoints on addr until Shutdown is called
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	hs.mu.Lock()
	hs.server = server
	hs.mu.Unlock()

	metrics.RegisterComponent(metrics.ComponentAPI, true, "listening on "+addr)
	logger := log.WithComponent("api")
	logger.Info().Str("addr", addr).Msg("Health server listening")

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	metrics.ReportError(metrics.ComponentAPI, err)
	return err
}

// Shutdown gracefully stops a started server
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	hs.mu.Lock()
	server := hs.server
	hs.mu.Unlock()
	if server == nil {
		return nil
	}
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	return server.Shutdown(ctx)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler reports process health. It stays 200 unless a registered
// component is unhealthy and the overall status is unhealthy.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	health := metrics.GetHealth()
	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:     health.Status,
		Timestamp:  time.Now(),
		Version:    health.Version,
		Uptime:     health.Uptime,
		Components: health.Components,
	})
}

// readyHandler reports whether the service can take requests: the store must
// answer a read transaction and every critical component must be healthy.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.manager == nil {
		ready = false
		checks[metrics.ComponentStorage] = "not initialized"
		message = "manager not initialized"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := hs.manager.Ping(ctx)
		cancel()
		metrics.ReportError(metrics.ComponentStorage, err)
		if err != nil {
			ready = false
			checks[metrics.ComponentStorage] = fmt.Sprintf("unavailable: %v", err)
			message = "storage unavailable"
		} else {
			checks[metrics.ComponentStorage] = "ok"
		}
	}

	readiness := metrics.GetReadiness()
	for name, state := range readiness.Components {
		if _, checked := checks[name]; checked {
			continue
		}
		checks[name] = state
	}
	if ready && readiness.Status != "ready" {
		ready = false
		message = readiness.Message
	}

	resp := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    checks,
	}
	status := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		resp.Message = message
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// liveHandler answers 200 while the process is running
func (hs *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": metrics.GetHealth().Uptime,
	})
}

// GetHandler returns the HTTP handler for testing
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
