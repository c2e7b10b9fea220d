// Package health provides health check endpoints for the service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ServiceStatus represents the status of a single service
type ServiceStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the structured health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceStatus `json:"services"`
	Version   string                   `json:"version,omitempty"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Alive     bool   `json:"alive"`
	Timestamp string `json:"timestamp"`
}

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Handler handles health check requests
type Handler struct {
	checks  map[string]CheckFunc
	version string
	timeout time.Duration
	ready   bool
	mu      sync.RWMutex
}

// Config holds health handler configuration
type Config struct {
	Checks  map[string]CheckFunc
	Version string
	Timeout time.Duration // Default: 5 seconds
}

// NewHandler creates a new health check handler
func NewHandler(cfg Config) *Handler {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	checks := make(map[string]CheckFunc, len(cfg.Checks))
	for name, check := range cfg.Checks {
		checks[name] = check
	}

	return &Handler{
		checks:  checks,
		version: cfg.Version,
		timeout: timeout,
		ready:   true,
	}
}

// SetReady sets the readiness state of the service. It is cleared during
// graceful shutdown so load balancers stop routing new requests.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current readiness state
func (h *Handler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Health runs every registered check and reports each one.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services := h.runChecks(ctx)
	overallStatus := "healthy"
	for _, status := range services {
		if status.Status != "up" {
			overallStatus = "degraded"
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Version:   h.version,
	}

	code := http.StatusOK
	if overallStatus != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

// Readiness handles the readiness probe endpoint
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ready := h.IsReady()
	if ready {
		for _, status := range h.runChecks(ctx) {
			if status.Status != "up" {
				ready = false
			}
		}
	}

	response := ReadinessResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

// Liveness handles the liveness probe endpoint
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Alive:     true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) runChecks(ctx context.Context) map[string]ServiceStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]ServiceStatus, len(names))
	for _, name := range names {
		start := time.Now()
		err := h.checks[name](ctx)
		latency := time.Since(start)

		if err != nil {
			services[name] = ServiceStatus{
				Status:  "down",
				Latency: latency.String(),
				Error:   err.Error(),
			}
			continue
		}
		services[name] = ServiceStatus{
			Status:  "up",
			Latency: latency.String(),
		}
	}
	return services
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
