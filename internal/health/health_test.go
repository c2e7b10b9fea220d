package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "all up",
			checks: map[string]CheckFunc{
				"engine": func(context.Context) error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "one down",
			checks: map[string]CheckFunc{
				"engine": func(context.Context) error { return nil },
				"parser": func(context.Context) error { return errors.New("canary failed") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Config{Checks: tt.checks, Version: "test"})

			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Version != "test" {
				t.Errorf("response = %+v", resp)
			}
			if len(resp.Services) != len(tt.checks) {
				t.Errorf("services = %v", resp.Services)
			}
			if s, ok := resp.Services["parser"]; ok && (s.Status != "down" || s.Error != "canary failed") {
				t.Errorf("parser status = %+v", s)
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	h := NewHandler(Config{})

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready status code = %d", rec.Code)
	}

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("draining status code = %d", rec.Code)
	}

	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Error("Ready should be false while draining")
	}
}

func TestReadiness_FailingCheck(t *testing.T) {
	h := NewHandler(Config{Checks: map[string]CheckFunc{
		"engine": func(context.Context) error { return errors.New("broken") },
	}})

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
}

func TestLiveness(t *testing.T) {
	h := NewHandler(Config{Checks: map[string]CheckFunc{
		"engine": func(context.Context) error { return errors.New("broken") },
	}})

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d", rec.Code)
	}

	var resp LivenessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Alive {
		t.Error("Alive should be true")
	}
}
