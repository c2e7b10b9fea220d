package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/welldanyogia/mailclean/internal/config"
	"github.com/welldanyogia/mailclean/internal/health"
	appmw "github.com/welldanyogia/mailclean/internal/middleware"
	"github.com/welldanyogia/mailclean/internal/preview"
)

func newTestServer(t *testing.T, limit int) (http.Handler, *health.Handler) {
	t.Helper()

	cfg := config.Load()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := preview.NewService(preview.Config{}, nil, log)
	h := health.NewHandler(health.Config{
		Checks:  map[string]health.CheckFunc{"engine": svc.Check},
		Version: "test",
	})

	limiter := appmw.NewRateLimiter(limit, time.Minute)
	t.Cleanup(limiter.Close)

	return newRouter(cfg, log, svc, h, limiter), h
}

func TestRouter_Endpoints(t *testing.T) {
	router, _ := newTestServer(t, 100)

	tests := []struct {
		method   string
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, "/health", "", http.StatusOK, `"engine"`},
		{http.MethodGet, "/health/live", "", http.StatusOK, `"alive":true`},
		{http.MethodGet, "/health/ready", "", http.StatusOK, `"ready":true`},
		{http.MethodPost, "/api/v1/clean", `{"body":"Hi\n\n-- \nBob"}`, http.StatusOK, `"cleaned":"Hi"`},
		{http.MethodPost, "/api/v1/thread", `{"body":"Hi"}`, http.StatusOK, `"segments"`},
		{http.MethodGet, "/metrics", "", http.StatusOK, "mailclean_http_requests_total"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get(appmw.CorrelationIDHeader) == "" {
				t.Error("missing correlation ID header")
			}
		})
	}
}

func TestRouter_RateLimitsAPIOnly(t *testing.T) {
	router, _ := newTestServer(t, 1)

	send := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.RemoteAddr = "192.0.2.10:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(http.MethodPost, "/api/v1/clean", `{"body":"a"}`); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := send(http.MethodPost, "/api/v1/clean", `{"body":"a"}`); code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", code)
	}
	if code := send(http.MethodGet, "/health/live", ""); code != http.StatusOK {
		t.Errorf("health status = %d, health must not be rate limited", code)
	}
}

func TestRouter_DrainingIsNotReady(t *testing.T) {
	router, h := newTestServer(t, 100)
	h.SetReady(false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
