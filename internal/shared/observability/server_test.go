package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandlerHealthy(t *testing.T) {
	srv := NewServer("", func(context.Context) HealthStatus {
		return HealthStatus{Status: StatusOK, Files: 3, Edges: 5}
	})

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != StatusOK {
		t.Errorf("body status = %q, want %q", status.Status, StatusOK)
	}
	if status.Files != 3 || status.Edges != 5 {
		t.Errorf("counts = %d/%d, want 3/5", status.Files, status.Edges)
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	srv := NewServer("", func(context.Context) HealthStatus {
		return HealthStatus{Status: "degraded"}
	})

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthHandlerDefaultsWithoutCallback(t *testing.T) {
	srv := NewServer("", nil)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
