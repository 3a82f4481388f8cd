package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInit_ServesMetrics(t *testing.T) {
	p, err := Init(t.Context(), Config{
		ServiceName: "codecredit-test",
		Version:     "0.0.0",
		Environment: "development",
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(t.Context()) })

	counter, err := p.Meter().Int64Counter("executions.total")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(t.Context(), 3)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "executions_total") {
		t.Errorf("metrics output missing executions_total:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing Go runtime collector")
	}
}

func TestInit_Production(t *testing.T) {
	p, err := Init(t.Context(), Config{ServiceName: "codecredit-test", Environment: "production"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := p.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
