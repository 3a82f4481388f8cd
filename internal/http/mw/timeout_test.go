package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// sleepHandler answers 200 after d unless the request deadline fires first.
func sleepHandler(d time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	})
}

func TestTimeout_Paths(t *testing.T) {
	cfg := TimeoutConfig{
		Default:          10 * time.Millisecond,
		Extended:         200 * time.Millisecond,
		ExtendedPatterns: []string{"/executions"},
		SkipPatterns:     []string{"/webhooks"},
	}

	tests := []struct {
		name  string
		path  string
		sleep time.Duration
		want  int
	}{
		{"fast default path", "/api/v1/status", 0, http.StatusOK},
		{"slow default path", "/api/v1/status", 100 * time.Millisecond, http.StatusGatewayTimeout},
		{"extended path", "/api/v1/executions", 50 * time.Millisecond, http.StatusOK},
		{"skipped path", "/api/v1/webhooks/stripe", 50 * time.Millisecond, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Timeout(cfg)(sleepHandler(tt.sleep)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTimeout_ZeroDefaultDisables(t *testing.T) {
	cfg := TimeoutConfig{Extended: 10 * time.Millisecond, ExtendedPatterns: []string{"/executions"}}

	rec := httptest.NewRecorder()
	Timeout(cfg)(sleepHandler(30*time.Millisecond)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestTimeout_RepanicsOnServingGoroutine(t *testing.T) {
	cfg := TimeoutConfig{Default: time.Second}
	handler := Timeout(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if recover() == nil {
			t.Error("expected panic to propagate")
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
}
