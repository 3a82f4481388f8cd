package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/codecredit-api/internal/version"
)

// ========================================
// HealthCheck Tests
// ========================================

func TestHealthCheck(t *testing.T) {
	output, err := HealthCheck(t.Context(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "healthy" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "healthy")
	}
	if output.Body.Version != version.Get().Short() {
		t.Errorf("Version = %q, want %q", output.Body.Version, version.Get().Short())
	}
}

// ========================================
// Livez Tests
// ========================================

func TestLivez(t *testing.T) {
	output, err := Livez(t.Context(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
	}
}

// ========================================
// Readyz Tests
// ========================================

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) PingContext(context.Context) error {
	return m.err
}

func TestReadyzHandler_Readyz(t *testing.T) {
	tests := []struct {
		name    string
		db      DBPinger
		wantErr bool
	}{
		{"healthy", &mockDBPinger{}, false},
		{"ping fails", &mockDBPinger{err: errors.New("connection refused")}, true},
		{"no database", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := NewReadyzHandler(tt.db).Readyz(t.Context(), nil)
			if tt.wantErr {
				var se huma.StatusError
				if !errors.As(err, &se) || se.GetStatus() != 503 {
					t.Fatalf("Readyz() error = %v, want 503", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.Body.Status != "ok" {
				t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
			}
		})
	}
}

// ========================================
// requireUser Tests
// ========================================

func TestRequireUser(t *testing.T) {
	if _, err := requireUser(t.Context()); err == nil {
		t.Error("requireUser() without claims should fail")
	}
	claims, err := requireUser(userCtx(t.Context(), "u1"))
	if err != nil {
		t.Fatalf("requireUser() error = %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", claims.UserID)
	}
}
