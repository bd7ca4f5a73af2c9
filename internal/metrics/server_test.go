package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestServerRoutes(t *testing.T) {
	s := NewServer(":0", zerolog.Nop())
	CyclesTotal.WithLabelValues(OutcomeOK).Inc()

	tests := []struct {
		name       string
		path       string
		ready      bool
		wantStatus int
		wantBody   string
	}{
		{"health not ready", "/healthz", false, http.StatusServiceUnavailable, "not ready"},
		{"health ready", "/healthz", true, http.StatusOK, "ok"},
		{"metrics", "/metrics", true, http.StatusOK, "penaltywatcher_cycles_total"},
		{"unknown", "/nope", true, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetReady(tt.ready)
			rec := httptest.NewRecorder()
			s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body missing %q", tt.wantBody)
			}
		})
	}
}
