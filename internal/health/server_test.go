package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_MountsAllEndpoints(t *testing.T) {
	s := NewServer(":0", nil,
		Checker{Name: "inference", Check: func(_ context.Context) error { return nil }},
	)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			s.srv.Handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	s := NewServer(":0", nil)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
