package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/loyalty/internal/api/handler"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		pinger        handler.DBPinger
		store         string
		wantStatus    string
		wantDatabase  bool
		wantConnected bool
	}{
		{name: "postgres reachable", pinger: &mockPinger{}, store: "postgres", wantStatus: "healthy", wantDatabase: true, wantConnected: true},
		{name: "postgres down", pinger: &mockPinger{err: errors.New("connection refused")}, store: "postgres", wantStatus: "degraded", wantDatabase: true},
		{name: "memory store", store: "memory", wantStatus: "healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := handler.NewHealthHandler(tt.pinger, tt.store, "0.1.0")
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			data := parseEnvelope(t, w)["data"].(map[string]interface{})
			assert.Equal(t, tt.wantStatus, data["status"])
			assert.Equal(t, "0.1.0", data["version"])
			assert.Equal(t, tt.store, data["store"])
			if !tt.wantDatabase {
				assert.NotContains(t, data, "database")
				return
			}
			db := data["database"].(map[string]interface{})
			assert.Equal(t, tt.wantConnected, db["connected"])
		})
	}
}
