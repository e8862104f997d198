package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/api/response"
)

// DBPinger checks database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	dbPinger    DBPinger
	storeDriver string
	version     string
}

// NewHealthHandler creates a new HealthHandler. dbPinger is nil when the
// in-memory store is used.
func NewHealthHandler(dbPinger DBPinger, storeDriver, version string) *HealthHandler {
	return &HealthHandler{
		dbPinger:    dbPinger,
		storeDriver: storeDriver,
		version:     version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	Store    string          `json:"store"`
	Database *databaseStatus `json:"database,omitempty"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:  "healthy",
		Version: h.version,
		Store:   h.storeDriver,
	}

	if h.dbPinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		connected := true
		if err := h.dbPinger.Ping(ctx); err != nil {
			slog.Warn("health check: database ping failed", "error", err)
			connected = false
			data.Status = "degraded"
		}
		data.Database = &databaseStatus{Connected: connected}
	}

	response.Success(w, http.StatusOK, data, requestID)
}
