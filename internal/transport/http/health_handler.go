package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"promogate/internal/services"
)

// HealthHandler serves liveness and identity probes.
type HealthHandler struct {
	service   services.PromoService
	startedAt time.Time
	version   string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(service services.PromoService, version string) *HealthHandler {
	return &HealthHandler{
		service:   service,
		startedAt: time.Now(),
		version:   version,
	}
}

// HealthResponse is the health probe payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	InstallID string    `json:"install_id"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		InstallID: h.service.InstallID(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Timestamp: time.Now(),
	})
}
