package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthTimeout = 3 * time.Second

// Checker reports whether a dependency is reachable. *database.DB implements it.
type Checker interface {
	Health(ctx context.Context) error
}

// GatewayStatus reports whether the bot holds a gateway session
type GatewayStatus interface {
	IsConnected() bool
}

// Handlers holds the operational HTTP handlers
type Handlers struct {
	db      Checker
	gateway GatewayStatus
	logger  *zap.Logger
}

// NewHandlers creates the handlers. A nil gateway is reported as disconnected.
func NewHandlers(db Checker, gateway GatewayStatus, logger *zap.Logger) *Handlers {
	return &Handlers{
		db:      db,
		gateway: gateway,
		logger:  logger,
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Gateway  string `json:"gateway"`
}

// HealthHandler reports database and gateway status; any failing
// dependency turns the response into a 503
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Gateway: "connected"}
	status := http.StatusOK

	if err := h.db.Health(ctx); err != nil {
		h.logger.Warn("health check: database unavailable", zap.Error(err))
		resp.Database = "unavailable"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	if h.gateway == nil || !h.gateway.IsConnected() {
		resp.Gateway = "disconnected"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write health check response", zap.Error(err))
	}
}
