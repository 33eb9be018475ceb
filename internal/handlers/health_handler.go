package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/OsGift/safawinet-api/internal/utils"
)

// Pinger checks a backing store
type Pinger func(ctx context.Context) error

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	ping Pinger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(ping Pinger) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// Health returns 200 when the database answers, 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.ping != nil {
		if err := h.ping(ctx); err != nil {
			utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unavailable",
				"database": err.Error(),
			})
			return
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
