package handler

import (
	"context"
	"net/http"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/aiagenz/billing/internal/service"
)

// Sweeper runs one expiry pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// StatsReader reports aggregate subscription counts.
type StatsReader interface {
	Stats(ctx context.Context) (*domain.SubscriptionStats, error)
}

type AdminHandler struct {
	sweeper Sweeper
	stats   StatsReader
}

func NewAdminHandler(sweeper Sweeper, stats StatsReader) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, stats: stats}
}

// GetStats handles GET /api/admin/subscriptions/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		Error(w, r, domain.ErrInternal("failed to count subscriptions", err))
		return
	}
	JSON(w, http.StatusOK, stats)
}

// Expire handles POST /api/admin/subscriptions/expire.
func (h *AdminHandler) Expire(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		Error(w, r, domain.ErrInternal("expiry sweep failed", err))
		return
	}
	JSON(w, http.StatusOK, res)
}
