package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// DashboardService computes the dashboard figures
type DashboardService interface {
	GetDashboardMetrics(ctx context.Context, period models.DashboardPeriod, startDate, endDate *time.Time) (*models.DashboardMetricsResponse, error)
}

// DashboardHandler handles dashboard related HTTP requests
type DashboardHandler struct {
	base
	dashboardService DashboardService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(ds DashboardService, deps Deps) *DashboardHandler {
	return &DashboardHandler{
		base:             newBase(deps),
		dashboardService: ds,
	}
}

// GetDashboardMetrics returns user, template and login figures for a period.
// period is daily, weekly, monthly (default) or custom with start_date and end_date.
func (h *DashboardHandler) GetDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(r.URL.Query().Get("period"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid period. Must be 'daily', 'weekly', 'monthly', or 'custom'.")
		return
	}

	var startDate, endDate *time.Time
	if period == models.PeriodCustom {
		var err error
		if startDate, err = queryTime(r, "start_date", false); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if endDate, err = queryTime(r, "end_date", true); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if startDate == nil || endDate == nil {
			utils.RespondWithError(w, http.StatusBadRequest, "start_date and end_date are required for custom period")
			return
		}
		if startDate.After(*endDate) {
			utils.RespondWithError(w, http.StatusBadRequest, "start_date cannot be after end_date")
			return
		}
	}

	figures, err := h.dashboardService.GetDashboardMetrics(r.Context(), period, startDate, endDate)
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve dashboard metrics")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, figures)
}

func parsePeriod(raw string) (models.DashboardPeriod, bool) {
	if raw == "" {
		return models.PeriodMonthly, true
	}
	switch p := models.DashboardPeriod(strings.ToLower(raw)); p {
	case models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly, models.PeriodCustom:
		return p, true
	}
	return "", false
}
