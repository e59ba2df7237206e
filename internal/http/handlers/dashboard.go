package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/services"
)

type DashboardHandler struct {
	rollups services.RollupService
}

func NewDashboardHandler(rollups services.RollupService) *DashboardHandler {
	return &DashboardHandler{rollups: rollups}
}

// GET /api/dashboard/:userID
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	userID := c.Param("userID")
	if userID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_user_id", nil)
		return
	}

	view, err := h.rollups.Dashboard(c.Request.Context(), userID, time.Now().UTC())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "dashboard_failed", err)
		return
	}

	rollup := view.Rollup
	response.RespondOK(c, gin.H{
		"lastSession": gin.H{
			"timestamp": rollup.LastSessionAt,
		},
		"streak": gin.H{
			"days":          view.StreakDays,
			"dailyActivity": rollup.DailyActivity,
		},
		"avgDuration": gin.H{
			"minutes":        rollup.AvgDurationMinutes,
			"dailyDurations": rollup.DailyDurations,
		},
		"toneTrend": gin.H{
			"current":        rollup.CurrentTone,
			"dailySentiment": sentimentFloats(rollup.DailySentiment),
		},
		"lastUpdated": rollup.UpdatedAt,
	})
}

// sentimentFloats renders the stored decimals as JSON numbers, keeping
// absent days as nulls.
func sentimentFloats(values []*decimal.Decimal) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		f := v.InexactFloat64()
		out[i] = &f
	}
	return out
}
