package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/types"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "db_unreachable", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "ok"})
}

// GET|HEAD /readyz
func (h *HealthHandler) Readyz(c *gin.Context) {
	var one int
	if err := h.db.WithContext(c.Request.Context()).Raw("SELECT 1").Scan(&one).Error; err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "db_unreachable", err)
		return
	}
	response.RespondOK(c, gin.H{
		"status":     "ready",
		"windowDays": types.RollupWindowDays,
	})
}
