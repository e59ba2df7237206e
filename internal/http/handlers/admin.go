package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/services"
)

type AdminHandler struct {
	admin    services.AdminService
	commands services.CommandService
}

func NewAdminHandler(admin services.AdminService, commands services.CommandService) *AdminHandler {
	return &AdminHandler{admin: admin, commands: commands}
}

// GET /admin/logs/:deviceID
func (h *AdminHandler) GetLatestLog(c *gin.Context) {
	deviceID := c.Param("deviceID")
	snapshot, err := h.commands.LatestLog(c.Request.Context(), deviceID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "log_fetch_failed", err)
		return
	}
	if snapshot == nil {
		response.RespondError(c, http.StatusNotFound, "log_not_found", nil)
		return
	}
	response.RespondOK(c, gin.H{"log": snapshot})
}

// GET /admin/devices/:deviceID/users
func (h *AdminHandler) ListDeviceUsers(c *gin.Context) {
	deviceID := c.Param("deviceID")
	users, err := h.admin.DeviceUsers(c.Request.Context(), deviceID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "device_users_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deviceId": deviceID, "users": users})
}

// GET /admin/devices/uptime
func (h *AdminHandler) ListDeviceUptime(c *gin.Context) {
	reports, err := h.admin.UptimeReports(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "device_uptime_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"devices": reports})
}
