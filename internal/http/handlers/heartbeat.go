package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/services"
	"github.com/coco-family/coco-backend/internal/types"
)

type HeartbeatHandler struct {
	log          *logger.Logger
	heartbeats   services.HeartbeatService
	compactor    services.CompactorService
	staleMinutes int
}

func NewHeartbeatHandler(log *logger.Logger, heartbeats services.HeartbeatService, compactor services.CompactorService, staleMinutes int) *HeartbeatHandler {
	return &HeartbeatHandler{
		log:          log.With("handler", "HeartbeatHandler"),
		heartbeats:   heartbeats,
		compactor:    compactor,
		staleMinutes: staleMinutes,
	}
}

func validConnectivity(mode string) bool {
	switch mode {
	case types.ConnectivityWifi, types.ConnectivityLTE, types.ConnectivityOffline:
		return true
	}
	return false
}

func validAgentStatus(status string) bool {
	switch status {
	case types.AgentStatusOK, types.AgentStatusDegraded, types.AgentStatusCrashed:
		return true
	}
	return false
}

// POST /internal/heartbeat
func (h *HeartbeatHandler) Record(c *gin.Context) {
	var input services.HeartbeatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if input.DeviceID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_device_id", nil)
		return
	}
	if input.AgentVersion == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_agent_version", nil)
		return
	}
	if !validConnectivity(input.Connectivity) {
		response.RespondError(c, http.StatusBadRequest, "invalid_connectivity", nil)
		return
	}
	if !validAgentStatus(input.AgentStatus) {
		response.RespondError(c, http.StatusBadRequest, "invalid_agent_status", nil)
		return
	}

	if _, err := h.heartbeats.Record(c.Request.Context(), input); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "heartbeat_failed", err)
		return
	}

	// Housekeeping piggybacks on ingest traffic; its failure never fails
	// the heartbeat that triggered it.
	if h.compactor != nil {
		if _, _, _, err := h.compactor.MaybeRun(c.Request.Context()); err != nil {
			h.log.Warn("heartbeat compaction failed", "device_id", input.DeviceID, "error", err)
		}
	}

	response.RespondOK(c, gin.H{"status": "ok"})
}

// GET /api/heartbeats
func (h *HeartbeatHandler) ListStatuses(c *gin.Context) {
	statuses, asOf, err := h.heartbeats.ListStatuses(c.Request.Context(), h.staleMinutes)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "heartbeat_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"devices":               statuses,
		"asOf":                  asOf,
		"staleThresholdMinutes": h.staleMinutes,
	})
}
