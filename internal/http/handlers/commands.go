package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/services"
	"github.com/coco-family/coco-backend/internal/types"
)

type CommandHandler struct {
	log      *logger.Logger
	commands services.CommandService
}

func NewCommandHandler(log *logger.Logger, commands services.CommandService) *CommandHandler {
	return &CommandHandler{
		log:      log.With("handler", "CommandHandler"),
		commands: commands,
	}
}

type createCommandRequest struct {
	DeviceID    string          `json:"device_id"`
	CommandType string          `json:"command_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// POST /admin/commands
func (h *CommandHandler) Create(c *gin.Context) {
	var req createCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if req.DeviceID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_device_id", nil)
		return
	}
	if !types.ValidCommandType(req.CommandType) {
		response.RespondError(c, http.StatusBadRequest, "invalid_command_type", nil)
		return
	}

	command, err := h.commands.Enqueue(c.Request.Context(), req.DeviceID, req.CommandType, datatypes.JSON(req.Payload))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "command_enqueue_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"command": command})
}

// GET /internal/commands/pending
func (h *CommandHandler) PollPending(c *gin.Context) {
	deviceID := c.GetHeader("X-Device-ID")
	if deviceID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_device_id", nil)
		return
	}

	command, err := h.commands.Poll(c.Request.Context(), deviceID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "command_poll_failed", err)
		return
	}
	if command == nil {
		response.RespondOK(c, gin.H{"command": nil})
		return
	}
	response.RespondOK(c, gin.H{"command": command})
}

type reportCommandStatusRequest struct {
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// POST /internal/commands/:commandID/status
func (h *CommandHandler) ReportStatus(c *gin.Context) {
	commandID, err := uuid.Parse(c.Param("commandID"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_command_id", err)
		return
	}

	var req reportCommandStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if req.Status != types.CommandStatusCompleted && req.Status != types.CommandStatusFailed {
		response.RespondError(c, http.StatusBadRequest, "invalid_status", nil)
		return
	}

	command, err := h.commands.ReportStatus(c.Request.Context(), commandID, req.Status, req.ErrorMessage)
	if err != nil {
		if errors.Is(err, repos.ErrCommandNotFound) {
			response.RespondError(c, http.StatusNotFound, "command_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "command_status_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"command": command})
}

type ingestLogsRequest struct {
	DeviceID   string `json:"device_id,omitempty"`
	LogContent string `json:"log_content"`
}

// POST /internal/ingest/logs
func (h *CommandHandler) IngestLogs(c *gin.Context) {
	var req ingestLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = c.GetHeader("X-Device-ID")
	}
	if deviceID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_device_id", nil)
		return
	}
	if req.LogContent == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_log_content", nil)
		return
	}

	snapshot, err := h.commands.SaveLogSnapshot(c.Request.Context(), deviceID, req.LogContent)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "log_ingest_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "ok", "snapshot_id": snapshot.ID})
}
