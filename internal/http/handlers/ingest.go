package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/services"
	"github.com/coco-family/coco-backend/internal/types"
)

type IngestHandler struct {
	log     *logger.Logger
	rollups services.RollupService
}

func NewIngestHandler(log *logger.Logger, rollups services.RollupService) *IngestHandler {
	return &IngestHandler{
		log:     log.With("handler", "IngestHandler"),
		rollups: rollups,
	}
}

type sessionSummaryRequest struct {
	SessionID       string   `json:"session_id"`
	UserExternalID  string   `json:"user_external_id"`
	DeviceID        *string  `json:"device_id,omitempty"`
	StartedAt       string   `json:"started_at"`
	DurationSeconds *int     `json:"duration_seconds"`
	SentimentScore  *float64 `json:"sentiment_score"`
	Status          *string  `json:"status,omitempty"`
}

func validSessionStatus(s string) bool {
	switch s {
	case types.SessionStatusSuccess, types.SessionStatusUnattended,
		types.SessionStatusEarlyExit, types.SessionStatusErrorExit:
		return true
	}
	return false
}

// POST /internal/ingest/session_summary
func (h *IngestHandler) IngestSessionSummary(c *gin.Context) {
	var req sessionSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}

	if req.SessionID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_session_id", nil)
		return
	}
	if req.UserExternalID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_user_external_id", nil)
		return
	}
	// RFC 3339 carries an explicit offset; a naive timestamp fails the parse.
	startedAt, err := time.Parse(time.RFC3339, req.StartedAt)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_started_at",
			fmt.Errorf("started_at must be RFC 3339 with offset: %w", err))
		return
	}
	if req.DurationSeconds == nil || *req.DurationSeconds < 0 || *req.DurationSeconds > 86400 {
		response.RespondError(c, http.StatusBadRequest, "invalid_duration_seconds", nil)
		return
	}
	if req.SentimentScore == nil || *req.SentimentScore < 0 || *req.SentimentScore > 1 {
		response.RespondError(c, http.StatusBadRequest, "invalid_sentiment_score", nil)
		return
	}
	if req.Status != nil && !validSessionStatus(*req.Status) {
		response.RespondError(c, http.StatusBadRequest, "invalid_status", nil)
		return
	}

	deviceID := req.DeviceID
	if deviceID == nil {
		if header := c.GetHeader("X-Device-ID"); header != "" {
			deviceID = &header
		}
	}

	outcome, err := h.rollups.Ingest(c.Request.Context(), services.SessionSummaryInput{
		SessionID:       req.SessionID,
		UserExternalID:  req.UserExternalID,
		DeviceID:        deviceID,
		StartedAt:       startedAt.UTC(),
		DurationSeconds: *req.DurationSeconds,
		SentimentScore:  decimal.NewFromFloat(*req.SentimentScore),
		Status:          req.Status,
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
		return
	}

	status := "ok"
	if outcome == services.OutcomeDuplicate {
		status = "duplicate"
	}
	response.RespondOK(c, gin.H{"status": status})
}
