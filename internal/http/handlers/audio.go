package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/services"
	"github.com/coco-family/coco-backend/internal/types"
)

// maxAudioUploadBytes bounds one multipart upload body.
const maxAudioUploadBytes = 32 << 20

type AudioHandler struct {
	log   *logger.Logger
	audio services.AudioService
}

// NewAudioHandler accepts a nil audio service when the object store is not
// configured; uploads then answer 503.
func NewAudioHandler(log *logger.Logger, audio services.AudioService) *AudioHandler {
	return &AudioHandler{
		log:   log.With("handler", "AudioHandler"),
		audio: audio,
	}
}

func (h *AudioHandler) parseUpload(c *gin.Context) (services.AudioMetadata, []byte, bool) {
	var meta services.AudioMetadata

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioUploadBytes)

	metadataField := c.PostForm("metadata")
	if metadataField == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_metadata", nil)
		return meta, nil, false
	}
	if err := json.Unmarshal([]byte(metadataField), &meta); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_metadata", err)
		return meta, nil, false
	}
	if meta.SessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "missing_session_id", nil)
		return meta, nil, false
	}
	if meta.DeviceID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_device_id", nil)
		return meta, nil, false
	}
	if meta.TurnNumber < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_turn_number", nil)
		return meta, nil, false
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return meta, nil, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return meta, nil, false
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return meta, nil, false
	}
	if len(content) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_file", nil)
		return meta, nil, false
	}
	return meta, content, true
}

// POST /internal/ingest/audio
func (h *AudioHandler) UploadAudio(c *gin.Context) {
	if h.audio == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "audio_storage_unavailable", nil)
		return
	}
	meta, content, ok := h.parseUpload(c)
	if !ok {
		return
	}

	result, err := h.audio.UploadRecording(c.Request.Context(), meta, content)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "audio_upload_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "ok", "url": result.URL})
}

// POST /internal/ingest/session_audio
func (h *AudioHandler) UploadSessionAudio(c *gin.Context) {
	if h.audio == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "audio_storage_unavailable", nil)
		return
	}
	meta, content, ok := h.parseUpload(c)
	if !ok {
		return
	}
	if meta.Role != types.AudioRoleUser && meta.Role != types.AudioRoleAssistant {
		response.RespondError(c, http.StatusBadRequest, "invalid_role", nil)
		return
	}

	result, err := h.audio.UploadSessionRecording(c.Request.Context(), meta, content)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "audio_upload_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"status":       "ok",
		"url":          result.URL,
		"manifest_url": result.ManifestURL,
	})
}
