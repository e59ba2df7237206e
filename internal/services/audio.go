package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/platform/objectstore"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

// AudioMetadata is the parsed metadata form field of an audio upload.
type AudioMetadata struct {
	RecordingID   *uuid.UUID `json:"recording_id,omitempty"`
	SessionID     uuid.UUID  `json:"session_id"`
	DeviceID      string     `json:"device_id"`
	ParticipantID *string    `json:"participant_id,omitempty"`
	TurnNumber    int        `json:"turn_number"`
	Role          string     `json:"role,omitempty"`
	ActivityID    *string    `json:"activity_id,omitempty"`
	DurationMS    int        `json:"duration_ms"`
	Codec         string     `json:"codec,omitempty"`
	Transcript    *string    `json:"transcript,omitempty"`
	SHA256        string     `json:"sha256,omitempty"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

// AudioUploadResult reports where the blob (and manifest, if any) landed.
type AudioUploadResult struct {
	URL         string
	ManifestURL string
}

type AudioService interface {
	// UploadRecording stores one standalone recording blob and, only after
	// the put is confirmed, its metadata row.
	UploadRecording(ctx context.Context, meta AudioMetadata, content []byte) (AudioUploadResult, error)

	// UploadSessionRecording stores the blob inside a per-session folder
	// and maintains the session manifest plus the participant index. The
	// manifest and index writes are best-effort bookkeeping: failures are
	// logged and never fail the upload.
	UploadSessionRecording(ctx context.Context, meta AudioMetadata, content []byte) (AudioUploadResult, error)
}

type audioService struct {
	db     *gorm.DB
	log    *logger.Logger
	store  objectstore.Store
	audios repos.AudioRepo
}

func NewAudioService(db *gorm.DB, baseLog *logger.Logger, store objectstore.Store, audios repos.AudioRepo) AudioService {
	return &audioService{
		db:     db,
		log:    baseLog.With("service", "AudioService"),
		store:  store,
		audios: audios,
	}
}

func (s *audioService) UploadRecording(ctx context.Context, meta AudioMetadata, content []byte) (AudioUploadResult, error) {
	recordingID := uuid.New()
	if meta.RecordingID != nil {
		recordingID = *meta.RecordingID
	}
	codec := meta.Codec
	if codec == "" {
		codec = "flac"
	}
	ext, contentType := "flac", "audio/flac"
	if codec == "opus" {
		ext, contentType = "opus", "audio/opus"
	}
	role := meta.Role
	if role == "" {
		role = types.AudioRoleUser
	}

	recordedAt := meta.RecordedAt.UTC()
	key := fmt.Sprintf("recordings/%s/%d/%02d/%02d/%s.%s",
		meta.DeviceID, recordedAt.Year(), recordedAt.Month(), recordedAt.Day(), recordingID, ext)

	objectMeta := objectstore.ObjectMetadata{
		"session-id": meta.SessionID.String(),
		"role":       role,
		"sha256":     meta.SHA256,
	}
	if err := s.store.Put(ctx, key, bytes.NewReader(content), contentType, objectMeta); err != nil {
		return AudioUploadResult{}, err
	}

	storageURL := s.store.PublicURL(key)
	record := &types.AudioRecording{
		ID:            recordingID,
		SessionID:     meta.SessionID,
		DeviceID:      meta.DeviceID,
		ParticipantID: meta.ParticipantID,
		TurnNumber:    meta.TurnNumber,
		Role:          role,
		ActivityID:    meta.ActivityID,
		DurationMS:    meta.DurationMS,
		FileSizeBytes: len(content),
		Codec:         codec,
		Transcript:    meta.Transcript,
		StorageURL:    storageURL,
		SHA256:        optionalString(meta.SHA256),
		RecordedAt:    recordedAt,
	}
	if err := s.audios.Create(ctx, nil, record); err != nil {
		return AudioUploadResult{}, err
	}

	s.log.Info("audio uploaded",
		"recording_id", recordingID.String(),
		"device_id", meta.DeviceID,
		"role", role,
		"codec", codec,
		"file_size_bytes", len(content),
	)
	return AudioUploadResult{URL: storageURL}, nil
}

func (s *audioService) UploadSessionRecording(ctx context.Context, meta AudioMetadata, content []byte) (AudioUploadResult, error) {
	recordingID := uuid.New()
	if meta.RecordingID != nil {
		recordingID = *meta.RecordingID
	}
	role := meta.Role
	if role == "" {
		role = types.AudioRoleUser
	}

	recordedAt := meta.RecordedAt.UTC()
	sessionFolder := fmt.Sprintf("recordings/%s/%d/%02d/%02d/%s",
		meta.DeviceID, recordedAt.Year(), recordedAt.Month(), recordedAt.Day(), meta.SessionID)
	audioKey := fmt.Sprintf("%s/%02d_%s.flac", sessionFolder, meta.TurnNumber, role)

	objectMeta := objectstore.ObjectMetadata{
		"session-id": meta.SessionID.String(),
		"role":       role,
		"turn":       fmt.Sprintf("%d", meta.TurnNumber),
		"sha256":     meta.SHA256,
	}
	if err := s.store.Put(ctx, audioKey, bytes.NewReader(content), "audio/flac", objectMeta); err != nil {
		return AudioUploadResult{}, err
	}
	storageURL := s.store.PublicURL(audioKey)

	manifestKey := sessionFolder + "/manifest.json"
	s.updateManifest(ctx, manifestKey, meta, role, recordedAt)
	if meta.ParticipantID != nil {
		s.updateParticipantIndex(ctx, meta, recordedAt, manifestKey)
	}

	record := &types.AudioRecording{
		ID:            recordingID,
		SessionID:     meta.SessionID,
		DeviceID:      meta.DeviceID,
		ParticipantID: meta.ParticipantID,
		TurnNumber:    meta.TurnNumber,
		Role:          role,
		ActivityID:    meta.ActivityID,
		DurationMS:    meta.DurationMS,
		FileSizeBytes: len(content),
		Codec:         "flac",
		Transcript:    meta.Transcript,
		StorageURL:    storageURL,
		SHA256:        optionalString(meta.SHA256),
		RecordedAt:    recordedAt,
	}
	if err := s.audios.Create(ctx, nil, record); err != nil {
		return AudioUploadResult{}, err
	}

	s.log.Info("session audio uploaded",
		"recording_id", recordingID.String(),
		"device_id", meta.DeviceID,
		"turn_number", meta.TurnNumber,
		"role", role,
		"file_size_bytes", len(content),
	)
	return AudioUploadResult{
		URL:         storageURL,
		ManifestURL: s.store.PublicURL(manifestKey),
	}, nil
}

type manifestTurn map[string]any

type sessionManifest struct {
	SessionID     string         `json:"session_id"`
	DeviceID      string         `json:"device_id"`
	ParticipantID *string        `json:"participant_id"`
	StartedAt     string         `json:"started_at"`
	Turns         []manifestTurn `json:"turns"`
}

// updateManifest maintains manifest.json in the session folder. Auxiliary
// bookkeeping: any failure is logged and swallowed.
func (s *audioService) updateManifest(ctx context.Context, manifestKey string, meta AudioMetadata, role string, recordedAt time.Time) {
	manifest := sessionManifest{
		SessionID:     meta.SessionID.String(),
		DeviceID:      meta.DeviceID,
		ParticipantID: meta.ParticipantID,
		StartedAt:     recordedAt.Format(time.RFC3339),
		Turns:         []manifestTurn{},
	}
	if err := s.fetchJSON(ctx, manifestKey, &manifest); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		s.log.Warn("failed to fetch session manifest", "key", manifestKey, "error", err)
	}

	var turn manifestTurn
	for _, t := range manifest.Turns {
		if n, ok := t["turn"].(float64); ok && int(n) == meta.TurnNumber {
			turn = t
			break
		}
	}
	if turn == nil {
		turn = manifestTurn{"turn": float64(meta.TurnNumber)}
		manifest.Turns = append(manifest.Turns, turn)
		sort.Slice(manifest.Turns, func(i, j int) bool {
			a, _ := manifest.Turns[i]["turn"].(float64)
			b, _ := manifest.Turns[j]["turn"].(float64)
			return a < b
		})
	}
	if meta.ActivityID != nil {
		turn["activity_id"] = *meta.ActivityID
	}
	roleEntry := map[string]any{
		"audio_filepath": fmt.Sprintf("%02d_%s.flac", meta.TurnNumber, role),
		"duration_ms":    meta.DurationMS,
	}
	if meta.Transcript != nil {
		roleEntry["text"] = *meta.Transcript
	}
	turn[role] = roleEntry

	if err := s.putJSON(ctx, manifestKey, manifest); err != nil {
		s.log.Warn("failed to update session manifest", "key", manifestKey, "error", err)
	}
}

type participantSession struct {
	SessionID       string `json:"session_id"`
	DeviceID        string `json:"device_id"`
	StartedAt       string `json:"started_at"`
	ManifestPath    string `json:"manifest_path"`
	TurnCount       int    `json:"turn_count"`
	TotalDurationMS int    `json:"total_duration_ms"`
}

type participantIndex struct {
	ParticipantID   string                `json:"participant_id"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at,omitempty"`
	SessionCount    int                   `json:"session_count"`
	TotalDurationMS int                   `json:"total_duration_ms"`
	Sessions        []*participantSession `json:"sessions"`
}

// updateParticipantIndex keeps participants/{id}/index.json pointing at the
// participant's sessions for retrieval tooling. Best-effort like the
// manifest.
func (s *audioService) updateParticipantIndex(ctx context.Context, meta AudioMetadata, recordedAt time.Time, manifestKey string) {
	participantID := *meta.ParticipantID
	indexKey := fmt.Sprintf("participants/%s/index.json", participantID)

	index := participantIndex{
		ParticipantID: participantID,
		CreatedAt:     recordedAt.Format(time.RFC3339),
		Sessions:      []*participantSession{},
	}
	if err := s.fetchJSON(ctx, indexKey, &index); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		s.log.Warn("failed to fetch participant index", "key", indexKey, "error", err)
	}

	var entry *participantSession
	for _, existing := range index.Sessions {
		if existing.SessionID == meta.SessionID.String() {
			entry = existing
			break
		}
	}
	if entry == nil {
		entry = &participantSession{
			SessionID:    meta.SessionID.String(),
			DeviceID:     meta.DeviceID,
			StartedAt:    recordedAt.Format(time.RFC3339),
			ManifestPath: manifestKey,
		}
		index.Sessions = append(index.Sessions, entry)
	}
	if meta.TurnNumber > entry.TurnCount {
		entry.TurnCount = meta.TurnNumber
	}
	entry.TotalDurationMS += meta.DurationMS

	index.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	index.SessionCount = len(index.Sessions)
	total := 0
	for _, existing := range index.Sessions {
		total += existing.TotalDurationMS
	}
	index.TotalDurationMS = total

	if err := s.putJSON(ctx, indexKey, index); err != nil {
		s.log.Warn("failed to update participant index", "key", indexKey, "error", err)
	}
}

func (s *audioService) fetchJSON(ctx context.Context, key string, out any) error {
	body, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *audioService) putJSON(ctx context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return s.store.Put(ctx, key, bytes.NewReader(data), "application/json", nil)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
