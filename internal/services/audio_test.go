package services

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/platform/objectstore"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

func newAudioFixture(t *testing.T) (AudioService, *objectstore.MemoryStore, *gorm.DB) {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	store := objectstore.NewMemoryStore()
	svc := NewAudioService(gdb, log, store, repos.NewAudioRepo(gdb, log))
	return svc, store, gdb
}

func baseMetadata() AudioMetadata {
	participant := "part-1"
	return AudioMetadata{
		SessionID:     uuid.New(),
		DeviceID:      "dev-1",
		ParticipantID: &participant,
		TurnNumber:    1,
		Role:          types.AudioRoleUser,
		DurationMS:    1500,
		RecordedAt:    time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestUploadRecordingStoresBlobThenRow(t *testing.T) {
	svc, store, gdb := newAudioFixture(t)
	ctx := context.Background()

	meta := baseMetadata()
	result, err := svc.UploadRecording(ctx, meta, []byte("flac-bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.URL == "" {
		t.Fatalf("expected a storage url")
	}

	keys := store.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one stored object, got %d", len(keys))
	}
	if !strings.HasPrefix(keys[0], "recordings/dev-1/2026/08/30/") || !strings.HasSuffix(keys[0], ".flac") {
		t.Fatalf("unexpected object key %q", keys[0])
	}

	var count int64
	if err := gdb.Model(&types.AudioRecording{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one metadata row, got %d", count)
	}

	var row types.AudioRecording
	if err := gdb.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.FileSizeBytes != len("flac-bytes") {
		t.Fatalf("expected file size recorded, got %d", row.FileSizeBytes)
	}
	if row.Codec != "flac" {
		t.Fatalf("expected default codec flac, got %s", row.Codec)
	}
}

func TestUploadSessionRecordingMaintainsManifest(t *testing.T) {
	svc, store, _ := newAudioFixture(t)
	ctx := context.Background()

	meta := baseMetadata()
	if _, err := svc.UploadSessionRecording(ctx, meta, []byte("user-audio")); err != nil {
		t.Fatalf("user upload failed: %v", err)
	}

	assistant := meta
	assistant.Role = types.AudioRoleAssistant
	transcript := "hello there"
	assistant.Transcript = &transcript
	result, err := svc.UploadSessionRecording(ctx, assistant, []byte("assistant-audio"))
	if err != nil {
		t.Fatalf("assistant upload failed: %v", err)
	}
	if result.ManifestURL == "" {
		t.Fatalf("expected manifest url")
	}

	manifestKey := ""
	for _, key := range store.Keys() {
		if strings.HasSuffix(key, "/manifest.json") {
			manifestKey = key
		}
	}
	if manifestKey == "" {
		t.Fatalf("expected manifest.json in session folder, keys: %v", store.Keys())
	}

	body, err := store.Get(ctx, manifestKey)
	if err != nil {
		t.Fatalf("get manifest: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)

	var manifest sessionManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if len(manifest.Turns) != 1 {
		t.Fatalf("both roles of one turn must share a manifest entry, got %d turns", len(manifest.Turns))
	}
	turn := manifest.Turns[0]
	if _, ok := turn[types.AudioRoleUser]; !ok {
		t.Fatalf("expected user role in turn, got %v", turn)
	}
	entry, ok := turn[types.AudioRoleAssistant].(map[string]any)
	if !ok {
		t.Fatalf("expected assistant role in turn, got %v", turn)
	}
	if entry["text"] != transcript {
		t.Fatalf("expected transcript in manifest, got %v", entry["text"])
	}
}

func TestUploadSessionRecordingUpdatesParticipantIndex(t *testing.T) {
	svc, store, _ := newAudioFixture(t)
	ctx := context.Background()

	meta := baseMetadata()
	if _, err := svc.UploadSessionRecording(ctx, meta, []byte("one")); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	second := meta
	second.TurnNumber = 2
	if _, err := svc.UploadSessionRecording(ctx, second, []byte("two")); err != nil {
		t.Fatalf("second upload failed: %v", err)
	}

	body, err := store.Get(ctx, "participants/part-1/index.json")
	if err != nil {
		t.Fatalf("get participant index: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)

	var index participantIndex
	if err := json.Unmarshal(data, &index); err != nil {
		t.Fatalf("parse index: %v", err)
	}
	if index.SessionCount != 1 {
		t.Fatalf("same session twice must stay one entry, got %d", index.SessionCount)
	}
	if len(index.Sessions) != 1 || index.Sessions[0].TurnCount != 2 {
		t.Fatalf("expected turn count 2, got %+v", index.Sessions)
	}
	if index.TotalDurationMS != 3000 {
		t.Fatalf("expected total duration 3000, got %d", index.TotalDurationMS)
	}
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key string, body io.Reader, contentType string, meta objectstore.ObjectMetadata) error {
	return io.ErrUnexpectedEOF
}

func (failingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, objectstore.ErrNotFound
}

func (failingStore) PublicURL(key string) string { return "" }

func TestUploadRecordingWritesNoRowWhenPutFails(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	svc := NewAudioService(gdb, log, failingStore{}, repos.NewAudioRepo(gdb, log))

	meta := baseMetadata()
	if _, err := svc.UploadRecording(context.Background(), meta, []byte("bytes")); err == nil {
		t.Fatalf("expected error when blob put fails")
	}

	var count int64
	if err := gdb.Model(&types.AudioRecording{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("metadata row must not exist without a stored blob, got %d", count)
	}
}
