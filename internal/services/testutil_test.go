package services

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/db"
	"github.com/coco-family/coco-backend/internal/platform/logger"
)

// newTestDB opens a per-test in-memory sqlite database through the same
// dialect selection the server uses.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	svc, err := db.New(logger.NewNop(), fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return svc.DB()
}
