package app

import (
	"fmt"
	"strings"

	"github.com/coco-family/coco-backend/internal/platform/envutil"
	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

type Config struct {
	AppEnv string
	Port   string

	DatabaseURL        string
	IngestServiceToken string
	AdminToken         string

	// DashboardTokenMap maps bearer tokens to the external user id each may
	// read; "*" grants the whole fleet.
	DashboardTokenMap map[string]string
	AllowedOrigins    []string

	RollupWindowDays         int
	HeartbeatStaleMinutes    int
	CompactProbability       float64
	CompactRawRetentionHours int
	CleanupRetentionDays     int
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		AppEnv: envutil.String("APP_ENV", "development"),
		Port:   envutil.String("PORT", "8080"),

		RollupWindowDays:         envutil.Int("ROLLUP_WINDOW_DAYS", types.RollupWindowDays),
		HeartbeatStaleMinutes:    envutil.Int("HEARTBEAT_STALE_MINUTES", 20),
		CompactProbability:       envutil.Float("COMPACT_PROBABILITY", 0.01),
		CompactRawRetentionHours: envutil.Int("COMPACT_RAW_RETENTION_HOURS", 24),
		CleanupRetentionDays:     envutil.Int("CLEANUP_RETENTION_DAYS", 7),
	}

	var ok bool
	if cfg.DatabaseURL, ok = envutil.Require("DATABASE_URL"); !ok {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IngestServiceToken, ok = envutil.Require("INGEST_SERVICE_TOKEN"); !ok {
		return cfg, fmt.Errorf("INGEST_SERVICE_TOKEN is required")
	}
	if cfg.AdminToken, ok = envutil.Require("ADMIN_TOKEN"); !ok {
		return cfg, fmt.Errorf("ADMIN_TOKEN is required")
	}

	// The rollup arrays and their consumers are shaped around a fixed
	// 7-day window; the knob exists only to fail loudly on drift.
	if cfg.RollupWindowDays != types.RollupWindowDays {
		return cfg, fmt.Errorf("ROLLUP_WINDOW_DAYS must be %d, got %d", types.RollupWindowDays, cfg.RollupWindowDays)
	}

	cfg.DashboardTokenMap = parseTokenMap(envutil.String("DASHBOARD_TOKEN_MAP", ""))
	if len(cfg.DashboardTokenMap) == 0 {
		log.Warn("DASHBOARD_TOKEN_MAP is empty; dashboard endpoints will reject every token")
	}

	cfg.AllowedOrigins = parseOrigins(
		envutil.String("DASHBOARD_ALLOWED_ORIGINS", ""),
		envutil.String("DASHBOARD_ORIGIN", ""),
	)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}

	return cfg, nil
}

// parseTokenMap parses "token:user,token2:*" pairs; malformed entries are
// skipped.
func parseTokenMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		token, user, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || token == "" || user == "" {
			continue
		}
		out[token] = user
	}
	return out
}

func parseOrigins(values ...string) []string {
	var out []string
	for _, raw := range values {
		for _, origin := range strings.Split(raw, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}
