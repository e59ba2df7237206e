package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

// nominalHeartbeatIntervalSeconds is the assumed reporting cadence used
// when estimating per-bucket uptime from discrete heartbeat samples.
const nominalHeartbeatIntervalSeconds = 60

// TriggerPolicy decides whether an ingest request should piggyback a
// compaction pass. Production uses a random draw; tests inject a
// deterministic policy.
type TriggerPolicy interface {
	Decide(now time.Time) bool
}

// TriggerFunc adapts a plain function to a TriggerPolicy.
type TriggerFunc func(now time.Time) bool

func (f TriggerFunc) Decide(now time.Time) bool { return f(now) }

// RandomTrigger fires independently with fixed probability per call,
// amortizing cleanup across the fleet without a scheduler process.
type RandomTrigger struct {
	Probability float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomTrigger(probability float64) *RandomTrigger {
	return &RandomTrigger{
		Probability: probability,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *RandomTrigger) Decide(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Float64() < t.Probability
}

type CompactorService interface {
	// Compact folds raw heartbeat events older than rawRetentionHours into
	// hourly summaries and deletes the folded rows. Returns the number of
	// events compacted.
	Compact(ctx context.Context, rawRetentionHours int) (int, error)

	// Cleanup deletes raw events older than retentionDays regardless of
	// compaction state — the safety net for devices too sparse to ever
	// trigger a compaction pass.
	Cleanup(ctx context.Context, retentionDays int) (int64, error)

	// MaybeRun consults the trigger policy; when it fires, runs Compact
	// followed by Cleanup. ran=false means the draw did not fire.
	MaybeRun(ctx context.Context) (compacted int, cleaned int64, ran bool, err error)
}

type compactorService struct {
	db                *gorm.DB
	log               *logger.Logger
	heartbeats        repos.HeartbeatRepo
	trigger           TriggerPolicy
	rawRetentionHours int
	retentionDays     int
}

func NewCompactorService(db *gorm.DB, baseLog *logger.Logger, heartbeats repos.HeartbeatRepo, trigger TriggerPolicy, rawRetentionHours, retentionDays int) CompactorService {
	return &compactorService{
		db:                db,
		log:               baseLog.With("service", "CompactorService"),
		heartbeats:        heartbeats,
		trigger:           trigger,
		rawRetentionHours: rawRetentionHours,
		retentionDays:     retentionDays,
	}
}

func (s *compactorService) MaybeRun(ctx context.Context) (int, int64, bool, error) {
	if !s.trigger.Decide(time.Now().UTC()) {
		return 0, 0, false, nil
	}
	compacted, err := s.Compact(ctx, s.rawRetentionHours)
	if err != nil {
		return 0, 0, true, err
	}
	cleaned, err := s.Cleanup(ctx, s.retentionDays)
	if err != nil {
		return compacted, 0, true, err
	}
	return compacted, cleaned, true, nil
}

// bucketKey identifies one (device, UTC hour) summary bucket.
type bucketKey struct {
	deviceID   string
	hourBucket time.Time
}

// batchAggregate is the lossy aggregate of one pass's raw events for one
// bucket, before merging with any stored summary.
type batchAggregate struct {
	count             int
	latencies         []int
	connectivityOrder []string
	connectivityVotes map[string]int
	okCount           int
	degradedCount     int
	firstSeen         time.Time
	lastSeen          time.Time
	lastBootTime      *time.Time
	rebootCount       int
	eventIDs          []uuid.UUID
}

func (s *compactorService) Compact(ctx context.Context, rawRetentionHours int) (int, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(rawRetentionHours) * time.Hour)

	total := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		events, err := s.heartbeats.ListEventsBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		batches := groupEvents(events)

		var folded []uuid.UUID
		for key, batch := range batches {
			existing, err := s.heartbeats.GetSummary(ctx, tx, key.deviceID, key.hourBucket)
			if err != nil {
				return err
			}
			merged := mergeSummary(existing, key, batch)
			if err := s.heartbeats.SaveSummary(ctx, tx, merged); err != nil {
				return err
			}
			folded = append(folded, batch.eventIDs...)
		}

		// Every event folded into a summary this pass is deleted, no
		// matter which bucket it landed in.
		deleted, err := s.heartbeats.DeleteEventsByIDs(ctx, tx, folded)
		if err != nil {
			return err
		}
		total = int(deleted)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		s.log.Info("heartbeat events compacted", "compacted_count", total)
	}
	return total, nil
}

func (s *compactorService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted, err := s.heartbeats.DeleteEventsBefore(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("heartbeat events cleanup", "deleted_count", deleted)
	}
	return deleted, nil
}

// groupEvents buckets the (already time-ordered) raw events by device and
// UTC hour and derives each bucket's batch aggregate.
func groupEvents(events []types.DeviceHeartbeatEvent) map[bucketKey]*batchAggregate {
	batches := make(map[bucketKey]*batchAggregate)
	for _, event := range events {
		received := event.ServerReceivedAt.UTC()
		key := bucketKey{
			deviceID:   event.DeviceID,
			hourBucket: received.Truncate(time.Hour),
		}
		batch := batches[key]
		if batch == nil {
			batch = &batchAggregate{
				connectivityVotes: make(map[string]int),
				firstSeen:         received,
			}
			batches[key] = batch
		}

		var payload HeartbeatInput
		// Events were marshaled by this process; an unparsable payload
		// still counts toward the bucket totals.
		_ = json.Unmarshal(event.RawPayload, &payload)

		batch.count++
		batch.lastSeen = received
		batch.eventIDs = append(batch.eventIDs, event.ID)

		if payload.Network.LatencyMS != nil {
			batch.latencies = append(batch.latencies, *payload.Network.LatencyMS)
		}
		if payload.Connectivity != "" {
			if _, seen := batch.connectivityVotes[payload.Connectivity]; !seen {
				batch.connectivityOrder = append(batch.connectivityOrder, payload.Connectivity)
			}
			batch.connectivityVotes[payload.Connectivity]++
		}
		if payload.AgentStatus == types.AgentStatusOK {
			batch.okCount++
		} else {
			batch.degradedCount++
		}
		if payload.BootTime != nil {
			if batch.lastBootTime != nil && payload.BootTime.After(*batch.lastBootTime) {
				batch.rebootCount++
			}
			batch.lastBootTime = payload.BootTime
		}
	}
	return batches
}

// mergeSummary folds a batch aggregate into the stored summary for its
// bucket, or builds a fresh one. The latency average merges with a
// count-weighted formula using the pre-merge stored count as weight, so the
// merge happens before the count field itself is incremented.
func mergeSummary(existing *types.DeviceHeartbeatSummary, key bucketKey, batch *batchAggregate) *types.DeviceHeartbeatSummary {
	batchMin, batchAvg, batchMax := latencyStats(batch.latencies)

	if existing == nil {
		return &types.DeviceHeartbeatSummary{
			DeviceID:                 key.deviceID,
			HourBucket:               key.hourBucket,
			HeartbeatCount:           batch.count,
			AvgLatencyMS:             batchAvg,
			MinLatencyMS:             batchMin,
			MaxLatencyMS:             batchMax,
			ConnectivityMode:         batch.pluralityConnectivity(),
			AgentStatusOKCount:       batch.okCount,
			AgentStatusDegradedCount: batch.degradedCount,
			UptimeSeconds:            batch.uptimeSeconds(),
			RebootCount:              batch.rebootCount,
		}
	}

	oldCount := existing.HeartbeatCount

	switch {
	case existing.AvgLatencyMS != nil && batchAvg != nil:
		weighted := (*existing.AvgLatencyMS*oldCount + *batchAvg*batch.count) / (oldCount + batch.count)
		existing.AvgLatencyMS = &weighted
	case batchAvg != nil:
		existing.AvgLatencyMS = batchAvg
	}

	// min/max widen monotonically.
	if batchMin != nil && (existing.MinLatencyMS == nil || *batchMin < *existing.MinLatencyMS) {
		existing.MinLatencyMS = batchMin
	}
	if batchMax != nil && (existing.MaxLatencyMS == nil || *batchMax > *existing.MaxLatencyMS) {
		existing.MaxLatencyMS = batchMax
	}

	existing.HeartbeatCount = oldCount + batch.count
	existing.AgentStatusOKCount += batch.okCount
	existing.AgentStatusDegradedCount += batch.degradedCount
	existing.RebootCount += batch.rebootCount

	uptime := existing.UptimeSeconds + batch.uptimeSeconds()
	if uptime > 3600 {
		uptime = 3600
	}
	existing.UptimeSeconds = uptime

	return existing
}

// latencyStats derives min/avg/max from the known latency samples; the
// average is an integer-truncated mean. All three are nil with no samples.
func latencyStats(latencies []int) (min, avg, max *int) {
	if len(latencies) == 0 {
		return nil, nil, nil
	}
	lo, hi, sum := latencies[0], latencies[0], 0
	for _, v := range latencies {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}
	mean := sum / len(latencies)
	return &lo, &mean, &hi
}

// pluralityConnectivity picks the most voted mode; ties break to the mode
// seen first in the (timestamp-ordered) event stream.
func (b *batchAggregate) pluralityConnectivity() string {
	best, bestVotes := "", -1
	for _, mode := range b.connectivityOrder {
		if votes := b.connectivityVotes[mode]; votes > bestVotes {
			best, bestVotes = mode, votes
		}
	}
	if best == "" {
		return types.ConnectivityOffline
	}
	return best
}

// uptimeSeconds estimates covered uptime as the observed span plus one
// nominal reporting interval, capped at the bucket width.
func (b *batchAggregate) uptimeSeconds() int {
	if b.count == 0 {
		return 0
	}
	span := int(b.lastSeen.Sub(b.firstSeen).Seconds()) + nominalHeartbeatIntervalSeconds
	if span > 3600 {
		span = 3600
	}
	return span
}
