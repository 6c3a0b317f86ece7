package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
)

// RetentionEnforcer moves events past their retention period from the
// active store into the archive. Deletion happens strictly after a
// successful copy; a failed copy leaves the bucket untouched for the next
// run.
type RetentionEnforcer struct {
	store   EventStore
	metrics *Metrics
	logger  *zap.Logger
	clock   func() time.Time
}

func NewRetentionEnforcer(store EventStore, metrics *Metrics, logger *zap.Logger) *RetentionEnforcer {
	return &RetentionEnforcer{
		store:   store,
		metrics: metrics,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Enforce sweeps every retention bucket once and returns the number of
// events archived. Per-bucket failures are logged and skipped so one bad
// bucket cannot block the others.
func (r *RetentionEnforcer) Enforce(ctx context.Context) (int, error) {
	now := r.clock()
	archived := 0

	for _, years := range audit.RetentionBuckets() {
		cutoff := now.AddDate(-years, 0, 0)
		events, err := r.store.ListExpired(ctx, years, cutoff)
		if err != nil {
			r.logger.Error("retention sweep: listing expired events failed",
				zap.Int("retention_years", years),
				zap.Error(err),
			)
			continue
		}
		if len(events) == 0 {
			continue
		}

		if err := r.store.CopyToArchive(ctx, events); err != nil {
			r.logger.Error("retention sweep: archive copy failed, bucket left in place",
				zap.Int("retention_years", years),
				zap.Int("count", len(events)),
				zap.Error(err),
			)
			continue
		}

		ids := make([]uuid.UUID, len(events))
		for i, event := range events {
			ids[i] = event.ID
		}
		if err := r.store.DeleteFromActive(ctx, ids); err != nil {
			// Events exist in both stores now; duplicate-tolerant archival
			// makes the next sweep safe.
			r.logger.Error("retention sweep: active-store delete failed",
				zap.Int("retention_years", years),
				zap.Error(err),
			)
			continue
		}

		archived += len(events)
		if r.metrics != nil {
			r.metrics.EventsArchived.Add(float64(len(events)))
		}
		r.logger.Info("retention sweep archived bucket",
			zap.Int("retention_years", years),
			zap.Int("count", len(events)),
		)
	}

	return archived, nil
}
