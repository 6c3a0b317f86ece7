package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
)

const (
	maxBusinessGap = time.Hour

	businessDayStart = 8
	businessDayEnd   = 18
)

// IntegrityChecker scans the stored trail for tamper signals: silent gaps
// during business hours, and records whose stored timestamps show direct
// modification after insert.
type IntegrityChecker struct {
	store    EventStore
	logger   *zap.Logger
	location *time.Location
	clock    func() time.Time
}

func NewIntegrityChecker(store EventStore, logger *zap.Logger, location *time.Location) *IntegrityChecker {
	if location == nil {
		location = time.Local
	}
	return &IntegrityChecker{
		store:    store,
		logger:   logger,
		location: location,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Run checks the [start, end) window and returns every finding. An empty
// slice with nil error means the window looked clean.
func (c *IntegrityChecker) Run(ctx context.Context, start, end time.Time) ([]audit.IntegrityFinding, error) {
	events, err := c.store.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	findings := c.findGaps(events)

	tampered, err := c.store.ListModifiedAfterInsert(ctx)
	if err != nil {
		return nil, err
	}
	now := c.clock()
	for _, event := range tampered {
		id := event.ID
		findings = append(findings, audit.IntegrityFinding{
			Type:        audit.FindingDirectModification,
			Description: fmt.Sprintf("event %s was modified after insertion", event.ID),
			EventID:     &id,
			DetectedAt:  now,
		})
	}

	if len(findings) > 0 {
		c.logger.Warn("integrity scan produced findings",
			zap.Int("count", len(findings)),
			zap.Time("window_start", start),
			zap.Time("window_end", end),
		)
	}
	return findings, nil
}

// findGaps flags stretches longer than an hour with no events at all, when
// the stretch begins inside business hours. Quiet nights and weekends are
// expected.
func (c *IntegrityChecker) findGaps(events []*audit.Event) []audit.IntegrityFinding {
	var findings []audit.IntegrityFinding
	now := c.clock()

	for i := 1; i < len(events); i++ {
		gapStart := events[i-1].Timestamp
		gapEnd := events[i].Timestamp
		if gapEnd.Sub(gapStart) <= maxBusinessGap {
			continue
		}
		if !c.isBusinessHours(gapStart) {
			continue
		}
		gs, ge := gapStart, gapEnd
		findings = append(findings, audit.IntegrityFinding{
			Type: audit.FindingTimeGap,
			Description: fmt.Sprintf("no audit events for %s during business hours",
				gapEnd.Sub(gapStart).Round(time.Minute)),
			GapStart:   &gs,
			GapEnd:     &ge,
			DetectedAt: now,
		})
	}
	return findings
}

// isBusinessHours reports Monday through Friday, 08:00 to 18:00 local.
func (c *IntegrityChecker) isBusinessHours(at time.Time) bool {
	local := at.In(c.location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= businessDayStart && hour < businessDayEnd
}
