package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
)

const (
	// rapidActionThreshold is the per-actor action count within the tracker
	// window above which the rapid-actions flag fires.
	rapidActionThreshold = 50

	rapidActionWindow = 5 * time.Minute

	afterHoursStart = 22
	afterHoursEnd   = 6
)

// Detector evaluates each logged event for suspicious traits: after-hours
// activity, rapid action bursts, previously unseen source addresses, and
// bulk data access. The hot counters live in the activity tracker; when it
// is unavailable detection degrades to store-backed queries, which only see
// flushed events.
type Detector struct {
	store     EventStore
	anomalies AnomalyStore
	tracker   ActivityTracker
	notifier  Notifier
	logger    *zap.Logger
	location  *time.Location
	clock     func() time.Time

	// Set by the owning trail.
	emit    func(Alert)
	metrics *Metrics
}

// NewDetector wires a detector. The tracker may be nil, forcing the
// store-backed fallback. The location defaults to the local zone.
func NewDetector(store EventStore, anomalies AnomalyStore, tracker ActivityTracker, notifier Notifier, logger *zap.Logger, location *time.Location) *Detector {
	if location == nil {
		location = time.Local
	}
	return &Detector{
		store:     store,
		anomalies: anomalies,
		tracker:   tracker,
		notifier:  notifier,
		logger:    logger,
		location:  location,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Inspect runs every detection rule against the event. When at least one
// flag fires it persists an anomaly report, notifies the security contact,
// and emits an anomaly alert. A nil report with nil error means the event
// looked normal.
func (d *Detector) Inspect(ctx context.Context, event *audit.Event) (*audit.AnomalyReport, error) {
	var flags []audit.AnomalyType

	if d.isAfterHours(event.Timestamp) {
		flags = append(flags, audit.AnomalyAfterHours)
	}
	if d.isRapidBurst(ctx, event) {
		flags = append(flags, audit.AnomalyRapidActions)
	}
	if d.isNewLocation(ctx, event) {
		flags = append(flags, audit.AnomalyNewLocation)
	}
	if isBulkAccess(event.Action) {
		flags = append(flags, audit.AnomalyBulkDataAccess)
	}

	if len(flags) == 0 {
		return nil, nil
	}

	report := audit.NewAnomalyReport(event.ID, event.ActorID, flags)
	if err := d.anomalies.InsertAnomaly(ctx, report); err != nil {
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.Anomalies.WithLabelValues(string(report.Severity)).Inc()
	}

	d.logger.Warn("anomalous activity detected",
		zap.String("actor_id", event.ActorID),
		zap.String("event_id", event.ID.String()),
		zap.String("severity", string(report.Severity)),
		zap.Any("flags", flags),
	)

	if d.emit != nil {
		d.emit(Alert{
			Kind:     AlertAnomaly,
			Severity: string(report.Severity),
			Message:  fmt.Sprintf("anomalous activity by actor %s: %s", event.ActorID, joinFlags(flags)),
			Event:    event,
			Anomaly:  report,
			At:       d.clock(),
		})
	}

	if d.notifier != nil {
		notification := Notification{
			Title:   "Anomalous audit activity",
			Message: fmt.Sprintf("Actor %s triggered %s-severity anomaly flags: %s", event.ActorID, report.Severity, joinFlags(flags)),
			Payload: map[string]interface{}{
				"anomaly_id": report.ID.String(),
				"event_id":   event.ID.String(),
			},
		}
		if err := d.notifier.Notify(ctx, notification); err != nil {
			d.logger.Warn("anomaly notification failed", zap.Error(err))
		}
	}

	return report, nil
}

// isAfterHours flags local hours before 06:00 or after 22:00.
func (d *Detector) isAfterHours(at time.Time) bool {
	hour := at.In(d.location).Hour()
	return hour < afterHoursEnd || hour > afterHoursStart
}

func (d *Detector) isRapidBurst(ctx context.Context, event *audit.Event) bool {
	if d.tracker != nil {
		count, err := d.tracker.RecordAction(ctx, event.ActorID, event.Timestamp)
		if err == nil {
			return count > rapidActionThreshold
		}
		d.logger.Warn("activity tracker unavailable, falling back to store",
			zap.Error(err))
	}

	count, err := d.store.CountByActorSince(ctx, event.ActorID, event.Timestamp.Add(-rapidActionWindow))
	if err != nil {
		d.logger.Warn("store-backed action count failed", zap.Error(err))
		return false
	}
	return count > rapidActionThreshold
}

func (d *Detector) isNewLocation(ctx context.Context, event *audit.Event) bool {
	if event.SourceAddr == "" {
		return false
	}

	known, err := d.knownAddr(ctx, event.ActorID, event.SourceAddr)
	if err != nil {
		d.logger.Warn("source address check failed", zap.Error(err))
		return false
	}
	if known {
		return false
	}

	if d.tracker != nil {
		if err := d.tracker.RememberAddr(ctx, event.ActorID, event.SourceAddr); err != nil {
			d.logger.Warn("failed to remember source address", zap.Error(err))
		}
	}
	return true
}

func (d *Detector) knownAddr(ctx context.Context, actorID, addr string) (bool, error) {
	if d.tracker != nil {
		known, err := d.tracker.IsKnownAddr(ctx, actorID, addr)
		if err == nil {
			return known, nil
		}
		d.logger.Warn("activity tracker unavailable, falling back to store",
			zap.Error(err))
	}
	return d.store.HasSourceAddr(ctx, actorID, addr)
}

func isBulkAccess(action string) bool {
	lower := strings.ToLower(action)
	return strings.Contains(lower, "bulk") || strings.Contains(lower, "export")
}

func joinFlags(flags []audit.AnomalyType) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
