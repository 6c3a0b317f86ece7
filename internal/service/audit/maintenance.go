package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
)

const (
	defaultIntegritySchedule = "0 2 * * *"
	defaultRetentionSchedule = "30 2 * * *"

	maintenanceActor = "system"
	jobTimeout       = 10 * time.Minute
)

// MaintenanceConfig holds the cron schedules for the daily jobs. Zero
// values take the defaults: integrity at 02:00, retention at 02:30.
type MaintenanceConfig struct {
	IntegritySchedule string
	RetentionSchedule string
}

// Maintenance owns the scheduled background jobs of the audit subsystem:
// the daily integrity scan over the previous day and the daily retention
// sweep. Outcomes are themselves logged as system events, and integrity
// findings fan out through the trail's alert subscribers.
type Maintenance struct {
	trail    *Trail
	checker  *IntegrityChecker
	enforcer *RetentionEnforcer
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewMaintenance(trail *Trail, checker *IntegrityChecker, enforcer *RetentionEnforcer, logger *zap.Logger, cfg MaintenanceConfig) (*Maintenance, error) {
	if cfg.IntegritySchedule == "" {
		cfg.IntegritySchedule = defaultIntegritySchedule
	}
	if cfg.RetentionSchedule == "" {
		cfg.RetentionSchedule = defaultRetentionSchedule
	}

	m := &Maintenance{
		trail:    trail,
		checker:  checker,
		enforcer: enforcer,
		logger:   logger,
		cron:     cron.New(),
	}

	if _, err := m.cron.AddFunc(cfg.IntegritySchedule, m.runIntegrity); err != nil {
		return nil, fmt.Errorf("invalid integrity schedule %q: %w", cfg.IntegritySchedule, err)
	}
	if _, err := m.cron.AddFunc(cfg.RetentionSchedule, m.runRetention); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.RetentionSchedule, err)
	}
	return m, nil
}

// Start begins running the scheduled jobs.
func (m *Maintenance) Start() {
	m.cron.Start()
	m.logger.Info("audit maintenance jobs scheduled")
}

// Stop halts the scheduler and waits for any running job.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Maintenance) runIntegrity() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.Add(-24 * time.Hour)

	findings, err := m.checker.Run(ctx, start, end)
	if err != nil {
		m.logger.Error("scheduled integrity scan failed", zap.Error(err))
		return
	}

	if len(findings) > 0 {
		m.trail.Emit(Alert{
			Kind:     AlertIntegrity,
			Severity: "high",
			Message:  fmt.Sprintf("integrity scan found %d issue(s) in the audit trail", len(findings)),
			Findings: findings,
			At:       time.Now().UTC(),
		})
	}

	m.logSystemEvent(ctx, "integrity_scan", map[string]interface{}{
		"window_start": start.Format(time.RFC3339),
		"window_end":   end.Format(time.RFC3339),
		"findings":     len(findings),
	})
}

func (m *Maintenance) runRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	archived, err := m.enforcer.Enforce(ctx)
	if err != nil {
		m.logger.Error("scheduled retention sweep failed", zap.Error(err))
		return
	}

	m.logSystemEvent(ctx, "retention_sweep", map[string]interface{}{
		"archived": archived,
	})
}

func (m *Maintenance) logSystemEvent(ctx context.Context, action string, metadata map[string]interface{}) {
	_, err := m.trail.LogEvent(ctx, LogInput{
		Type:       audit.EventSystem,
		EntityType: "audit_trail",
		EntityID:   "maintenance",
		Action:     action,
		ActorID:    maintenanceActor,
		Metadata:   metadata,
	})
	if err != nil {
		m.logger.Warn("failed to log maintenance event",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
