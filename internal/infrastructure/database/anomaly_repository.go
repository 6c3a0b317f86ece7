package database

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

// AnomalyRepository persists anomaly detection outcomes.
type AnomalyRepository struct {
	db *pgxpool.Pool
}

func NewAnomalyRepository(db *pgxpool.Pool) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

func (r *AnomalyRepository) InsertAnomaly(ctx context.Context, report *audit.AnomalyReport) error {
	typesJSON, err := json.Marshal(report.Types)
	if err != nil {
		return errors.NewInternalError("failed to marshal anomaly types").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO anomaly_reports (
			id, event_id, actor_id, anomaly_types, severity, detected_at, resolved
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING`,
		report.ID,
		report.EventID,
		report.ActorID,
		typesJSON,
		string(report.Severity),
		report.DetectedAt,
		report.Resolved,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert anomaly report").WithCause(err)
	}
	return nil
}

// ReportRepository persists generated audit reports.
type ReportRepository struct {
	db *pgxpool.Pool
}

func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) InsertReport(ctx context.Context, report *audit.Report) error {
	payloadJSON, err := json.Marshal(report)
	if err != nil {
		return errors.NewInternalError("failed to marshal report").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_reports (
			id, report_type, period_start, period_end, generated_by, generated_at, payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		report.ID,
		string(report.Type),
		report.PeriodStart,
		report.PeriodEnd,
		report.GeneratedBy,
		report.GeneratedAt,
		payloadJSON,
	)
	if err != nil {
		return errors.NewInternalError("failed to insert audit report").WithCause(err)
	}
	return nil
}
