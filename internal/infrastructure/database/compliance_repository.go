package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

// ComplianceRepository persists checks, medical claims, and approvals.
type ComplianceRepository struct {
	db *pgxpool.Pool
}

func NewComplianceRepository(db *pgxpool.Pool) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

func (r *ComplianceRepository) SaveCheck(ctx context.Context, check *compliance.Check) error {
	resultsJSON, err := json.Marshal(check.Results)
	if err != nil {
		return errors.NewInternalError("failed to marshal check results").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO compliance_checks (
			id, content_type, content, results, status, checked_by, checked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		check.ID,
		check.ContentType.String(),
		check.Content,
		resultsJSON,
		check.Status.String(),
		check.CheckedBy,
		check.CheckedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to save compliance check").WithCause(err)
	}
	return nil
}

func (r *ComplianceRepository) SaveClaim(ctx context.Context, claim *compliance.MedicalClaim) error {
	evidenceJSON, err := json.Marshal(claim.Evidence)
	if err != nil {
		return errors.NewInternalError("failed to marshal claim evidence").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO medical_claims (
			id, claim_text, claim_type, product_name, substantiation,
			evidence, created_at, reviewed_at, reviewed_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		claim.ID,
		claim.Text,
		claim.Type.String(),
		claim.ProductName,
		string(claim.Substantiation),
		evidenceJSON,
		claim.CreatedAt,
		claim.ReviewedAt,
		nullable(claim.ReviewedBy),
	)
	if err != nil {
		return errors.NewInternalError("failed to save medical claim").WithCause(err)
	}
	return nil
}

func (r *ComplianceRepository) SaveApproval(ctx context.Context, approval *compliance.Approval) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO compliance_approvals (
			id, content_id, content_type, check_id, status,
			reviewer_id, notes, created_at, reviewed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		approval.ID,
		approval.ContentID,
		approval.ContentType.String(),
		approval.CheckID,
		approval.Status.String(),
		nullable(approval.ReviewerID),
		nullable(approval.Notes),
		approval.CreatedAt,
		approval.ReviewedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to save approval").WithCause(err)
	}
	return nil
}

func (r *ComplianceRepository) GetApproval(ctx context.Context, id uuid.UUID) (*compliance.Approval, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, content_id, content_type, check_id, status,
			COALESCE(reviewer_id, ''), COALESCE(notes, ''), created_at, reviewed_at
		FROM compliance_approvals WHERE id = $1`, id)

	approval, err := scanApproval(row)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrApprovalNotFound
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to get approval").WithCause(err)
	}
	return approval, nil
}

func (r *ComplianceRepository) UpdateApproval(ctx context.Context, approval *compliance.Approval) error {
	// Guard in SQL as well: a terminal row is never overwritten.
	tag, err := r.db.Exec(ctx, `
		UPDATE compliance_approvals
		SET status = $2, reviewer_id = $3, notes = $4, reviewed_at = $5
		WHERE id = $1 AND status = 'pending'`,
		approval.ID,
		approval.Status.String(),
		nullable(approval.ReviewerID),
		nullable(approval.Notes),
		approval.ReviewedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to update approval").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrApprovalAlreadyFinal
	}
	return nil
}

func (r *ComplianceRepository) ListPendingApprovalsOlderThan(ctx context.Context, cutoff time.Time) ([]*compliance.Approval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, content_id, content_type, check_id, status,
			COALESCE(reviewer_id, ''), COALESCE(notes, ''), created_at, reviewed_at
		FROM compliance_approvals
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, errors.NewInternalError("failed to list pending approvals").WithCause(err)
	}
	defer rows.Close()

	var approvals []*compliance.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan approval").WithCause(err)
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}

func scanApproval(row pgx.Row) (*compliance.Approval, error) {
	var (
		approval    compliance.Approval
		contentType string
		status      string
	)
	err := row.Scan(
		&approval.ID,
		&approval.ContentID,
		&contentType,
		&approval.CheckID,
		&status,
		&approval.ReviewerID,
		&approval.Notes,
		&approval.CreatedAt,
		&approval.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	approval.ContentType = compliance.ContentType(contentType)
	approval.Status = compliance.ApprovalStatus(status)
	return &approval, nil
}
