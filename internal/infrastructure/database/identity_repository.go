package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
	auditsvc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
)

// IdentityRepository resolves actor display details from the users table.
// A missing user resolves to the unknown sentinel rather than an error so
// audit logging never stalls on identity.
type IdentityRepository struct {
	db *pgxpool.Pool
}

func NewIdentityRepository(db *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Lookup(ctx context.Context, actorID string) (auditsvc.Identity, error) {
	var identity auditsvc.Identity
	err := r.db.QueryRow(ctx,
		`SELECT email, role FROM users WHERE id = $1`,
		actorID).Scan(&identity.Email, &identity.Role)
	if err == pgx.ErrNoRows {
		return auditsvc.UnknownIdentity, nil
	}
	if err != nil {
		return auditsvc.Identity{}, errors.NewInternalError("failed to look up actor").WithCause(err)
	}
	return identity, nil
}
