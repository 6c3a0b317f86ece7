package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

// ReleaseRepository records blocked content cleared for dispatch. The
// dispatcher polls this table; the gate only ever flips content to
// released.
type ReleaseRepository struct {
	db *pgxpool.Pool
}

func NewReleaseRepository(db *pgxpool.Pool) *ReleaseRepository {
	return &ReleaseRepository{db: db}
}

func (r *ReleaseRepository) SetReleased(ctx context.Context, contentID, releasedBy string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO content_releases (content_id, released_by, released_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (content_id) DO NOTHING`,
		contentID, releasedBy)
	if err != nil {
		return errors.NewInternalError("failed to mark content released").WithCause(err)
	}
	return nil
}

// IsReleased reports whether content has been cleared.
func (r *ReleaseRepository) IsReleased(ctx context.Context, contentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM content_releases WHERE content_id = $1)`,
		contentID).Scan(&exists)
	if err != nil {
		return false, errors.NewInternalError("failed to check release state").WithCause(err)
	}
	return exists, nil
}
