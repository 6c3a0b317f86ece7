package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
	auditsvc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
)

// NotificationRepository is the insert-only notification sink. Delivery
// and read-state live in another system; this subsystem only enqueues.
type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Notify(ctx context.Context, n auditsvc.Notification) error {
	payloadJSON, err := json.Marshal(n.Payload)
	if err != nil {
		return errors.NewInternalError("failed to marshal notification payload").WithCause(err)
	}

	recipients := n.RecipientIDs
	if len(recipients) == 0 {
		// Broadcast row; the delivery system fans out to the security group.
		recipients = []string{"security_team"}
	}

	batchErr := func() error {
		for _, recipient := range recipients {
			_, err := r.db.Exec(ctx, `
				INSERT INTO notifications (id, recipient_id, title, message, payload, created_at)
				VALUES ($1, $2, $3, $4, $5, NOW())`,
				uuid.New(), recipient, n.Title, n.Message, payloadJSON)
			if err != nil {
				return err
			}
		}
		return nil
	}()
	if batchErr != nil {
		return errors.NewInternalError("failed to insert notification").WithCause(batchErr)
	}
	return nil
}
