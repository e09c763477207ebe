package subscriptions

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// SessionRepository persists hosted checkout sessions.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository binds the checkout session repository to db.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a pending checkout session.
func (r *SessionRepository) Create(ctx context.Context, session *models.CheckoutSession) error {
	if session == nil {
		return fmt.Errorf("checkout session is required")
	}
	if session.Status == "" {
		session.Status = enums.CheckoutSessionStatusPending
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByRemoteID loads a session by the provider's session id.
func (r *SessionRepository) FindByRemoteID(ctx context.Context, remoteSessionID string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := r.db.WithContext(ctx).Where("remote_session_id = ?", remoteSessionID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkCompleted records the customer and subscription created by a finished
// checkout. It reports whether a pending row was updated.
func (r *SessionRepository) MarkCompleted(ctx context.Context, remoteSessionID, customerID, subscriptionID string) (bool, error) {
	updates := map[string]any{
		"status":       enums.CheckoutSessionStatusCompleted,
		"completed_at": time.Now().UTC(),
		"updated_at":   time.Now().UTC(),
	}
	if customerID != "" {
		updates["remote_customer_id"] = customerID
	}
	if subscriptionID != "" {
		updates["remote_subscription_id"] = subscriptionID
	}
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("remote_session_id = ? AND status = ?", remoteSessionID, enums.CheckoutSessionStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
