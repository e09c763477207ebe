package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// CheckoutSession records a hosted checkout started for a team.
type CheckoutSession struct {
	ID                   uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	TeamID               uuid.UUID                   `gorm:"column:team_id;type:uuid;not null;index"`
	RemoteSessionID      string                      `gorm:"column:remote_session_id;type:text;not null;uniqueIndex"`
	PlanKey              enums.PlanKey               `gorm:"column:plan_key;type:text;not null"`
	Status               enums.CheckoutSessionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RemoteCustomerID     *string                     `gorm:"column:remote_customer_id;type:text"`
	RemoteSubscriptionID *string                     `gorm:"column:remote_subscription_id;type:text"`
	CompletedAt          *time.Time                  `gorm:"column:completed_at"`
	CreatedAt            time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
