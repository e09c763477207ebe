package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// Team is the billing tenant. Entitlement columns are only written through
// the version-guarded update in the teams repository.
type Team struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string           `gorm:"column:name;type:text;not null"`
	CreatedByID          uuid.UUID        `gorm:"column:created_by;type:uuid;not null"`
	PlanID               *uuid.UUID       `gorm:"column:plan_id;type:uuid"`
	Plan                 *Plan            `gorm:"foreignKey:PlanID"`
	PlanStatus           enums.PlanStatus `gorm:"column:plan_status;type:text;not null;default:'cancelled'"`
	PlanEndDate          *time.Time       `gorm:"column:plan_end_date"`
	RemoteCustomerID     *string          `gorm:"column:remote_customer_id;type:text"`
	RemoteSubscriptionID *string          `gorm:"column:remote_subscription_id;type:text;index"`
	RemoteCancelPending  bool             `gorm:"column:remote_cancel_pending;not null;default:false"`
	Version              int64            `gorm:"column:version;not null;default:1"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsActive reports whether the paid plan is currently in force.
func (t *Team) IsActive() bool {
	return t != nil && t.PlanStatus == enums.PlanStatusActive
}

// HasRemoteSubscription reports whether a provider subscription is linked.
func (t *Team) HasRemoteSubscription() bool {
	return t != nil && t.RemoteSubscriptionID != nil && *t.RemoteSubscriptionID != ""
}

// TeamMember links a user to the single team they belong to.
type TeamMember struct {
	TeamID    uuid.UUID `gorm:"column:team_id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey;uniqueIndex:idx_team_members_user"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
