package teams

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/internal/entitlements"
	"github.com/angelmondragon/crm-backend/internal/leads"
	"github.com/angelmondragon/crm-backend/internal/plans"
	"github.com/angelmondragon/crm-backend/internal/users"
)

// TeamDTO is the payload returned by every team and billing endpoint.
type TeamDTO struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	Members         []users.UserDTO     `json:"members"`
	CreatedBy       *users.UserDTO      `json:"created_by"`
	Leads           []leads.LeadDTO     `json:"leads"`
	Plan            *plans.PlanDTO      `json:"plan"`
	PlanStatus      string              `json:"plan_status"`
	PlanEndDate     *time.Time          `json:"plan_end_date"`
	HasSubscription bool                `json:"has_subscription"`
	CancelPending   bool                `json:"cancel_pending"`
	Limits          entitlements.Limits `json:"limits"`
}
