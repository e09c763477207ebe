package leads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// LeadDTO is the lead shape nested in the team payload.
type LeadDTO struct {
	ID            uuid.UUID  `json:"id"`
	Company       string     `json:"company"`
	ContactPerson string     `json:"contact_person"`
	Email         string     `json:"email"`
	Phone         *string    `json:"phone,omitempty"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	AssignedToID  *uuid.UUID `json:"assigned_to,omitempty"`
	CreatedByID   uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	ModifiedAt    time.Time  `json:"modified_at"`
}

func FromModels(rows []models.Lead) []LeadDTO {
	out := make([]LeadDTO, 0, len(rows))
	for _, l := range rows {
		out = append(out, LeadDTO{
			ID:            l.ID,
			Company:       l.Company,
			ContactPerson: l.ContactPerson,
			Email:         l.Email,
			Phone:         l.Phone,
			Status:        string(l.Status),
			Priority:      string(l.Priority),
			AssignedToID:  l.AssignedToID,
			CreatedByID:   l.CreatedByID,
			CreatedAt:     l.CreatedAt,
			ModifiedAt:    l.ModifiedAt,
		})
	}
	return out
}
