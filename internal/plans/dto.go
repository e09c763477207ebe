package plans

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// PlanDTO is the public plan shape.
type PlanDTO struct {
	ID         uuid.UUID `json:"id"`
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	MaxLeads   int       `json:"max_leads"`
	MaxClients int       `json:"max_clients"`
	Price      int       `json:"price"`
}

func FromModel(p *models.Plan) *PlanDTO {
	if p == nil {
		return nil
	}
	return &PlanDTO{
		ID:         p.ID,
		Key:        string(p.Key),
		Name:       p.Name,
		MaxLeads:   p.MaxLeads,
		MaxClients: p.MaxClients,
		Price:      p.Price,
	}
}

func FromModels(rows []models.Plan) []PlanDTO {
	out := make([]PlanDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
