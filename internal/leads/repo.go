package leads

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// Repository reads leads and clients for a team. Writes live outside this
// service.
type Repository struct {
	repo.Base
}

// NewRepository binds the lead repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListByTeam returns a team's leads, newest first.
func (r *Repository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Lead, error) {
	var rows []models.Lead
	err := r.DB(ctx).
		Scopes(repo.TeamScope(teamID)).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByTeam returns the number of leads owned by teamID.
func (r *Repository) CountByTeam(ctx context.Context, teamID uuid.UUID) (int64, error) {
	return r.count(ctx, &models.Lead{}, teamID)
}

// CountClientsByTeam returns the number of clients owned by teamID.
func (r *Repository) CountClientsByTeam(ctx context.Context, teamID uuid.UUID) (int64, error) {
	return r.count(ctx, &models.Client{}, teamID)
}

func (r *Repository) count(ctx context.Context, model any, teamID uuid.UUID) (int64, error) {
	var total int64
	if err := r.DB(ctx).Model(model).Scopes(repo.TeamScope(teamID)).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
