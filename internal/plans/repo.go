package plans

import (
	"context"
	"fmt"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and seeds plan reference rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to plan operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByName loads the plan whose name matches exactly.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByID loads a plan by primary key.
func (r *Repository) FindByID(ctx context.Context, id any) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns every plan ordered by price.
func (r *Repository) List(ctx context.Context) ([]models.Plan, error) {
	var rows []models.Plan
	if err := r.db.WithContext(ctx).Order("price asc").Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert inserts or refreshes a plan keyed by its catalog key.
func (r *Repository) Upsert(ctx context.Context, plan *models.Plan) error {
	if plan == nil {
		return fmt.Errorf("plan is required")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "max_leads", "max_clients", "price", "remote_price_id", "updated_at"}),
		}).
		Create(plan).Error
}
