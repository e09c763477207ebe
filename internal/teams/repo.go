package teams

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// Repository handles team and membership persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to team operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a team with its plan.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ?", id).
		First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// FindByMember loads the team userID belongs to.
func (r *Repository) FindByMember(ctx context.Context, userID uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).
		Preload("Plan").
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", userID).
		First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// FindByRemoteSubscriptionID loads the team linked to a provider subscription.
func (r *Repository) FindByRemoteSubscriptionID(ctx context.Context, subscriptionID string) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("remote_subscription_id = ?", subscriptionID).
		First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// ListCancelPending returns teams whose remote subscription deletion still
// has to be retried.
func (r *Repository) ListCancelPending(ctx context.Context, limit int) ([]models.Team, error) {
	var rows []models.Team
	q := r.db.WithContext(ctx).
		Where("remote_cancel_pending = ?", true).
		Order("updated_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListExpired returns active teams whose plan_end_date is before now.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Team, error) {
	var rows []models.Team
	q := r.db.WithContext(ctx).
		Where("plan_status = ?", enums.PlanStatusActive).
		Where("plan_end_date IS NOT NULL AND plan_end_date < ?", now).
		Order("plan_end_date asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListMemberIDs returns the user ids that belong to teamID.
func (r *Repository) ListMemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ?", teamID).
		Order("created_at asc").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateWithTx inserts a team row inside tx.
func (r *Repository) CreateWithTx(tx *gorm.DB, team *models.Team) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if team == nil {
		return fmt.Errorf("team is required")
	}
	return tx.Omit(clause.Associations).Create(team).Error
}

// AddMemberWithTx links userID to teamID inside tx. The unique index on
// team_members.user_id rejects users that already belong to a team.
func (r *Repository) AddMemberWithTx(tx *gorm.DB, teamID, userID uuid.UUID) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(&models.TeamMember{TeamID: teamID, UserID: userID}).Error
}

// UpdateVersioned writes the mutable team columns only when the stored
// version still equals team.Version. It reports whether the row was written
// and bumps team.Version on success.
func (r *Repository) UpdateVersioned(ctx context.Context, team *models.Team) (bool, error) {
	if team == nil {
		return false, fmt.Errorf("team is required")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ? AND version = ?", team.ID, team.Version).
		Updates(mutableColumns(team))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	team.Version++
	return true, nil
}

func mutableColumns(team *models.Team) map[string]any {
	return map[string]any{
		"name":                   team.Name,
		"plan_id":                nullableUUID(team.PlanID),
		"plan_status":            team.PlanStatus,
		"plan_end_date":          nullableTime(team.PlanEndDate),
		"remote_customer_id":     nullableString(team.RemoteCustomerID),
		"remote_subscription_id": nullableString(team.RemoteSubscriptionID),
		"remote_cancel_pending":  team.RemoteCancelPending,
		"version":                gorm.Expr("version + 1"),
		"updated_at":             time.Now().UTC(),
	}
}

func nullableUUID(v *uuid.UUID) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
