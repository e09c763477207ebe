package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/entitlements"
	"github.com/angelmondragon/crm-backend/internal/leads"
	"github.com/angelmondragon/crm-backend/internal/plans"
	"github.com/angelmondragon/crm-backend/internal/users"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

const defaultMutateAttempts = 3

// ErrUnchanged may be returned from a Mutate callback to skip the write.
var ErrUnchanged = errors.New("team unchanged")

type teamRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	FindByMember(ctx context.Context, userID uuid.UUID) (*models.Team, error)
	FindByRemoteSubscriptionID(ctx context.Context, subscriptionID string) (*models.Team, error)
	ListCancelPending(ctx context.Context, limit int) ([]models.Team, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Team, error)
	ListMemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
	CreateWithTx(tx *gorm.DB, team *models.Team) error
	AddMemberWithTx(tx *gorm.DB, teamID, userID uuid.UUID) error
	UpdateVersioned(ctx context.Context, team *models.Team) (bool, error)
}

type usersRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

type leadsRepository interface {
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Lead, error)
}

type planCatalog interface {
	Free(ctx context.Context) (*models.Plan, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes team reads, membership changes, and the versioned write
// path used by billing.
type Service interface {
	GetTeamForUser(ctx context.Context, userID uuid.UUID) (*models.Team, error)
	GetTeamByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	GetTeamByRemoteSubscriptionID(ctx context.Context, subscriptionID string) (*models.Team, error)
	Save(ctx context.Context, team *models.Team) error
	Mutate(ctx context.Context, id uuid.UUID, fn func(team *models.Team) error) (*models.Team, error)
	Create(ctx context.Context, name string, creatorID uuid.UUID) (*models.Team, error)
	AddMember(ctx context.Context, teamID uuid.UUID, email string) (*models.User, error)
	ListCancelPending(ctx context.Context, limit int) ([]models.Team, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Team, error)
	Detail(ctx context.Context, team *models.Team) (*TeamDTO, error)
}

// ServiceParams groups dependencies for the team service.
type ServiceParams struct {
	Repo        teamRepository
	Users       usersRepository
	Leads       leadsRepository
	Plans       planCatalog
	Tx          txRunner
	MaxAttempts int
}

type service struct {
	repo        teamRepository
	users       usersRepository
	leads       leadsRepository
	plans       planCatalog
	tx          txRunner
	maxAttempts int
}

// NewService builds a team service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("team repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Leads == nil {
		return nil, fmt.Errorf("leads repository required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMutateAttempts
	}
	return &service{
		repo:        params.Repo,
		users:       params.Users,
		leads:       params.Leads,
		plans:       params.Plans,
		tx:          params.Tx,
		maxAttempts: attempts,
	}, nil
}

func (s *service) GetTeamForUser(ctx context.Context, userID uuid.UUID) (*models.Team, error) {
	team, err := s.repo.FindByMember(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "team not found for user", "load team for user")
	}
	return team, nil
}

func (s *service) GetTeamByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	team, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "team not found", "load team")
	}
	return team, nil
}

func (s *service) GetTeamByRemoteSubscriptionID(ctx context.Context, subscriptionID string) (*models.Team, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription id is empty")
	}
	team, err := s.repo.FindByRemoteSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, notFoundOr(err, "no team for subscription", "load team by subscription")
	}
	return team, nil
}

// Save persists team in a single guarded update. It fails with CodeConflict
// when the row changed after team was read.
func (s *service) Save(ctx context.Context, team *models.Team) error {
	if team == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "team is required")
	}
	ok, err := s.repo.UpdateVersioned(ctx, team)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update team")
	}
	if !ok {
		return conflictError(team.ID)
	}
	return nil
}

// Mutate re-reads the team, applies fn and writes it back under the version
// guard, retrying when a concurrent writer got there first.
func (s *service) Mutate(ctx context.Context, id uuid.UUID, fn func(team *models.Team) error) (*models.Team, error) {
	if fn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mutation is required")
	}
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		team, err := s.GetTeamByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(team); err != nil {
			if errors.Is(err, ErrUnchanged) {
				return team, nil
			}
			return nil, err
		}
		ok, err := s.repo.UpdateVersioned(ctx, team)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update team")
		}
		if ok {
			return s.GetTeamByID(ctx, id)
		}
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update team")
		}
	}
	return nil, conflictError(id)
}

// Create makes name a new team owned by creatorID on the Free plan. The
// creator joins immediately.
func (s *service) Create(ctx context.Context, name string, creatorID uuid.UUID) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "team name is required")
	}
	free, err := s.plans.Free(ctx)
	if err != nil {
		return nil, err
	}

	team := &models.Team{
		Name:        name,
		CreatedByID: creatorID,
		PlanID:      &free.ID,
		PlanStatus:  enums.PlanStatusCancelled,
		Version:     1,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateWithTx(tx, team); err != nil {
			return err
		}
		return s.repo.AddMemberWithTx(tx, team.ID, creatorID)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user already belongs to a team")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create team")
	}
	return s.GetTeamByID(ctx, team.ID)
}

// AddMember adds the user registered under email to teamID.
func (s *service) AddMember(ctx context.Context, teamID uuid.UUID, email string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	user, err := s.users.FindByUsername(ctx, email)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "load user")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.AddMemberWithTx(tx, teamID, user.ID)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user already belongs to a team").
				WithDetails(map[string]any{"email": email})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add team member")
	}
	return user, nil
}

func (s *service) ListCancelPending(ctx context.Context, limit int) ([]models.Team, error) {
	rows, err := s.repo.ListCancelPending(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cancel pending teams")
	}
	return rows, nil
}

func (s *service) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Team, error) {
	rows, err := s.repo.ListExpired(ctx, now, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired teams")
	}
	return rows, nil
}

// Detail assembles the team payload with members, leads and limits.
func (s *service) Detail(ctx context.Context, team *models.Team) (*TeamDTO, error) {
	if team == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}
	memberIDs, err := s.repo.ListMemberIDs(ctx, team.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list team members")
	}
	members, err := s.users.ListByIDs(ctx, memberIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load team members")
	}
	leadRows, err := s.leads.ListByTeam(ctx, team.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list team leads")
	}
	free, err := s.plans.Free(ctx)
	if err != nil {
		return nil, err
	}

	dto := &TeamDTO{
		ID:              team.ID,
		Name:            team.Name,
		Members:         make([]users.UserDTO, 0, len(members)),
		Leads:           leads.FromModels(leadRows),
		Plan:            plans.FromModel(team.Plan),
		PlanStatus:      string(team.PlanStatus),
		HasSubscription: team.HasRemoteSubscription(),
		CancelPending:   team.RemoteCancelPending,
		Limits:          entitlements.LimitsFor(entitlements.EffectivePlan(team, free)),
	}
	if team.IsActive() {
		dto.PlanEndDate = team.PlanEndDate
	}
	for i := range members {
		member := users.FromModel(&members[i])
		dto.Members = append(dto.Members, *member)
		if members[i].ID == team.CreatedByID {
			dto.CreatedBy = member
		}
	}
	if dto.CreatedBy == nil {
		creator, err := s.users.FindByID(ctx, team.CreatedByID)
		if err != nil && !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load team creator")
		}
		dto.CreatedBy = users.FromModel(creator)
	}
	return dto, nil
}

func conflictError(teamID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "team was modified concurrently").
		WithDetails(map[string]any{"team_id": teamID.String()})
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, internalMsg)
}
