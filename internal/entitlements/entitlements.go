package entitlements

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// Resource names a plan-limited record type.
type Resource string

const (
	ResourceLeads   Resource = "leads"
	ResourceClients Resource = "clients"
)

// Limits are the caps derived from a plan. Zero means unlimited.
type Limits struct {
	PlanName   string `json:"plan"`
	MaxLeads   int    `json:"max_leads"`
	MaxClients int    `json:"max_clients"`
}

// Max returns the cap for resource and whether one applies.
func (l Limits) Max(resource Resource) (int, bool) {
	var limit int
	switch resource {
	case ResourceLeads:
		limit = l.MaxLeads
	case ResourceClients:
		limit = l.MaxClients
	default:
		return 0, false
	}
	return limit, limit > 0
}

// EffectivePlan is the plan whose limits apply to team: the assigned plan,
// or free when the team has none.
func EffectivePlan(team *models.Team, free *models.Plan) *models.Plan {
	if team != nil && team.Plan != nil {
		return team.Plan
	}
	return free
}

// LimitsFor reads the caps off plan.
func LimitsFor(plan *models.Plan) Limits {
	if plan == nil {
		return Limits{}
	}
	limits := Limits{PlanName: plan.Name}
	if plan.MaxLeads > 0 {
		limits.MaxLeads = plan.MaxLeads
	}
	if plan.MaxClients > 0 {
		limits.MaxClients = plan.MaxClients
	}
	return limits
}

type teamReader interface {
	GetTeamByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
}

type freePlanner interface {
	Free(ctx context.Context) (*models.Plan, error)
}

type usageCounter interface {
	CountByTeam(ctx context.Context, teamID uuid.UUID) (int64, error)
	CountClientsByTeam(ctx context.Context, teamID uuid.UUID) (int64, error)
}

// Service enforces plan limits for team-scoped writes.
type Service struct {
	teams   teamReader
	plans   freePlanner
	counter usageCounter
}

// NewService wires the entitlement checker.
func NewService(teams teamReader, plans freePlanner, counter usageCounter) (*Service, error) {
	if teams == nil {
		return nil, fmt.Errorf("team reader required")
	}
	if plans == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	if counter == nil {
		return nil, fmt.Errorf("usage counter required")
	}
	return &Service{teams: teams, plans: plans, counter: counter}, nil
}

// Limits resolves the caps currently applying to teamID.
func (s *Service) Limits(ctx context.Context, teamID uuid.UUID) (Limits, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return Limits{}, err
	}
	free, err := s.plans.Free(ctx)
	if err != nil {
		return Limits{}, err
	}
	return LimitsFor(EffectivePlan(team, free)), nil
}

// Check fails with CodeForbidden when adding n records of resource would
// exceed the team's plan.
func (s *Service) Check(ctx context.Context, teamID uuid.UUID, resource Resource, n int) error {
	if n <= 0 {
		return nil
	}
	limits, err := s.Limits(ctx, teamID)
	if err != nil {
		return err
	}
	limit, capped := limits.Max(resource)
	if !capped {
		return nil
	}

	var current int64
	switch resource {
	case ResourceLeads:
		current, err = s.counter.CountByTeam(ctx, teamID)
	case ResourceClients:
		current, err = s.counter.CountClientsByTeam(ctx, teamID)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("count %s", resource))
	}
	if current+int64(n) > int64(limit) {
		return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("plan %s allows at most %d %s", limits.PlanName, limit, resource)).
			WithDetails(map[string]any{
				"resource": string(resource),
				"limit":    limit,
				"current":  current,
			})
	}
	return nil
}
