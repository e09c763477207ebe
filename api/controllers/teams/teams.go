package teams

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/api/controllers/teamcontext"
	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/api/validators"
	"github.com/angelmondragon/crm-backend/internal/entitlements"
	"github.com/angelmondragon/crm-backend/internal/plans"
	teamsvc "github.com/angelmondragon/crm-backend/internal/teams"
	"github.com/angelmondragon/crm-backend/internal/users"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

const maxTeamNameLength = 120

// TeamReader loads a team and renders its payload.
type TeamReader interface {
	GetTeamByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	Detail(ctx context.Context, team *models.Team) (*teamsvc.TeamDTO, error)
}

type teamWriter interface {
	TeamReader
	Create(ctx context.Context, name string, creatorID uuid.UUID) (*models.Team, error)
	AddMember(ctx context.Context, teamID uuid.UUID, email string) (*models.User, error)
}

type planUpgrader interface {
	UpgradePlan(ctx context.Context, teamID uuid.UUID, key enums.PlanKey) (*models.Team, error)
}

type planLister interface {
	List(ctx context.Context) ([]models.Plan, error)
}

type entitlementChecker interface {
	Limits(ctx context.Context, teamID uuid.UUID) (entitlements.Limits, error)
	Check(ctx context.Context, teamID uuid.UUID, resource entitlements.Resource, n int) error
}

type createTeamRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type upgradePlanRequest struct {
	Plan string `json:"plan" validate:"required,plankey"`
}

// WriteTeam reloads the team and writes its detail payload with status.
func WriteTeam(ctx context.Context, w http.ResponseWriter, svc TeamReader, teamID uuid.UUID, status int, logg *logger.Logger) {
	team, err := svc.GetTeamByID(ctx, teamID)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	dto, err := svc.Detail(ctx, team)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, status, dto)
}

// GetMyTeam returns the caller's team with members, leads, plan and limits.
func GetMyTeam(svc TeamReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teamcontext.ResolveTeam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Detail(r.Context(), team)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CreateTeam creates a team on the Free plan with the caller as its first member.
func CreateTeam(svc teamWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := teamcontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createTeamRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		name := validators.SanitizeString(payload.Name, maxTeamNameLength)
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "team name is required"))
			return
		}
		team, err := svc.Create(r.Context(), name, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		WriteTeam(r.Context(), w, svc, team.ID, http.StatusCreated, logg)
	}
}

// AddMember adds an existing user, looked up by email, to the caller's team.
func AddMember(svc teamWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teamcontext.ResolveTeam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addMemberRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.AddMember(r.Context(), team.ID, payload.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"success": true, "member": users.FromModel(user)})
	}
}

// UpgradePlan assigns a plan by key without going through checkout.
func UpgradePlan(svc TeamReader, upgrader planUpgrader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teamcontext.ResolveTeam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload upgradePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := enums.ParsePlanKey(payload.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}
		if _, err := upgrader.UpgradePlan(r.Context(), team.ID, key); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		WriteTeam(r.Context(), w, svc, team.ID, http.StatusOK, logg)
	}
}

// ListPlans returns the plan catalog ordered by price.
func ListPlans(catalog planLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := catalog.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plans.FromModels(rows))
	}
}

// CheckEntitlement reports whether the team may add count more records of
// the given resource. Exceeding the plan limit yields 403.
func CheckEntitlement(checker entitlementChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teamcontext.ResolveTeam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		raw, err := validators.ParseQueryEnum(r, "resource", string(entitlements.ResourceLeads), string(entitlements.ResourceClients))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resource := entitlements.Resource(raw)
		count, err := validators.ParseQueryInt(r, "count", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := checker.Check(r.Context(), team.ID, resource, count); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limits, err := checker.Limits(r.Context(), team.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"allowed": true, "resource": resource, "limits": limits})
	}
}
