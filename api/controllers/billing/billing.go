package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/api/controllers/teamcontext"
	teamctl "github.com/angelmondragon/crm-backend/api/controllers/teams"
	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/api/validators"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

// Reconciler is the billing surface the HTTP layer drives.
type Reconciler interface {
	StartUpgrade(ctx context.Context, team *models.Team, key enums.PlanKey) (string, error)
	ConfirmSession(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
	CancelPlan(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,plankey"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
}

type pubKeyResponse struct {
	PubKey string `json:"pub_key"`
}

// PublishableKey exposes the Stripe publishable key to the frontend.
func PublishableKey(pubKey string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pubKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe publishable key not configured"))
			return
		}
		responses.WriteSuccess(w, pubKeyResponse{PubKey: pubKey})
	}
}

// CreateCheckoutSession opens a hosted checkout for a paid plan.
func CreateCheckoutSession(rec Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teamcontext.ResolveTeam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := enums.ParsePlanKey(payload.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}
		sessionID, err := rec.StartUpgrade(r.Context(), team, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutResponse{SessionID: sessionID})
	}
}

// CheckSession confirms the team's subscription after checkout and returns
// the updated team.
func CheckSession(teams teamctl.TeamReader, rec Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teamcontext.ResolveTeam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := rec.ConfirmSession(r.Context(), team.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		teamctl.WriteTeam(r.Context(), w, teams, team.ID, http.StatusOK, logg)
	}
}

// CancelPlan moves the team back to Free. When the provider deletion fails
// the response is 503 and carries the already-cancelled team in its details.
func CancelPlan(teams teamctl.TeamReader, rec Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teamcontext.ResolveTeam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cancelled, err := rec.CancelPlan(r.Context(), team.ID)
		if err != nil {
			if cancelled == nil || !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			details := map[string]any{"remote_cancel_pending": true}
			if reloaded, loadErr := teams.GetTeamByID(r.Context(), team.ID); loadErr == nil {
				if dto, dtoErr := teams.Detail(r.Context(), reloaded); dtoErr == nil {
					details["team"] = dto
				}
			}
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "plan cancelled locally; billing provider cancellation pending").WithDetails(details))
			return
		}
		teamctl.WriteTeam(r.Context(), w, teams, team.ID, http.StatusOK, logg)
	}
}
