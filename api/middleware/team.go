package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

// TeamResolver looks up the single team a user belongs to.
type TeamResolver interface {
	GetTeamForUser(ctx context.Context, userID uuid.UUID) (*models.Team, error)
}

// TeamContext resolves the caller's team once per request. Requests from
// users without a team are rejected with 404.
func TeamContext(resolver TeamResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := uuid.Parse(UserIDFromContext(r.Context()))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			team, err := resolver.GetTeamForUser(r.Context(), userID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithTeam(r.Context(), team)
			if logg != nil {
				ctx = logg.WithTeamID(ctx, team.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
