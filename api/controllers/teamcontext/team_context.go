package teamcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/api/middleware"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// ResolveTeam returns the team resolved by middleware.TeamContext.
func ResolveTeam(r *http.Request) (*models.Team, error) {
	team := middleware.TeamFromContext(r.Context())
	if team == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "team context required")
	}
	return team, nil
}

// ResolveUserID returns the authenticated caller.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
