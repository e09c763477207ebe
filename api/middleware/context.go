package middleware

import (
	"context"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxTeam   contextKey = "team"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// TeamFromContext returns the caller's team resolved by TeamContext.
func TeamFromContext(ctx context.Context) *models.Team {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxTeam).(*models.Team); ok {
		return v
	}
	return nil
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithTeam injects the resolved team for downstream handlers.
func WithTeam(ctx context.Context, team *models.Team) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTeam, team)
}
