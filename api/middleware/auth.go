package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/crm-backend/api/responses"
	pkgAuth "github.com/angelmondragon/crm-backend/pkg/auth"
	"github.com/angelmondragon/crm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the user id.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID.String()
			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
