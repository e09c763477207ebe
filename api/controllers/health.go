package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CRM-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency and reports 503 when any fails.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CRM-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}
		if !healthy {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency check failed").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
