package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

const planExpiryJobName = "plan-expiry"

type expiredLister interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Team, error)
}

type expiryRefresher interface {
	RefreshExpiredPlan(ctx context.Context, team *models.Team) error
}

// PlanExpiryJobParams configure the plan expiry job.
type PlanExpiryJobParams struct {
	Logger     *logger.Logger
	Teams      expiredLister
	Reconciler expiryRefresher
	Limit      int
	Now        func() time.Time
}

type planExpiryJob struct {
	logg       *logger.Logger
	teams      expiredLister
	reconciler expiryRefresher
	limit      int
	now        func() time.Time
}

// NewPlanExpiryJob re-checks active teams whose plan end date has passed, in
// case a renewal or deletion webhook never arrived.
func NewPlanExpiryJob(params PlanExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Teams == nil {
		return nil, fmt.Errorf("team lister required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &planExpiryJob{
		logg:       params.Logger,
		teams:      params.Teams,
		reconciler: params.Reconciler,
		limit:      limit,
		now:        now,
	}, nil
}

func (j *planExpiryJob) Name() string { return planExpiryJobName }

func (j *planExpiryJob) Run(ctx context.Context) error {
	expired, err := j.teams.ListExpired(ctx, j.now().UTC(), j.limit)
	if err != nil {
		return fmt.Errorf("list expired teams: %w", err)
	}

	var errs error
	for i := range expired {
		team := &expired[i]
		if err := j.reconciler.RefreshExpiredPlan(ctx, team); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("team %s: %w", team.ID, err))
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(expired),
		"failed":     len(multierr.Errors(errs)),
	}), "plan expiry sweep finished")
	return errs
}
