package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

const (
	remoteCancelRetryJobName = "remote-cancel-retry"
	defaultBatchLimit        = 100
)

type cancelPendingLister interface {
	ListCancelPending(ctx context.Context, limit int) ([]models.Team, error)
}

type remoteCanceller interface {
	RetryRemoteCancel(ctx context.Context, team *models.Team) error
}

// RemoteCancelRetryJobParams configure the remote cancel retry job.
type RemoteCancelRetryJobParams struct {
	Logger     *logger.Logger
	Teams      cancelPendingLister
	Reconciler remoteCanceller
	Limit      int
}

type remoteCancelRetryJob struct {
	logg       *logger.Logger
	teams      cancelPendingLister
	reconciler remoteCanceller
	limit      int
}

// NewRemoteCancelRetryJob finishes provider cancellations that failed after
// the team was already moved back to Free.
func NewRemoteCancelRetryJob(params RemoteCancelRetryJobParams) (Job, error) {
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
	return &remoteCancelRetryJob{
		logg:       params.Logger,
		teams:      params.Teams,
		reconciler: params.Reconciler,
		limit:      limit,
	}, nil
}

func (j *remoteCancelRetryJob) Name() string { return remoteCancelRetryJobName }

func (j *remoteCancelRetryJob) Run(ctx context.Context) error {
	pending, err := j.teams.ListCancelPending(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list cancel pending teams: %w", err)
	}

	var errs error
	settled := 0
	for i := range pending {
		team := &pending[i]
		if err := j.reconciler.RetryRemoteCancel(ctx, team); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("team %s: %w", team.ID, err))
			continue
		}
		settled++
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(pending),
		"settled":    settled,
	}), "remote cancel retry finished")
	return errs
}
