package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/orderdesk/orderdesk-backend/internal/ingest"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
)

// UnassignedSweepJobName labels the sweep in logs and metrics.
const UnassignedSweepJobName = "unassigned-sweep"

const defaultSweepBatchSize = 100

type unassignedSweeper interface {
	AssignUnassigned(ctx context.Context, trigger string, limit int) (ingest.BatchResult, error)
}

// UnassignedSweepJobParams configure the sweep.
type UnassignedSweepJobParams struct {
	Logger    *logger.Logger
	Assigner  unassignedSweeper
	BatchSize int
}

type unassignedSweepJob struct {
	logg      *logger.Logger
	assigner  unassignedSweeper
	batchSize int
}

// NewUnassignedSweepJob builds the job that retries open orders without an owner.
func NewUnassignedSweepJob(params UnassignedSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assigner == nil {
		return nil, fmt.Errorf("assignment service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &unassignedSweepJob{
		logg:      params.Logger,
		assigner:  params.Assigner,
		batchSize: batch,
	}, nil
}

func (j *unassignedSweepJob) Name() string { return UnassignedSweepJobName }

// Run assigns one batch. Per-order failures do not stop the batch; they are
// combined into the returned error so the cycle is recorded as failed.
func (j *unassignedSweepJob) Run(ctx context.Context) error {
	res, err := j.assigner.AssignUnassigned(ctx, ingest.TriggerSweep, j.batchSize)
	if err != nil {
		return fmt.Errorf("sweep unassigned orders: %w", err)
	}

	var errs error
	for _, r := range res.Results {
		if r.Outcome != enums.AssignmentOutcomeFailed {
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("order %s: %s", r.OrderNumber, r.Error))
	}

	ctx = j.logg.WithFields(ctx, map[string]any{
		"processed":    len(res.Results),
		"assigned":     res.Summary[enums.AssignmentOutcomeAssigned],
		"unassignable": res.Summary[enums.AssignmentOutcomeUnassignable],
		"failed":       res.Summary[enums.AssignmentOutcomeFailed],
	})
	if len(res.Results) == 0 {
		j.logg.Debug(ctx, "no unassigned orders")
		return nil
	}
	if res.Summary[enums.AssignmentOutcomeUnassignable] > 0 {
		j.logg.Warn(ctx, "orders remain unassignable after sweep")
	} else {
		j.logg.Info(ctx, "unassigned sweep complete")
	}
	return errs
}
