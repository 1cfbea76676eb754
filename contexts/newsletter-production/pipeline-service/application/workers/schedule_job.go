package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "herald/contexts/newsletter-production/pipeline-service/application"
	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
	"herald/contexts/newsletter-production/pipeline-service/ports"
)

// ScheduleJob triggers the production pipeline for today's date. It is the
// cron-shaped entry point: a date whose campaign already reached draft or
// later is skipped, while a missing, processing, or failed campaign is
// (re)run — resumption is safe because setup is idempotent.
type ScheduleJob struct {
	Runner    application.Runner
	Campaigns ports.CampaignRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (j ScheduleJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}
	date := entities.DateOf(now)

	campaign, err := j.Campaigns.FindCampaignByDate(ctx, date)
	if err == nil {
		switch campaign.Status {
		case entities.CampaignStatusProcessing, entities.CampaignStatusFailed:
			// fall through and resume
		default:
			return nil
		}
	} else if !errors.Is(err, domainerrors.ErrCampaignNotFound) {
		return err
	}

	result, runErr := j.Runner.Run(ctx, "cron", date)
	if runErr != nil {
		logger.Error("scheduled pipeline run failed",
			"event", "pipeline_schedule_run_failed",
			"module", "newsletter-production/pipeline-service",
			"layer", "worker",
			"date", date,
			"campaign_id", result.CampaignID,
			"error", runErr.Error(),
		)
		return runErr
	}
	return nil
}
