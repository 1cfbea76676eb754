package workers

import (
	"context"
	"log/slog"

	application "herald/contexts/newsletter-production/content-intake-service/application"
)

// IntakeJob runs one fetch-and-score cycle on the worker poll loop.
type IntakeJob struct {
	Service application.Service
	Logger  *slog.Logger
}

func (j IntakeJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	report, err := j.Service.FetchAndScore(ctx)
	if err != nil {
		logger.Error("intake cycle failed",
			"event", "intake_job_failed",
			"module", "newsletter-production/content-intake-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if report.PostsStored > 0 {
		logger.Info("intake cycle stored new posts",
			"event", "intake_job_completed",
			"module", "newsletter-production/content-intake-service",
			"layer", "worker",
			"posts_stored", report.PostsStored,
		)
	}
	return nil
}
