package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step is one named unit of the production pipeline. Critical steps abort
// the run when their retry budget is exhausted; non-critical steps log the
// final failure and let the run continue.
type Step struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) error
}

// RetryPolicy is the uniform retry contract applied to every step: a fixed
// number of extra attempts with a fixed inter-attempt delay (no backoff),
// and a wall-clock budget per attempt.
type RetryPolicy struct {
	MaxRetries  int
	Delay       time.Duration
	StepTimeout time.Duration
}

const (
	defaultMaxRetries  = 2
	defaultRetryDelay  = 2 * time.Second
	defaultStepTimeout = 800 * time.Second
)

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.Delay <= 0 {
		p.Delay = defaultRetryDelay
	}
	if p.StepTimeout <= 0 {
		p.StepTimeout = defaultStepTimeout
	}
	return p
}

// RunStep executes a step under the retry policy. Context cancellation is
// honored between attempts and always surfaces, regardless of criticality,
// so a cancelled run leaves the campaign in its last-committed status.
func RunStep(ctx context.Context, logger *slog.Logger, policy RetryPolicy, step Step) error {
	logger = ResolveLogger(logger)
	policy = policy.normalized()
	attempts := policy.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, policy.StepTimeout)
		err := step.Run(stepCtx)
		cancel()

		if err == nil {
			logger.Info("pipeline step completed",
				"event", "pipeline_step_completed",
				"module", "newsletter-production/pipeline-service",
				"layer", "application",
				"step", step.Name,
				"attempt", attempt,
			)
			return nil
		}
		lastErr = err

		logger.Warn("pipeline step attempt failed",
			"event", "pipeline_step_attempt_failed",
			"module", "newsletter-production/pipeline-service",
			"layer", "application",
			"step", step.Name,
			"attempt", attempt,
			"attempts_allowed", attempts,
			"critical", step.Critical,
			"error", err.Error(),
		)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
	}

	if step.Critical {
		return fmt.Errorf("step %s: %w", step.Name, lastErr)
	}
	logger.Error("non-critical pipeline step abandoned",
		"event", "pipeline_step_abandoned",
		"module", "newsletter-production/pipeline-service",
		"layer", "application",
		"step", step.Name,
		"error", lastErr.Error(),
	)
	return nil
}
