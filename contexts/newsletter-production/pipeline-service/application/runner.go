package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
	"herald/contexts/newsletter-production/pipeline-service/ports"
)

// Config holds the pipeline tuning knobs.
type Config struct {
	MaxActiveArticles int           // articles activated per campaign
	CandidateCap      int           // candidate pool truncation
	IngestLookback    time.Duration // freshness window for scored posts
	DedupLookbackDays int           // history window for the dedup index
	Retry             RetryPolicy
}

func (c Config) normalized() Config {
	if c.MaxActiveArticles <= 0 {
		c.MaxActiveArticles = 5
	}
	if c.CandidateCap <= 0 {
		c.CandidateCap = 20
	}
	if c.IngestLookback <= 0 {
		c.IngestLookback = 24 * time.Hour
	}
	if c.DedupLookbackDays <= 0 {
		c.DedupLookbackDays = 30
	}
	return c
}

// Runner executes the fixed step sequence that produces one date's campaign.
// Steps run strictly sequentially; concurrency exists only across runs for
// different dates and is serialized by the unique-per-date constraint.
type Runner struct {
	Campaigns ports.CampaignRepository
	Posts     ports.PostRepository
	Articles  ports.ArticleRepository
	Auxiliary ports.AuxiliaryRepository
	Generator ports.ContentGenerator
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Config    Config
	Logger    *slog.Logger
}

type RunResult struct {
	CampaignID string
	Success    bool
}

// runState carries step outputs within a single run. Steps re-read durable
// state from the store where correctness depends on it, so a resumed run
// never trusts stale in-memory data from a previous process.
type runState struct {
	trigger    string
	date       string
	campaignID string
	candidates []entities.Post
	survivors  []entities.Post
	active     int
}

// Run produces a finalized campaign for the date. It is idempotent with
// respect to date: re-invocation after a partial failure resumes the
// existing campaign rather than creating a duplicate.
func (r Runner) Run(ctx context.Context, trigger string, date string) (RunResult, error) {
	logger := ResolveLogger(r.Logger)
	cfg := r.Config.normalized()

	normalized, ok := entities.NormalizeDate(date)
	if !ok {
		return RunResult{}, domainerrors.ErrInvalidDate
	}

	state := &runState{trigger: trigger, date: normalized}
	logger.Info("pipeline run starting",
		"event", "pipeline_run_starting",
		"module", "newsletter-production/pipeline-service",
		"layer", "application",
		"trigger", trigger,
		"date", normalized,
	)

	for _, step := range r.steps(cfg, state) {
		if err := RunStep(ctx, logger, cfg.Retry, step); err != nil {
			r.markFailed(ctx, logger, state.campaignID)
			logger.Error("pipeline run aborted",
				"event", "pipeline_run_aborted",
				"module", "newsletter-production/pipeline-service",
				"layer", "application",
				"date", normalized,
				"step", step.Name,
				"campaign_id", state.campaignID,
				"error", err.Error(),
			)
			return RunResult{CampaignID: state.campaignID}, err
		}
	}

	logger.Info("pipeline run completed",
		"event", "pipeline_run_completed",
		"module", "newsletter-production/pipeline-service",
		"layer", "application",
		"date", normalized,
		"campaign_id", state.campaignID,
		"active_articles", state.active,
	)
	return RunResult{CampaignID: state.campaignID, Success: true}, nil
}

// steps is the canonical ordered step sequence. Order is load-bearing:
// deduplication runs before assignment so a post is never transiently
// attached to two campaigns, and finalization runs after selection so the
// leftover sweep sees the final article set.
func (r Runner) steps(cfg Config, state *runState) []Step {
	return []Step{
		{Name: "setup", Critical: true, Run: func(ctx context.Context) error {
			return r.setup(ctx, state)
		}},
		{Name: "ingest_candidates", Critical: true, Run: func(ctx context.Context) error {
			return r.ingestCandidates(ctx, cfg, state)
		}},
		{Name: "dedupe_candidates", Critical: true, Run: func(ctx context.Context) error {
			return r.dedupeCandidates(ctx, cfg, state)
		}},
		{Name: "assign_posts", Critical: true, Run: func(ctx context.Context) error {
			return r.assignPosts(ctx, state)
		}},
		{Name: "generate_articles", Critical: true, Run: func(ctx context.Context) error {
			return r.generateArticles(ctx, state)
		}},
		{Name: "select_top_articles", Critical: true, Run: func(ctx context.Context) error {
			return r.selectTopArticles(ctx, cfg, state)
		}},
		{Name: "populate_events", Critical: false, Run: func(ctx context.Context) error {
			return r.populateEvents(ctx, state)
		}},
		{Name: "populate_hero_image", Critical: false, Run: func(ctx context.Context) error {
			return r.populateHeroImage(ctx, state)
		}},
		{Name: "generate_subject", Critical: true, Run: func(ctx context.Context) error {
			return r.generateSubject(ctx, state)
		}},
		{Name: "populate_sections", Critical: false, Run: func(ctx context.Context) error {
			return r.populateSections(ctx, state)
		}},
		{Name: "finalize", Critical: true, Run: func(ctx context.Context) error {
			return r.finalize(ctx, state)
		}},
		{Name: "notify_complete", Critical: false, Run: func(ctx context.Context) error {
			return r.notifyComplete(ctx, state)
		}},
	}
}

// StepNames exposes the declared order for operability and tests.
func (r Runner) StepNames() []string {
	steps := r.steps(r.Config.normalized(), &runState{})
	names := make([]string, 0, len(steps))
	for _, step := range steps {
		names = append(names, step.Name)
	}
	return names
}

func (r Runner) markFailed(ctx context.Context, logger *slog.Logger, campaignID string) {
	if campaignID == "" {
		return
	}
	if err := r.Campaigns.UpdateCampaignStatus(ctx, campaignID, entities.CampaignStatusFailed); err != nil {
		logger.Warn("could not mark campaign failed",
			"event", "pipeline_mark_failed_failed",
			"module", "newsletter-production/pipeline-service",
			"layer", "application",
			"campaign_id", campaignID,
			"error", err.Error(),
		)
	}
}

func (r Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func errIsNotFound(err error) bool {
	return errors.Is(err, domainerrors.ErrCampaignNotFound)
}
