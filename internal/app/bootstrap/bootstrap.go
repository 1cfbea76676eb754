package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	intake "herald/contexts/newsletter-production/content-intake-service"
	intakepostgres "herald/contexts/newsletter-production/content-intake-service/adapters/postgres"
	rssadapter "herald/contexts/newsletter-production/content-intake-service/adapters/rss"
	intakeworkers "herald/contexts/newsletter-production/content-intake-service/application/workers"
	pipeline "herald/contexts/newsletter-production/pipeline-service"
	postgresadapter "herald/contexts/newsletter-production/pipeline-service/adapters/postgres"
	"herald/contexts/newsletter-production/pipeline-service/application"
	workerapp "herald/contexts/newsletter-production/pipeline-service/application/workers"
	"herald/internal/platform/cache"
	"herald/internal/platform/config"
	"herald/internal/platform/db"
	"herald/internal/platform/httpserver"
	"herald/internal/platform/llm"
	"herald/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	seen     *cache.RedisSeenCache
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres  *db.Postgres
	seen      *cache.RedisSeenCache
	relay     workerapp.OutboxRelay
	schedule  workerapp.ScheduleJob
	intakeJob intakeworkers.IntakeJob

	enableRelay    bool
	enableSchedule bool
	enableIntake   bool

	pollInterval     time.Duration
	scheduleInterval time.Duration
	intakeInterval   time.Duration
	logger           *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	seen, err := cache.ConnectSeenCache(cfg.RedisAddr)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	anthropicClient := llm.NewAnthropicClient(cfg.AnthropicAPIKey)

	pipelineModule, intakeModule := buildModules(cfg, pg, seen, anthropicClient, logger)

	server := httpserver.New(pipelineModule, intakeModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		seen:     seen,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	seen, err := cache.ConnectSeenCache(cfg.RedisAddr)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	anthropicClient := llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	bus := messaging.NewBus(logger)

	pipelineModule, intakeModule := buildModules(cfg, pg, seen, anthropicClient, logger)
	repo := postgresadapter.NewRepository(pg.DB, logger)

	return &WorkerApp{
		postgres: pg,
		seen:     seen,
		relay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		schedule: workerapp.ScheduleJob{
			Runner:    pipelineModule.Runner,
			Campaigns: repo,
			Clock:     postgresadapter.SystemClock{},
			Logger:    logger,
		},
		intakeJob: intakeworkers.IntakeJob{
			Service: intakeModule.Service,
			Logger:  logger,
		},
		enableRelay:      cfg.EnableOutboxRelay,
		enableSchedule:   cfg.EnableScheduleJob,
		enableIntake:     cfg.EnableIntakeJob,
		pollInterval:     2 * time.Second,
		scheduleInterval: time.Minute,
		intakeInterval:   15 * time.Minute,
		logger:           logger,
	}, nil
}

func buildModules(
	cfg config.Config,
	pg *db.Postgres,
	seen *cache.RedisSeenCache,
	anthropicClient *llm.AnthropicClient,
	logger *slog.Logger,
) (pipeline.Module, intake.Module) {
	repo := postgresadapter.NewRepository(pg.DB, logger)
	pipelineModule := pipeline.NewModule(pipeline.Dependencies{
		Campaigns: repo,
		Posts:     repo,
		Articles:  repo,
		Auxiliary: repo,
		Generator: anthropicClient,
		Outbox:    repo,
		Clock:     postgresadapter.SystemClock{},
		IDGen:     postgresadapter.UUIDGenerator{},
		Config: application.Config{
			MaxActiveArticles: cfg.MaxActiveArticles,
			CandidateCap:      cfg.CandidateCap,
			IngestLookback:    cfg.IngestLookback,
			DedupLookbackDays: cfg.DedupLookbackDays,
		},
		Logger: logger,
	})

	intakeRepo := intakepostgres.NewRepository(pg.DB, logger)
	intakeModule := intake.NewModule(intake.Dependencies{
		Parser:   rssadapter.NewParser(),
		Scorer:   anthropicClient,
		Posts:    intakeRepo,
		Seen:     seen,
		Clock:    intakepostgres.SystemClock{},
		IDGen:    intakepostgres.UUIDGenerator{},
		FeedURLs: cfg.FeedURLs,
		Logger:   logger,
	})
	return pipelineModule, intakeModule
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.seen != nil {
		_ = a.seen.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	var lastSchedule, lastIntake time.Time
	for {
		if w.enableRelay {
			if err := w.relay.RunOnce(ctx); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if w.enableSchedule && now.Sub(lastSchedule) >= w.scheduleInterval {
			lastSchedule = now
			// A failed run stays resumable; the next interval retries it.
			if err := w.schedule.RunOnce(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if w.enableIntake && now.Sub(lastIntake) >= w.intakeInterval {
			lastIntake = now
			if err := w.intakeJob.RunOnce(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.seen != nil {
		_ = w.seen.Close()
	}
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
