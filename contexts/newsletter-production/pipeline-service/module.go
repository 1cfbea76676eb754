package pipelineservice

import (
	"log/slog"

	httpadapter "herald/contexts/newsletter-production/pipeline-service/adapters/http"
	"herald/contexts/newsletter-production/pipeline-service/adapters/memory"
	"herald/contexts/newsletter-production/pipeline-service/application"
	"herald/contexts/newsletter-production/pipeline-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Runner  application.Runner
	Store   *memory.Store
}

type Dependencies struct {
	Campaigns ports.CampaignRepository
	Posts     ports.PostRepository
	Articles  ports.ArticleRepository
	Auxiliary ports.AuxiliaryRepository
	Generator ports.ContentGenerator
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Config    application.Config
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	runner := application.Runner{
		Campaigns: deps.Campaigns,
		Posts:     deps.Posts,
		Articles:  deps.Articles,
		Auxiliary: deps.Auxiliary,
		Generator: deps.Generator,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Config:    deps.Config,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Runner:    runner,
			Campaigns: deps.Campaigns,
			Posts:     deps.Posts,
			Articles:  deps.Articles,
			Logger:    deps.Logger,
		},
		Runner: runner,
	}
}

// NewInMemoryModule wires the pipeline against the in-memory store, for
// tests and local development. The generator still has to be supplied.
func NewInMemoryModule(generator ports.ContentGenerator, cfg application.Config, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Campaigns: store,
		Posts:     store,
		Articles:  store,
		Auxiliary: store,
		Generator: generator,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Config:    cfg,
		Logger:    logger,
	})
	module.Store = store
	return module
}
