package contentintakeservice

import (
	"log/slog"
	"time"

	"herald/contexts/newsletter-production/content-intake-service/adapters/memory"
	"herald/contexts/newsletter-production/content-intake-service/application"
	"herald/contexts/newsletter-production/content-intake-service/ports"
)

type Module struct {
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Parser   ports.FeedParser
	Scorer   ports.Scorer
	Posts    ports.PostWriter
	Seen     ports.SeenCache
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	FeedURLs []string
	SeenTTL  time.Duration
	Logger   *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Parser:   deps.Parser,
			Scorer:   deps.Scorer,
			Posts:    deps.Posts,
			Seen:     deps.Seen,
			Clock:    deps.Clock,
			IDGen:    deps.IDGen,
			FeedURLs: deps.FeedURLs,
			SeenTTL:  deps.SeenTTL,
			Logger:   deps.Logger,
		},
	}
}

// NewInMemoryModule wires intake against the in-memory store, for tests
// and local development. Parser and scorer still have to be supplied.
func NewInMemoryModule(parser ports.FeedParser, scorer ports.Scorer, feedURLs []string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Parser:   parser,
		Scorer:   scorer,
		Posts:    store,
		Seen:     store,
		Clock:    store,
		IDGen:    store,
		FeedURLs: feedURLs,
		Logger:   logger,
	})
	module.Store = store
	return module
}
