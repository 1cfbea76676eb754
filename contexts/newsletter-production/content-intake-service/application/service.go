package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"herald/contexts/newsletter-production/content-intake-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/content-intake-service/domain/errors"
	"herald/contexts/newsletter-production/content-intake-service/ports"
)

const defaultSeenTTL = 7 * 24 * time.Hour

// Service continuously turns upstream feeds into scored candidate posts.
// Scoring happens here, ahead of any pipeline run, so the production
// pipeline only ever selects from already-scored data and its retries
// stay cheap.
type Service struct {
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

// Report summarizes one intake cycle.
type Report struct {
	FeedsFetched int
	ItemsSeen    int
	PostsStored  int
	Skipped      int
	Failures     int
}

// FetchAndScore walks every configured feed once. Feed and item failures are
// counted and skipped; the cycle itself only fails on a nil collaborator.
func (s Service) FetchAndScore(ctx context.Context) (Report, error) {
	logger := ResolveLogger(s.Logger)
	ttl := s.SeenTTL
	if ttl <= 0 {
		ttl = defaultSeenTTL
	}

	var report Report
	for _, url := range s.FeedURLs {
		items, err := s.Parser.Fetch(ctx, url)
		if err != nil {
			report.Failures++
			logger.Warn("feed fetch failed",
				"event", "intake_feed_fetch_failed",
				"module", "newsletter-production/content-intake-service",
				"layer", "application",
				"feed_url", url,
				"error", err.Error(),
			)
			continue
		}
		report.FeedsFetched++
		report.ItemsSeen += len(items)

		for _, item := range items {
			if err := s.processItem(ctx, logger, item, ttl, &report); err != nil {
				return report, err
			}
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
		}
	}

	logger.Info("intake cycle completed",
		"event", "intake_cycle_completed",
		"module", "newsletter-production/content-intake-service",
		"layer", "application",
		"feeds_fetched", report.FeedsFetched,
		"items_seen", report.ItemsSeen,
		"posts_stored", report.PostsStored,
		"skipped", report.Skipped,
		"failures", report.Failures,
	)
	return report, nil
}

func (s Service) processItem(
	ctx context.Context,
	logger *slog.Logger,
	item entities.Item,
	ttl time.Duration,
	report *Report,
) error {
	if strings.TrimSpace(item.ExternalID) == "" {
		report.Skipped++
		return nil
	}

	seen, err := s.Seen.Seen(ctx, item.ExternalID)
	if err != nil {
		// Cache trouble must not stall intake; the store constraint still
		// dedupes.
		logger.Warn("seen-cache lookup failed",
			"event", "intake_seen_lookup_failed",
			"module", "newsletter-production/content-intake-service",
			"layer", "application",
			"external_id", item.ExternalID,
			"error", err.Error(),
		)
	} else if seen {
		report.Skipped++
		return nil
	}

	score, err := s.Scorer.Score(ctx, item)
	if err != nil {
		report.Failures++
		logger.Warn("item scoring failed",
			"event", "intake_scoring_failed",
			"module", "newsletter-production/content-intake-service",
			"layer", "application",
			"external_id", item.ExternalID,
			"error", err.Error(),
		)
		return nil
	}

	postID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	err = s.Posts.SavePost(ctx, entities.ScoredPost{
		PostID:      postID,
		ExternalID:  item.ExternalID,
		Title:       item.Title,
		Link:        item.Link,
		Summary:     item.Summary,
		Source:      item.Source,
		Score:       score,
		ScoredAt:    now,
		PublishedAt: item.PublishedAt,
	})
	if err != nil && !errors.Is(err, domainerrors.ErrDuplicatePost) {
		report.Failures++
		logger.Warn("post store failed",
			"event", "intake_post_store_failed",
			"module", "newsletter-production/content-intake-service",
			"layer", "application",
			"external_id", item.ExternalID,
			"error", err.Error(),
		)
		return nil
	}
	if err == nil {
		report.PostsStored++
	} else {
		report.Skipped++
	}

	if err := s.Seen.MarkSeen(ctx, item.ExternalID, ttl); err != nil {
		logger.Warn("seen-cache mark failed",
			"event", "intake_seen_mark_failed",
			"module", "newsletter-production/content-intake-service",
			"layer", "application",
			"external_id", item.ExternalID,
			"error", err.Error(),
		)
	}
	return nil
}
