package ports

import (
	"context"
	"time"

	"herald/contexts/newsletter-production/content-intake-service/domain/entities"
)

type FeedParser interface {
	Fetch(ctx context.Context, url string) ([]entities.Item, error)
}

// Scorer rates an item's newsletter-worthiness. Expensive; intake guards it
// behind the seen-cache and the posts unique constraint so an item is scored
// at most once.
type Scorer interface {
	Score(ctx context.Context, item entities.Item) (float64, error)
}

type PostWriter interface {
	// SavePost persists a scored post; a previously stored external_id must
	// fail with ErrDuplicatePost.
	SavePost(ctx context.Context, post entities.ScoredPost) error
}

// SeenCache shortcuts refetches of already-processed items between intake
// cycles. It is an optimization only: the posts unique constraint remains
// the source of truth.
type SeenCache interface {
	Seen(ctx context.Context, externalID string) (bool, error)
	MarkSeen(ctx context.Context, externalID string, ttl time.Duration) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
