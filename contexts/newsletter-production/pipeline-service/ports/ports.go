package ports

import (
	"context"
	"time"

	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	contractsv1 "herald/contracts/gen/events/v1"
)

type CampaignRepository interface {
	// CreateCampaign inserts a new campaign row. A second insert for the
	// same date must fail with ErrCampaignDateTaken (DB unique constraint),
	// which Setup resolves by re-reading.
	CreateCampaign(ctx context.Context, campaign entities.Campaign) error
	FindCampaignByDate(ctx context.Context, date string) (entities.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID string, status entities.CampaignStatus) error
	SetCampaignSubject(ctx context.Context, campaignID string, subject string) error
	SetCampaignHeroImage(ctx context.Context, campaignID string, url string) error
	SetCampaignSections(ctx context.Context, campaignID string, sections []entities.Section) error
	// ListSentCampaigns returns campaigns with status `sent` and date on or
	// after sinceDate, for the dedup window.
	ListSentCampaigns(ctx context.Context, sinceDate string) ([]entities.Campaign, error)
}

type PostRepository interface {
	// ListScoredUnattached returns unattached posts scored at or after the
	// cutoff, highest score first, truncated to limit.
	ListScoredUnattached(ctx context.Context, scoredAfter time.Time, limit int) ([]entities.Post, error)
	ListPostsByCampaign(ctx context.Context, campaignID string) ([]entities.Post, error)
	ListExternalIDsByCampaigns(ctx context.Context, campaignIDs []string) ([]string, error)
	// AssignPostsToCampaign attaches posts to a campaign. Posts already held
	// by a different campaign are left untouched.
	AssignPostsToCampaign(ctx context.Context, campaignID string, postIDs []string) error
	// ReleasePosts clears campaign_id, returning posts to the candidate pool.
	ReleasePosts(ctx context.Context, postIDs []string) error
}

type ArticleRepository interface {
	// CreateArticle inserts an article; a duplicate (campaign, post) pair is
	// a no-op so generation can be re-run safely.
	CreateArticle(ctx context.Context, article entities.Article) error
	ListArticlesByCampaign(ctx context.Context, campaignID string) ([]entities.Article, error)
	// ApplyArticleSelection activates the listed articles with their ranks
	// and deactivates every other article of the campaign, atomically.
	ApplyArticleSelection(ctx context.Context, campaignID string, ranks map[string]int) error
}

type AuxiliaryRepository interface {
	ListEventsOnDate(ctx context.Context, date string) ([]entities.Event, error)
	LinkCampaignEvents(ctx context.Context, campaignID string, eventIDs []string) error
	ListDealsForWeekday(ctx context.Context, weekday time.Weekday) ([]entities.DiningDeal, error)
	// PickImage returns a hero candidate carrying the tag, or ErrImageNotFound.
	PickImage(ctx context.Context, tag string) (entities.Image, error)
}

// ContentGenerator is the opaque AI collaborator. It is potentially slow and
// partially unreliable; callers own retry and partial-failure handling.
type ContentGenerator interface {
	GenerateArticle(ctx context.Context, post entities.Post) (string, error)
	SubjectLine(ctx context.Context, titles []string) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
