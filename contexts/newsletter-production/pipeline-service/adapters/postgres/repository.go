package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
	"herald/contexts/newsletter-production/pipeline-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository implements the pipeline store ports on Postgres. All writes are
// targeted updates keyed by campaign/post/article identity so concurrent runs
// for different dates never interfere.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) CreateCampaign(ctx context.Context, campaign entities.Campaign) error {
	row, err := campaignModelFromEntity(campaign)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrCampaignDateTaken
		}
		return err
	}
	return nil
}

func (r *Repository) FindCampaignByDate(ctx context.Context, date string) (entities.Campaign, error) {
	var row campaignModel
	err := r.db.WithContext(ctx).
		Where("date = ?", strings.TrimSpace(date)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Campaign{}, domainerrors.ErrCampaignNotFound
		}
		return entities.Campaign{}, err
	}
	return row.toEntity()
}

func (r *Repository) UpdateCampaignStatus(ctx context.Context, campaignID string, status entities.CampaignStatus) error {
	return r.updateCampaign(ctx, campaignID, map[string]any{
		"status": string(status),
	})
}

func (r *Repository) SetCampaignSubject(ctx context.Context, campaignID string, subject string) error {
	return r.updateCampaign(ctx, campaignID, map[string]any{
		"subject": strings.TrimSpace(subject),
	})
}

func (r *Repository) SetCampaignHeroImage(ctx context.Context, campaignID string, url string) error {
	return r.updateCampaign(ctx, campaignID, map[string]any{
		"hero_image_url": strings.TrimSpace(url),
	})
}

func (r *Repository) SetCampaignSections(ctx context.Context, campaignID string, sections []entities.Section) error {
	payload, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	return r.updateCampaign(ctx, campaignID, map[string]any{
		"sections": payload,
	})
}

func (r *Repository) updateCampaign(ctx context.Context, campaignID string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&campaignModel{}).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCampaignNotFound
	}
	return nil
}

func (r *Repository) ListSentCampaigns(ctx context.Context, sinceDate string) ([]entities.Campaign, error) {
	var rows []campaignModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND date >= ?", string(entities.CampaignStatusSent), strings.TrimSpace(sinceDate)).
		Order("date ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.Campaign, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository) ListScoredUnattached(ctx context.Context, scoredAfter time.Time, limit int) ([]entities.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []postModel
	err := r.db.WithContext(ctx).
		Where("campaign_id IS NULL AND scored_at >= ?", scoredAfter.UTC()).
		Order("score DESC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return postEntities(rows), nil
}

func (r *Repository) ListPostsByCampaign(ctx context.Context, campaignID string) ([]entities.Post, error) {
	var rows []postModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Order("score DESC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return postEntities(rows), nil
}

func (r *Repository) ListExternalIDsByCampaigns(ctx context.Context, campaignIDs []string) ([]string, error) {
	if len(campaignIDs) == 0 {
		return []string{}, nil
	}
	var externalIDs []string
	err := r.db.WithContext(ctx).
		Model(&postModel{}).
		Where("campaign_id IN ?", campaignIDs).
		Pluck("external_id", &externalIDs).
		Error
	if err != nil {
		return nil, err
	}
	return externalIDs, nil
}

func (r *Repository) AssignPostsToCampaign(ctx context.Context, campaignID string, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	// The campaign_id guard keeps a post from being stolen out of another
	// in-flight campaign; re-assignment to the same campaign is a no-op.
	return r.db.WithContext(ctx).
		Model(&postModel{}).
		Where("post_id IN ? AND (campaign_id IS NULL OR campaign_id = ?)", postIDs, strings.TrimSpace(campaignID)).
		Updates(map[string]any{"campaign_id": strings.TrimSpace(campaignID)}).
		Error
}

func (r *Repository) ReleasePosts(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&postModel{}).
		Where("post_id IN ?", postIDs).
		Updates(map[string]any{"campaign_id": nil}).
		Error
}

func (r *Repository) CreateArticle(ctx context.Context, article entities.Article) error {
	row := articleModelFromEntity(article)
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Create(&row)
	return createResult.Error
}

func (r *Repository) ListArticlesByCampaign(ctx context.Context, campaignID string) ([]entities.Article, error) {
	var rows []articleModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.Article, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ApplyArticleSelection(ctx context.Context, campaignID string, ranks map[string]int) error {
	trimmedID := strings.TrimSpace(campaignID)
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&articleModel{}).
			Where("campaign_id = ?", trimmedID).
			Updates(map[string]any{
				"is_active":  false,
				"rank":       0,
				"updated_at": now,
			}).
			Error; err != nil {
			return err
		}
		for articleID, rank := range ranks {
			result := tx.Model(&articleModel{}).
				Where("article_id = ? AND campaign_id = ?", articleID, trimmedID).
				Updates(map[string]any{
					"is_active":  true,
					"rank":       rank,
					"updated_at": now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrArticleNotFound
			}
		}
		return nil
	})
}

func (r *Repository) ListEventsOnDate(ctx context.Context, date string) ([]entities.Event, error) {
	var rows []eventModel
	err := r.db.WithContext(ctx).
		Where("event_date = ?", strings.TrimSpace(date)).
		Order("title ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.Event, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) LinkCampaignEvents(ctx context.Context, campaignID string, eventIDs []string) error {
	trimmedID := strings.TrimSpace(campaignID)
	now := time.Now().UTC()
	rows := make([]campaignEventModel, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		rows = append(rows, campaignEventModel{
			CampaignID: trimmedID,
			EventID:    strings.TrimSpace(eventID),
			CreatedAt:  now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&rows).
		Error
}

func (r *Repository) ListDealsForWeekday(ctx context.Context, weekday time.Weekday) ([]entities.DiningDeal, error) {
	var rows []diningDealModel
	err := r.db.WithContext(ctx).
		Where("weekday = ?", int(weekday)).
		Order("title ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.DiningDeal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) PickImage(ctx context.Context, tag string) (entities.Image, error) {
	var row imageModel
	err := r.db.WithContext(ctx).
		Where("tags LIKE ?", "%"+strings.TrimSpace(tag)+"%").
		Order("created_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Image{}, domainerrors.ErrImageNotFound
		}
		return entities.Image{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

type campaignModel struct {
	CampaignID   string    `gorm:"column:campaign_id;primaryKey"`
	Date         string    `gorm:"column:date;uniqueIndex"`
	Status       string    `gorm:"column:status"`
	Subject      string    `gorm:"column:subject"`
	HeroImageURL string    `gorm:"column:hero_image_url"`
	Sections     []byte    `gorm:"column:sections;type:jsonb"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (campaignModel) TableName() string {
	return "campaigns"
}

func campaignModelFromEntity(item entities.Campaign) (campaignModel, error) {
	var sections []byte
	if len(item.Sections) > 0 {
		encoded, err := json.Marshal(item.Sections)
		if err != nil {
			return campaignModel{}, err
		}
		sections = encoded
	}
	return campaignModel{
		CampaignID:   strings.TrimSpace(item.CampaignID),
		Date:         strings.TrimSpace(item.Date),
		Status:       string(item.Status),
		Subject:      strings.TrimSpace(item.Subject),
		HeroImageURL: strings.TrimSpace(item.HeroImageURL),
		Sections:     sections,
		CreatedAt:    item.CreatedAt.UTC(),
		UpdatedAt:    item.UpdatedAt.UTC(),
	}, nil
}

func (m campaignModel) toEntity() (entities.Campaign, error) {
	var sections []entities.Section
	if len(m.Sections) > 0 {
		if err := json.Unmarshal(m.Sections, &sections); err != nil {
			return entities.Campaign{}, err
		}
	}
	return entities.Campaign{
		CampaignID:   m.CampaignID,
		Date:         m.Date,
		Status:       entities.CampaignStatus(m.Status),
		Subject:      m.Subject,
		HeroImageURL: m.HeroImageURL,
		Sections:     sections,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}, nil
}

type postModel struct {
	PostID      string    `gorm:"column:post_id;primaryKey"`
	ExternalID  string    `gorm:"column:external_id;uniqueIndex"`
	Title       string    `gorm:"column:title"`
	Link        string    `gorm:"column:link"`
	Summary     string    `gorm:"column:summary"`
	Source      string    `gorm:"column:source"`
	Score       float64   `gorm:"column:score"`
	ScoredAt    time.Time `gorm:"column:scored_at"`
	PublishedAt time.Time `gorm:"column:published_at"`
	CampaignID  *string   `gorm:"column:campaign_id"`
}

func (postModel) TableName() string {
	return "posts"
}

func (m postModel) toEntity() entities.Post {
	campaignID := ""
	if m.CampaignID != nil {
		campaignID = *m.CampaignID
	}
	return entities.Post{
		PostID:      m.PostID,
		ExternalID:  m.ExternalID,
		Title:       m.Title,
		Link:        m.Link,
		Summary:     m.Summary,
		Source:      m.Source,
		Score:       m.Score,
		ScoredAt:    m.ScoredAt.UTC(),
		PublishedAt: m.PublishedAt.UTC(),
		CampaignID:  campaignID,
	}
}

func postEntities(rows []postModel) []entities.Post {
	items := make([]entities.Post, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type articleModel struct {
	ArticleID  string    `gorm:"column:article_id;primaryKey"`
	CampaignID string    `gorm:"column:campaign_id;uniqueIndex:idx_articles_campaign_post"`
	PostID     string    `gorm:"column:post_id;uniqueIndex:idx_articles_campaign_post"`
	Body       string    `gorm:"column:body"`
	IsActive   bool      `gorm:"column:is_active"`
	Rank       int       `gorm:"column:rank"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (articleModel) TableName() string {
	return "articles"
}

func articleModelFromEntity(item entities.Article) articleModel {
	return articleModel{
		ArticleID:  strings.TrimSpace(item.ArticleID),
		CampaignID: strings.TrimSpace(item.CampaignID),
		PostID:     strings.TrimSpace(item.PostID),
		Body:       item.Body,
		IsActive:   item.IsActive,
		Rank:       item.Rank,
		CreatedAt:  item.CreatedAt.UTC(),
		UpdatedAt:  item.UpdatedAt.UTC(),
	}
}

func (m articleModel) toEntity() entities.Article {
	return entities.Article{
		ArticleID:  m.ArticleID,
		CampaignID: m.CampaignID,
		PostID:     m.PostID,
		Body:       m.Body,
		IsActive:   m.IsActive,
		Rank:       m.Rank,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type eventModel struct {
	EventID   string    `gorm:"column:event_id;primaryKey"`
	Title     string    `gorm:"column:title"`
	Venue     string    `gorm:"column:venue"`
	EventDate string    `gorm:"column:event_date"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (eventModel) TableName() string {
	return "events"
}

func (m eventModel) toEntity() entities.Event {
	return entities.Event{
		EventID:   m.EventID,
		Title:     m.Title,
		Venue:     m.Venue,
		EventDate: m.EventDate,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type campaignEventModel struct {
	CampaignID string    `gorm:"column:campaign_id;primaryKey"`
	EventID    string    `gorm:"column:event_id;primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (campaignEventModel) TableName() string {
	return "campaign_events"
}

type diningDealModel struct {
	DealID    string    `gorm:"column:deal_id;primaryKey"`
	Title     string    `gorm:"column:title"`
	Venue     string    `gorm:"column:venue"`
	Weekday   int       `gorm:"column:weekday"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (diningDealModel) TableName() string {
	return "dining_deals"
}

func (m diningDealModel) toEntity() entities.DiningDeal {
	return entities.DiningDeal{
		DealID:    m.DealID,
		Title:     m.Title,
		Venue:     m.Venue,
		Weekday:   time.Weekday(m.Weekday),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type imageModel struct {
	ImageID   string    `gorm:"column:image_id;primaryKey"`
	URL       string    `gorm:"column:url"`
	Tags      string    `gorm:"column:tags"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (imageModel) TableName() string {
	return "images"
}

func (m imageModel) toEntity() entities.Image {
	return entities.Image{
		ImageID:   m.ImageID,
		URL:       m.URL,
		Tags:      m.Tags,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "pipeline_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
