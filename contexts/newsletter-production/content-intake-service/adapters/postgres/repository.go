package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"herald/contexts/newsletter-production/content-intake-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/content-intake-service/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository writes scored posts into the shared candidate pool. The
// external_id unique constraint is the durable dedup guard for intake.
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

func (r *Repository) SavePost(ctx context.Context, post entities.ScoredPost) error {
	row := postModel{
		PostID:      strings.TrimSpace(post.PostID),
		ExternalID:  strings.TrimSpace(post.ExternalID),
		Title:       strings.TrimSpace(post.Title),
		Link:        strings.TrimSpace(post.Link),
		Summary:     post.Summary,
		Source:      strings.TrimSpace(post.Source),
		Score:       post.Score,
		ScoredAt:    post.ScoredAt.UTC(),
		PublishedAt: post.PublishedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicatePost
		}
		return err
	}
	return nil
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
