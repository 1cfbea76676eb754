package entities

import "time"

// Article is generated newsletter copy for one post of one campaign.
// Articles are never deleted; selection toggles IsActive and assigns a
// contiguous Rank starting at 1 among the campaign's active articles.
// Rank is 0 while inactive.
type Article struct {
	ArticleID  string
	CampaignID string
	PostID     string
	Body       string
	IsActive   bool
	Rank       int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
