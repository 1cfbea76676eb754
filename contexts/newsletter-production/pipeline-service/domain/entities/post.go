package entities

import "time"

// Post is a scored piece of source content. ExternalID is the stable
// source-provided identifier and is the deduplication key across campaigns.
// CampaignID is non-null only while exactly one in-flight campaign is
// considering the post; finalization releases unused posts back to the pool.
type Post struct {
	PostID      string
	ExternalID  string
	Title       string
	Link        string
	Summary     string
	Source      string
	Score       float64
	ScoredAt    time.Time
	PublishedAt time.Time
	CampaignID  string // empty means unattached
}

// Attached reports whether the post is currently held by a campaign.
func (p Post) Attached() bool {
	return p.CampaignID != ""
}
