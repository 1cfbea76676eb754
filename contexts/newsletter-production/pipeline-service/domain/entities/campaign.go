package entities

import (
	"strings"
	"time"
)

type CampaignStatus string

const (
	CampaignStatusProcessing  CampaignStatus = "processing"
	CampaignStatusDraft       CampaignStatus = "draft"
	CampaignStatusInReview    CampaignStatus = "in_review"
	CampaignStatusChangesMade CampaignStatus = "changes_made"
	CampaignStatusReadyToSend CampaignStatus = "ready_to_send"
	CampaignStatusSent        CampaignStatus = "sent"
	CampaignStatusFailed      CampaignStatus = "failed"
)

// Campaign is one calendar date's newsletter production run. At most one
// campaign exists per date; the pipeline creates it in `processing` and
// hands it off to review in `draft`. The review/delivery flow owns the
// remaining transitions up to `sent`.
type Campaign struct {
	CampaignID   string
	Date         string // YYYY-MM-DD
	Status       CampaignStatus
	Subject      string
	HeroImageURL string
	Sections     []Section
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Section is a supplementary newsletter block (dining deals, announcements)
// populated by the pipeline's auxiliary steps.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Delivered reports whether the campaign already went out; delivered
// campaigns are never reopened by the pipeline.
func (c Campaign) Delivered() bool {
	return c.Status == CampaignStatusSent
}

func IsSupportedStatus(value CampaignStatus) bool {
	switch value {
	case CampaignStatusProcessing, CampaignStatusDraft, CampaignStatusInReview,
		CampaignStatusChangesMade, CampaignStatusReadyToSend, CampaignStatusSent,
		CampaignStatusFailed:
		return true
	default:
		return false
	}
}

const dateLayout = "2006-01-02"

// NormalizeDate validates and canonicalizes a campaign date to YYYY-MM-DD.
func NormalizeDate(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return "", false
	}
	return parsed.UTC().Format(dateLayout), true
}

// DateOf formats a timestamp as a campaign date.
func DateOf(value time.Time) string {
	return value.UTC().Format(dateLayout)
}

// AddDays shifts a normalized campaign date by a number of days. Campaign
// dates sort lexicographically, which the dedup window queries rely on.
func AddDays(date string, days int) string {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return parsed.UTC().AddDate(0, 0, days).Format(dateLayout)
}

// WeekdayOf returns the weekday of a normalized campaign date.
func WeekdayOf(date string) time.Weekday {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Sunday
	}
	return parsed.UTC().Weekday()
}
