package entities

import "time"

// Auxiliary content is admin-managed through the dashboard and read-only to
// the pipeline; the populate steps only link or copy it onto a campaign.

type Event struct {
	EventID   string
	Title     string
	Venue     string
	EventDate string // YYYY-MM-DD
	CreatedAt time.Time
}

type DiningDeal struct {
	DealID    string
	Title     string
	Venue     string
	Weekday   time.Weekday
	CreatedAt time.Time
}

type Image struct {
	ImageID   string
	URL       string
	Tags      string // comma separated
	CreatedAt time.Time
}
