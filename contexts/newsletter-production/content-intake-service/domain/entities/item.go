package entities

import "time"

// Item is one entry pulled from an upstream feed, before scoring. ExternalID
// is the source-provided identifier (RSS guid, falling back to link) that the
// whole system uses as the stable identity of the content.
type Item struct {
	ExternalID  string
	Title       string
	Link        string
	Summary     string
	Source      string
	PublishedAt time.Time
}

// ScoredPost is an item that passed scoring and is persisted into the shared
// candidate pool the production pipeline draws from.
type ScoredPost struct {
	PostID      string
	ExternalID  string
	Title       string
	Link        string
	Summary     string
	Source      string
	Score       float64
	ScoredAt    time.Time
	PublishedAt time.Time
}
