package errors

import "errors"

var (
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrCampaignDateTaken   = errors.New("campaign already exists for date")
	ErrCampaignAlreadySent = errors.New("campaign already sent")
	ErrInvalidDate         = errors.New("invalid campaign date")
	ErrPostNotFound        = errors.New("post not found")
	ErrArticleNotFound     = errors.New("article not found")
	ErrNothingGenerated    = errors.New("no articles could be generated")
	ErrImageNotFound       = errors.New("no matching image")
	ErrOutboxConflict      = errors.New("outbox payload conflict")
)
