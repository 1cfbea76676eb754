package rssadapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"herald/contexts/newsletter-production/content-intake-service/domain/entities"
)

// Parser adapts gofeed to the intake FeedParser port.
type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{parser: gofeed.NewParser()}
}

func (p *Parser) Fetch(ctx context.Context, url string) ([]entities.Item, error) {
	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = url
	}

	items := make([]entities.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		externalID := strings.TrimSpace(item.GUID)
		if externalID == "" {
			externalID = strings.TrimSpace(item.Link)
		}

		published := time.Time{}
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}

		items = append(items, entities.Item{
			ExternalID:  externalID,
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Summary:     strings.TrimSpace(item.Description),
			Source:      source,
			PublishedAt: published,
		})
	}
	return items, nil
}
