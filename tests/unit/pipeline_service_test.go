package unit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pipelineservice "herald/contexts/newsletter-production/pipeline-service"
	"herald/contexts/newsletter-production/pipeline-service/application"
	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
	httptransport "herald/contexts/newsletter-production/pipeline-service/transport/http"
)

type scriptedGenerator struct{}

func (scriptedGenerator) GenerateArticle(_ context.Context, post entities.Post) (string, error) {
	return "blurb: " + post.Title, nil
}

func (scriptedGenerator) SubjectLine(_ context.Context, titles []string) (string, error) {
	return strings.Join(titles, " | "), nil
}

func TestPipelineTriggerAndFetchCampaign(t *testing.T) {
	module := pipelineservice.NewInMemoryModule(scriptedGenerator{}, application.Config{
		MaxActiveArticles: 2,
		Retry:             application.RetryPolicy{MaxRetries: 1, Delay: time.Millisecond},
	}, nil)

	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)
	date := entities.DateOf(now)

	for _, seed := range []struct {
		id    string
		score float64
	}{
		{"post-a", 9.2}, {"post-b", 7.4}, {"post-c", 5.1},
	} {
		module.Store.SeedPost(entities.Post{
			PostID:     seed.id,
			ExternalID: "ext-" + seed.id,
			Title:      "Story " + seed.id,
			Link:       "https://example.com/" + seed.id,
			Score:      seed.score,
			ScoredAt:   now.Add(-2 * time.Hour),
		})
	}

	run, err := module.Handler.TriggerRunHandler(context.Background(), httptransport.TriggerRunRequest{Date: date})
	if err != nil {
		t.Fatalf("trigger run failed: %v", err)
	}
	if !run.Data.Success || run.Data.CampaignID == "" {
		t.Fatalf("expected successful run, got %+v", run.Data)
	}

	campaign, err := module.Handler.GetCampaignHandler(context.Background(), date)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if campaign.Data.Status != string(entities.CampaignStatusDraft) {
		t.Fatalf("expected draft campaign, got %s", campaign.Data.Status)
	}
	if len(campaign.Data.Articles) != 2 {
		t.Fatalf("expected 2 active articles, got %d", len(campaign.Data.Articles))
	}
	if campaign.Data.Articles[0].Rank != 1 || campaign.Data.Articles[1].Rank != 2 {
		t.Fatalf("articles must come back in rank order, got %+v", campaign.Data.Articles)
	}
	if campaign.Data.Articles[0].Title != "Story post-a" {
		t.Fatalf("highest-scored post must rank first, got %s", campaign.Data.Articles[0].Title)
	}
	if campaign.Data.Subject == "" {
		t.Fatalf("expected a subject line")
	}
}

func TestPipelineTriggerIsIdempotentPerDate(t *testing.T) {
	module := pipelineservice.NewInMemoryModule(scriptedGenerator{}, application.Config{
		Retry: application.RetryPolicy{MaxRetries: 1, Delay: time.Millisecond},
	}, nil)

	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)
	date := entities.DateOf(now)

	first, err := module.Handler.TriggerRunHandler(context.Background(), httptransport.TriggerRunRequest{Date: date})
	if err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
	second, err := module.Handler.TriggerRunHandler(context.Background(), httptransport.TriggerRunRequest{Date: date})
	if err != nil {
		t.Fatalf("second trigger failed: %v", err)
	}
	if first.Data.CampaignID != second.Data.CampaignID {
		t.Fatalf("expected same campaign id, got %s and %s", first.Data.CampaignID, second.Data.CampaignID)
	}
}

func TestPipelineFetchUnknownDate(t *testing.T) {
	module := pipelineservice.NewInMemoryModule(scriptedGenerator{}, application.Config{}, nil)

	_, err := module.Handler.GetCampaignHandler(context.Background(), "2026-01-01")
	if !errors.Is(err, domainerrors.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}
