package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"herald/contexts/newsletter-production/pipeline-service/adapters/memory"
	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
)

type fakeGenerator struct {
	failPosts map[string]bool
	failAll   bool
}

func (g *fakeGenerator) GenerateArticle(_ context.Context, post entities.Post) (string, error) {
	if g.failAll || g.failPosts[post.PostID] {
		return "", errors.New("model unavailable")
	}
	return "blurb for " + post.Title, nil
}

func (g *fakeGenerator) SubjectLine(_ context.Context, titles []string) (string, error) {
	if g.failAll {
		return "", errors.New("model unavailable")
	}
	return "Today: " + strings.Join(titles, " / "), nil
}

func newTestRunner(store *memory.Store, generator *fakeGenerator, maxActive int) Runner {
	return Runner{
		Campaigns: store,
		Posts:     store,
		Articles:  store,
		Auxiliary: store,
		Generator: generator,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Config: Config{
			MaxActiveArticles: maxActive,
			Retry:             RetryPolicy{MaxRetries: 1, Delay: time.Millisecond, StepTimeout: time.Second},
		},
	}
}

func seedScoredPost(store *memory.Store, postID string, score float64, scoredAt time.Time) {
	store.SeedPost(entities.Post{
		PostID:     postID,
		ExternalID: "ext-" + postID,
		Title:      "Title " + postID,
		Link:       "https://example.com/" + postID,
		Score:      score,
		ScoredAt:   scoredAt,
	})
}

func TestRunProducesRankedDraft(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	store.SetNow(now)
	date := entities.DateOf(now)

	seedScoredPost(store, "a", 9, now.Add(-time.Hour))
	seedScoredPost(store, "b", 7, now.Add(-time.Hour))
	seedScoredPost(store, "c", 5, now.Add(-time.Hour))

	// Post b's story already shipped ten days ago.
	store.SeedCampaign(entities.Campaign{
		CampaignID: "camp-hist",
		Date:       entities.AddDays(date, -10),
		Status:     entities.CampaignStatusSent,
	})
	store.SeedPost(entities.Post{
		PostID:     "hist-b",
		ExternalID: "ext-b",
		Title:      "Title b (shipped)",
		Score:      8,
		ScoredAt:   now.Add(-10 * 24 * time.Hour),
		CampaignID: "camp-hist",
	})

	runner := newTestRunner(store, &fakeGenerator{}, 2)
	result, err := runner.Run(context.Background(), "manual", date)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected successful run")
	}

	campaign, ok := store.Campaign(result.CampaignID)
	if !ok {
		t.Fatalf("campaign not stored")
	}
	if campaign.Status != entities.CampaignStatusDraft {
		t.Fatalf("expected draft, got %s", campaign.Status)
	}
	if campaign.Subject == "" {
		t.Fatalf("expected a subject line")
	}

	articles, err := store.ListArticlesByCampaign(context.Background(), result.CampaignID)
	if err != nil {
		t.Fatalf("list articles failed: %v", err)
	}
	rankByPost := make(map[string]int)
	for _, article := range articles {
		if article.IsActive {
			rankByPost[article.PostID] = article.Rank
		}
	}
	if len(rankByPost) != 2 {
		t.Fatalf("expected 2 active articles, got %d", len(rankByPost))
	}
	if rankByPost["a"] != 1 || rankByPost["c"] != 2 {
		t.Fatalf("expected a=1 c=2, got %v", rankByPost)
	}

	// The duplicate candidate was never attached to the new campaign.
	if post, _ := store.Post("b"); post.Attached() {
		t.Fatalf("deduplicated post must stay unattached, got campaign %s", post.CampaignID)
	}
}

func TestRunKeepsCandidatesOutsideDedupWindow(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	store.SetNow(now)
	date := entities.DateOf(now)

	seedScoredPost(store, "a", 6, now.Add(-time.Hour))

	// Same story shipped, but 40 days back, beyond the 30-day window.
	store.SeedCampaign(entities.Campaign{
		CampaignID: "camp-old",
		Date:       entities.AddDays(date, -40),
		Status:     entities.CampaignStatusSent,
	})
	store.SeedPost(entities.Post{
		PostID:     "old-a",
		ExternalID: "ext-a",
		Score:      6,
		ScoredAt:   now.Add(-40 * 24 * time.Hour),
		CampaignID: "camp-old",
	})

	runner := newTestRunner(store, &fakeGenerator{}, 5)
	result, err := runner.Run(context.Background(), "manual", date)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if post, _ := store.Post("a"); post.CampaignID != result.CampaignID {
		t.Fatalf("candidate outside the dedup window must be assigned")
	}
}

func TestRunRejectsDeliveredCampaign(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	store.SetNow(now)
	date := entities.DateOf(now)

	store.SeedCampaign(entities.Campaign{
		CampaignID: "camp-sent",
		Date:       date,
		Status:     entities.CampaignStatusSent,
	})

	runner := newTestRunner(store, &fakeGenerator{}, 5)
	_, err := runner.Run(context.Background(), "manual", date)
	if !errors.Is(err, domainerrors.ErrCampaignAlreadySent) {
		t.Fatalf("expected ErrCampaignAlreadySent, got %v", err)
	}
	if campaign, _ := store.Campaign("camp-sent"); campaign.Status != entities.CampaignStatusSent {
		t.Fatalf("delivered campaign must not be touched, got %s", campaign.Status)
	}
}

func TestRunInvalidDate(t *testing.T) {
	runner := newTestRunner(memory.NewStore(), &fakeGenerator{}, 5)
	if _, err := runner.Run(context.Background(), "manual", "28-08-2026"); !errors.Is(err, domainerrors.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestRunResumesFailedCampaign(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	store.SetNow(now)
	date := entities.DateOf(now)

	seedScoredPost(store, "a", 9, now.Add(-time.Hour))

	generator := &fakeGenerator{failAll: true}
	runner := newTestRunner(store, generator, 5)

	first, err := runner.Run(context.Background(), "manual", date)
	if !errors.Is(err, domainerrors.ErrNothingGenerated) {
		t.Fatalf("expected ErrNothingGenerated, got %v", err)
	}
	if campaign, _ := store.Campaign(first.CampaignID); campaign.Status != entities.CampaignStatusFailed {
		t.Fatalf("aborted run must mark campaign failed, got %s", campaign.Status)
	}

	generator.failAll = false
	second, err := runner.Run(context.Background(), "manual", date)
	if err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if second.CampaignID != first.CampaignID {
		t.Fatalf("resume must reuse the campaign, got %s and %s", first.CampaignID, second.CampaignID)
	}
	if campaign, _ := store.Campaign(second.CampaignID); campaign.Status != entities.CampaignStatusDraft {
		t.Fatalf("expected draft after resume, got %s", campaign.Status)
	}
}

func TestFinalizeReleasesPostsWithoutArticles(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	store.SetNow(now)
	date := entities.DateOf(now)

	seedScoredPost(store, "a", 9, now.Add(-time.Hour))
	seedScoredPost(store, "c", 5, now.Add(-time.Hour))

	runner := newTestRunner(store, &fakeGenerator{failPosts: map[string]bool{"c": true}}, 5)
	result, err := runner.Run(context.Background(), "manual", date)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if post, _ := store.Post("a"); post.CampaignID != result.CampaignID {
		t.Fatalf("covered post must stay attached")
	}
	if post, _ := store.Post("c"); post.Attached() {
		t.Fatalf("post without an article must be released, still on %s", post.CampaignID)
	}
}

func TestRunWithNoCandidatesStillDrafts(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	store.SetNow(now)
	date := entities.DateOf(now)

	runner := newTestRunner(store, &fakeGenerator{}, 5)
	result, err := runner.Run(context.Background(), "cron", date)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	campaign, _ := store.Campaign(result.CampaignID)
	if campaign.Status != entities.CampaignStatusDraft {
		t.Fatalf("expected draft, got %s", campaign.Status)
	}
	if campaign.Subject != "" {
		t.Fatalf("campaign with no articles keeps an empty subject, got %q", campaign.Subject)
	}
}

func TestRunPopulatesAuxiliaryContent(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC) // a Friday
	store.SetNow(now)
	date := entities.DateOf(now)

	seedScoredPost(store, "a", 9, now.Add(-time.Hour))
	store.SeedEvent(entities.Event{EventID: "ev-1", Title: "Night Market", EventDate: date})
	store.SeedEvent(entities.Event{EventID: "ev-2", Title: "Art Walk", EventDate: entities.AddDays(date, 1)})
	store.SeedImage(entities.Image{ImageID: "img-1", URL: "https://img.example.com/hero.jpg", Tags: "newsletter-hero,skyline"})
	store.SeedDeal(entities.DiningDeal{DealID: "deal-1", Title: "Taco Friday", Venue: "El Sol", Weekday: time.Friday})
	store.SeedDeal(entities.DiningDeal{DealID: "deal-2", Title: "Monday Pasta", Venue: "Trattoria", Weekday: time.Monday})

	runner := newTestRunner(store, &fakeGenerator{}, 5)
	result, err := runner.Run(context.Background(), "manual", date)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	linked := store.LinkedEvents(result.CampaignID)
	if len(linked) != 1 || linked[0] != "ev-1" {
		t.Fatalf("expected only the same-date event linked, got %v", linked)
	}

	campaign, _ := store.Campaign(result.CampaignID)
	if campaign.HeroImageURL != "https://img.example.com/hero.jpg" {
		t.Fatalf("expected hero image, got %q", campaign.HeroImageURL)
	}
	if len(campaign.Sections) != 1 || campaign.Sections[0].Title != "Taco Friday" {
		t.Fatalf("expected the Friday deal section, got %v", campaign.Sections)
	}
}

func TestRunAppendsCompletionNotification(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	store.SetNow(now)
	date := entities.DateOf(now)

	runner := newTestRunner(store, &fakeGenerator{}, 5)
	if _, err := runner.Run(context.Background(), "manual", date); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending notification, got %d", len(pending))
	}
	if pending[0].EventType != "campaign.finalized" {
		t.Fatalf("unexpected event type %s", pending[0].EventType)
	}
}

func TestStepOrderIsFixed(t *testing.T) {
	want := []string{
		"setup",
		"ingest_candidates",
		"dedupe_candidates",
		"assign_posts",
		"generate_articles",
		"select_top_articles",
		"populate_events",
		"populate_hero_image",
		"generate_subject",
		"populate_sections",
		"finalize",
		"notify_complete",
	}
	got := Runner{}.StepNames()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("step order changed:\n got %v\nwant %v", got, want)
	}
}
