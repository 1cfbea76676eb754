package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"herald/contexts/newsletter-production/content-intake-service/adapters/memory"
	"herald/contexts/newsletter-production/content-intake-service/domain/entities"
)

type fakeParser struct {
	itemsByURL map[string][]entities.Item
	failURLs   map[string]bool
}

func (p *fakeParser) Fetch(_ context.Context, url string) ([]entities.Item, error) {
	if p.failURLs[url] {
		return nil, errors.New("feed unreachable")
	}
	return p.itemsByURL[url], nil
}

type fakeScorer struct {
	scores   map[string]float64
	failIDs  map[string]bool
	scoreLog []string
}

func (s *fakeScorer) Score(_ context.Context, item entities.Item) (float64, error) {
	s.scoreLog = append(s.scoreLog, item.ExternalID)
	if s.failIDs[item.ExternalID] {
		return 0, errors.New("model unavailable")
	}
	return s.scores[item.ExternalID], nil
}

func newTestService(store *memory.Store, parser *fakeParser, scorer *fakeScorer, urls []string) Service {
	return Service{
		Parser:   parser,
		Scorer:   scorer,
		Posts:    store,
		Seen:     store,
		Clock:    store,
		IDGen:    store,
		FeedURLs: urls,
	}
}

func TestFetchAndScoreStoresScoredPosts(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC))

	parser := &fakeParser{itemsByURL: map[string][]entities.Item{
		"https://feeds.example.com/news": {
			{ExternalID: "guid-1", Title: "River fest returns", Link: "https://example.com/1"},
			{ExternalID: "guid-2", Title: "New tram line opens", Link: "https://example.com/2"},
		},
	}}
	scorer := &fakeScorer{scores: map[string]float64{"guid-1": 8.5, "guid-2": 6.0}}

	svc := newTestService(store, parser, scorer, []string{"https://feeds.example.com/news"})
	report, err := svc.FetchAndScore(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.PostsStored != 2 {
		t.Fatalf("expected 2 stored posts, got %d", report.PostsStored)
	}

	stored := store.StoredPosts()
	if len(stored) != 2 {
		t.Fatalf("expected 2 posts in store, got %d", len(stored))
	}
	for _, post := range stored {
		if post.Score == 0 || post.ScoredAt.IsZero() {
			t.Fatalf("stored post %s must carry score and scored_at", post.ExternalID)
		}
	}
}

func TestFetchAndScoreSkipsSeenItems(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC))
	_ = store.MarkSeen(context.Background(), "guid-1", time.Hour)

	parser := &fakeParser{itemsByURL: map[string][]entities.Item{
		"feed": {{ExternalID: "guid-1", Title: "Already processed"}},
	}}
	scorer := &fakeScorer{}

	svc := newTestService(store, parser, scorer, []string{"feed"})
	report, err := svc.FetchAndScore(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Skipped != 1 || report.PostsStored != 0 {
		t.Fatalf("expected seen item skipped, got %+v", report)
	}
	if len(scorer.scoreLog) != 0 {
		t.Fatalf("seen items must never reach the scorer, got %v", scorer.scoreLog)
	}
}

func TestFetchAndScoreToleratesFeedAndScoringFailures(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC))

	parser := &fakeParser{
		itemsByURL: map[string][]entities.Item{
			"good": {
				{ExternalID: "guid-ok", Title: "Fine"},
				{ExternalID: "guid-bad", Title: "Unscorable"},
				{ExternalID: "", Title: "No identity"},
			},
		},
		failURLs: map[string]bool{"down": true},
	}
	scorer := &fakeScorer{
		scores:  map[string]float64{"guid-ok": 5},
		failIDs: map[string]bool{"guid-bad": true},
	}

	svc := newTestService(store, parser, scorer, []string{"down", "good"})
	report, err := svc.FetchAndScore(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.FeedsFetched != 1 {
		t.Fatalf("expected one fetched feed, got %d", report.FeedsFetched)
	}
	if report.Failures != 2 {
		t.Fatalf("expected feed failure plus scoring failure, got %d", report.Failures)
	}
	if report.PostsStored != 1 {
		t.Fatalf("expected the scorable item stored, got %d", report.PostsStored)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected the identity-less item skipped, got %d", report.Skipped)
	}
}

func TestFetchAndScoreMarksDuplicateAsSkipped(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC))

	parser := &fakeParser{itemsByURL: map[string][]entities.Item{
		"feed": {{ExternalID: "guid-1", Title: "Story"}},
	}}
	scorer := &fakeScorer{scores: map[string]float64{"guid-1": 4}}
	svc := newTestService(store, parser, scorer, []string{"feed"})

	if _, err := svc.FetchAndScore(context.Background()); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	// Fresh cache, same store: the unique constraint still dedupes.
	rescored := newTestService(store, parser, scorer, []string{"feed"})
	rescored.Seen = memory.NewStore()
	report, err := rescored.FetchAndScore(context.Background())
	if err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if report.PostsStored != 0 || report.Skipped != 1 {
		t.Fatalf("duplicate must be skipped, got %+v", report)
	}
	if len(store.StoredPosts()) != 1 {
		t.Fatalf("duplicate must not be stored twice")
	}
}
