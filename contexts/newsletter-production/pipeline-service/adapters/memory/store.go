package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
	"herald/contexts/newsletter-production/pipeline-service/ports"
)

// Store is the in-memory implementation of every pipeline port, used by unit
// tests and local runs. IDs are sequential and the clock is settable so runs
// are deterministic.
type Store struct {
	mu sync.RWMutex

	campaigns map[string]entities.Campaign
	posts     map[string]entities.Post
	articles  map[string]entities.Article
	events    map[string]entities.Event
	links     map[string]map[string]struct{} // campaignID -> eventID set
	deals     map[string]entities.DiningDeal
	images    []entities.Image
	outbox    []outboxRow

	now    time.Time
	nextID int
}

type outboxRow struct {
	message ports.OutboxMessage
	status  string
}

func NewStore() *Store {
	return &Store{
		campaigns: make(map[string]entities.Campaign),
		posts:     make(map[string]entities.Post),
		articles:  make(map[string]entities.Article),
		events:    make(map[string]entities.Event),
		links:     make(map[string]map[string]struct{}),
		deals:     make(map[string]entities.DiningDeal),
	}
}

// SetNow pins the store clock; zero means real time.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("id-%04d", s.nextID), nil
}

func (s *Store) CreateCampaign(_ context.Context, campaign entities.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.campaigns {
		if existing.Date == campaign.Date {
			return domainerrors.ErrCampaignDateTaken
		}
	}
	s.campaigns[campaign.CampaignID] = campaign
	return nil
}

func (s *Store) FindCampaignByDate(_ context.Context, date string) (entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, campaign := range s.campaigns {
		if campaign.Date == strings.TrimSpace(date) {
			return campaign, nil
		}
	}
	return entities.Campaign{}, domainerrors.ErrCampaignNotFound
}

func (s *Store) UpdateCampaignStatus(_ context.Context, campaignID string, status entities.CampaignStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, exists := s.campaigns[campaignID]
	if !exists {
		return domainerrors.ErrCampaignNotFound
	}
	campaign.Status = status
	campaign.UpdatedAt = s.clock()
	s.campaigns[campaignID] = campaign
	return nil
}

func (s *Store) SetCampaignSubject(_ context.Context, campaignID string, subject string) error {
	return s.mutateCampaign(campaignID, func(campaign *entities.Campaign) {
		campaign.Subject = subject
	})
}

func (s *Store) SetCampaignHeroImage(_ context.Context, campaignID string, url string) error {
	return s.mutateCampaign(campaignID, func(campaign *entities.Campaign) {
		campaign.HeroImageURL = url
	})
}

func (s *Store) SetCampaignSections(_ context.Context, campaignID string, sections []entities.Section) error {
	return s.mutateCampaign(campaignID, func(campaign *entities.Campaign) {
		campaign.Sections = append([]entities.Section(nil), sections...)
	})
}

func (s *Store) mutateCampaign(campaignID string, mutate func(*entities.Campaign)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, exists := s.campaigns[campaignID]
	if !exists {
		return domainerrors.ErrCampaignNotFound
	}
	mutate(&campaign)
	campaign.UpdatedAt = s.clock()
	s.campaigns[campaignID] = campaign
	return nil
}

func (s *Store) ListSentCampaigns(_ context.Context, sinceDate string) ([]entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Campaign, 0)
	for _, campaign := range s.campaigns {
		if campaign.Status == entities.CampaignStatusSent && campaign.Date >= sinceDate {
			items = append(items, campaign)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date < items[j].Date })
	return items, nil
}

func (s *Store) SeedCampaign(campaign entities.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.CampaignID] = campaign
}

func (s *Store) SeedPost(post entities.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.PostID] = post
}

func (s *Store) SeedEvent(event entities.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.EventID] = event
}

func (s *Store) SeedDeal(deal entities.DiningDeal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[deal.DealID] = deal
}

func (s *Store) SeedImage(image entities.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, image)
}

// Post returns a copy of a stored post for assertions.
func (s *Store) Post(postID string) (entities.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[postID]
	return post, ok
}

// Campaign returns a copy of a stored campaign for assertions.
func (s *Store) Campaign(campaignID string) (entities.Campaign, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaign, ok := s.campaigns[campaignID]
	return campaign, ok
}

// LinkedEvents returns the event ids linked to a campaign for assertions.
func (s *Store) LinkedEvents(campaignID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.links[campaignID]))
	for eventID := range s.links[campaignID] {
		ids = append(ids, eventID)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) ListScoredUnattached(_ context.Context, scoredAfter time.Time, limit int) ([]entities.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Post, 0)
	for _, post := range s.posts {
		if post.Attached() || post.ScoredAt.Before(scoredAfter) {
			continue
		}
		items = append(items, post)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListPostsByCampaign(_ context.Context, campaignID string) ([]entities.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Post, 0)
	for _, post := range s.posts {
		if post.CampaignID == campaignID {
			items = append(items, post)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return items, nil
}

func (s *Store) ListExternalIDsByCampaigns(_ context.Context, campaignIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(campaignIDs))
	for _, campaignID := range campaignIDs {
		wanted[campaignID] = struct{}{}
	}

	ids := make([]string, 0)
	for _, post := range s.posts {
		if _, ok := wanted[post.CampaignID]; ok {
			ids = append(ids, post.ExternalID)
		}
	}
	return ids, nil
}

func (s *Store) AssignPostsToCampaign(_ context.Context, campaignID string, postIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, postID := range postIDs {
		post, exists := s.posts[postID]
		if !exists {
			return domainerrors.ErrPostNotFound
		}
		if post.Attached() && post.CampaignID != campaignID {
			continue
		}
		post.CampaignID = campaignID
		s.posts[postID] = post
	}
	return nil
}

func (s *Store) ReleasePosts(_ context.Context, postIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, postID := range postIDs {
		post, exists := s.posts[postID]
		if !exists {
			continue
		}
		post.CampaignID = ""
		s.posts[postID] = post
	}
	return nil
}

func (s *Store) CreateArticle(_ context.Context, article entities.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.articles {
		if existing.CampaignID == article.CampaignID && existing.PostID == article.PostID {
			return nil
		}
	}
	s.articles[article.ArticleID] = article
	return nil
}

func (s *Store) ListArticlesByCampaign(_ context.Context, campaignID string) ([]entities.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Article, 0)
	for _, article := range s.articles {
		if article.CampaignID == campaignID {
			items = append(items, article)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ArticleID < items[j].ArticleID })
	return items, nil
}

func (s *Store) ApplyArticleSelection(_ context.Context, campaignID string, ranks map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for articleID := range ranks {
		article, exists := s.articles[articleID]
		if !exists || article.CampaignID != campaignID {
			return domainerrors.ErrArticleNotFound
		}
	}
	now := s.clock()
	for articleID, article := range s.articles {
		if article.CampaignID != campaignID {
			continue
		}
		if rank, active := ranks[articleID]; active {
			article.IsActive = true
			article.Rank = rank
		} else {
			article.IsActive = false
			article.Rank = 0
		}
		article.UpdatedAt = now
		s.articles[articleID] = article
	}
	return nil
}

func (s *Store) ListEventsOnDate(_ context.Context, date string) ([]entities.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Event, 0)
	for _, event := range s.events {
		if event.EventDate == date {
			items = append(items, event)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Title < items[j].Title })
	return items, nil
}

func (s *Store) LinkCampaignEvents(_ context.Context, campaignID string, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	linked, exists := s.links[campaignID]
	if !exists {
		linked = make(map[string]struct{})
		s.links[campaignID] = linked
	}
	for _, eventID := range eventIDs {
		linked[eventID] = struct{}{}
	}
	return nil
}

func (s *Store) ListDealsForWeekday(_ context.Context, weekday time.Weekday) ([]entities.DiningDeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.DiningDeal, 0)
	for _, deal := range s.deals {
		if deal.Weekday == weekday {
			items = append(items, deal)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Title < items[j].Title })
	return items, nil
}

func (s *Store) PickImage(_ context.Context, tag string) (entities.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, image := range s.images {
		if strings.Contains(image.Tags, tag) {
			return image, nil
		}
	}
	return entities.Image{}, domainerrors.ErrImageNotFound
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.outbox {
		if row.message.OutboxID == envelope.EventID {
			if !bytes.Equal(row.message.Payload, payload) {
				return domainerrors.ErrOutboxConflict
			}
			return nil
		}
	}
	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		status: "pending",
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.status != "pending" {
			continue
		}
		items = append(items, row.message)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, row := range s.outbox {
		if row.message.OutboxID == outboxID {
			s.outbox[i].status = "published"
			return nil
		}
	}
	return domainerrors.ErrOutboxConflict
}

// clock is the unlocked variant of Now for callers already holding the lock.
func (s *Store) clock() time.Time {
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}
