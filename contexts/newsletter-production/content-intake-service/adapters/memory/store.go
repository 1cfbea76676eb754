package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"herald/contexts/newsletter-production/content-intake-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/content-intake-service/domain/errors"
)

// Store is the in-memory post writer and seen-cache used by intake tests.
type Store struct {
	mu     sync.RWMutex
	posts  map[string]entities.ScoredPost // keyed by external_id
	seen   map[string]time.Time
	now    time.Time
	nextID int
}

func NewStore() *Store {
	return &Store{
		posts: make(map[string]entities.ScoredPost),
		seen:  make(map[string]time.Time),
	}
}

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
	return fmt.Sprintf("post-%04d", s.nextID), nil
}

func (s *Store) SavePost(_ context.Context, post entities.ScoredPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ExternalID]; exists {
		return domainerrors.ErrDuplicatePost
	}
	s.posts[post.ExternalID] = post
	return nil
}

func (s *Store) Seen(_ context.Context, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, exists := s.seen[externalID]
	if !exists {
		return false, nil
	}
	return s.clock().Before(expiry), nil
}

func (s *Store) MarkSeen(_ context.Context, externalID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[externalID] = s.clock().Add(ttl)
	return nil
}

// StoredPosts returns a snapshot of the stored posts for assertions.
func (s *Store) StoredPosts() []entities.ScoredPost {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.ScoredPost, 0, len(s.posts))
	for _, post := range s.posts {
		items = append(items, post)
	}
	return items
}

func (s *Store) clock() time.Time {
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}
