package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strptr(s string) *string { return &s }

func timeptr(t time.Time) *time.Time { return &t }

// memItemStore mirrors the persistence invariants in memory: URL identity,
// forward-only processing state, guarded delivery transitions.
type memItemStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*domain.Item
	byURL  map[string]int64

	claimedAt map[int64]time.Time
	now       func() time.Time

	upsertErr  error
	listErr    error
	saveErr    error
	claimErr   error
	commitErr  error
	reclaimErr error
}

func newMemItemStore() *memItemStore {
	return &memItemStore{
		items:     make(map[int64]*domain.Item),
		byURL:     make(map[string]int64),
		claimedAt: make(map[int64]time.Time),
		now:       time.Now,
	}
}

func (s *memItemStore) seed(item domain.Item) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	if item.ProcessingState == "" {
		item.ProcessingState = domain.ProcessingNew
	}
	if item.DeliveryState == "" {
		item.DeliveryState = domain.DeliveryUnsent
	}
	s.items[item.ID] = &item
	s.byURL[item.URL] = item.ID
	return item.ID
}

func (s *memItemStore) get(id int64) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[id]
}

func (s *memItemStore) Upsert(_ context.Context, sourceID int64, raw domain.RawItem) (bool, error) {
	if s.upsertErr != nil {
		return false, s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byURL[raw.URL]; ok {
		existing := s.items[id]
		existing.Title = raw.Title
		if existing.PublishedAt == nil {
			existing.PublishedAt = raw.PublishedAt
		}
		return false, nil
	}

	s.nextID++
	item := &domain.Item{
		ID:              s.nextID,
		SourceID:        sourceID,
		URL:             raw.URL,
		Title:           raw.Title,
		PublishedAt:     raw.PublishedAt,
		ScrapedAt:       s.now(),
		ProcessingState: domain.ProcessingNew,
		DeliveryState:   domain.DeliveryUnsent,
	}
	if raw.Content != "" {
		item.Content = strptr(raw.Content)
	}
	s.items[item.ID] = item
	s.byURL[item.URL] = item.ID
	return true, nil
}

func (s *memItemStore) GetByURL(_ context.Context, normalizedURL string) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byURL[normalizedURL]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	found := *s.items[id]
	return &found, nil
}

func (s *memItemStore) ListByProcessingStates(_ context.Context, states ...domain.ProcessingState) ([]domain.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[domain.ProcessingState]bool, len(states))
	for _, state := range states {
		wanted[state] = true
	}
	var out []domain.Item
	for id := int64(1); id <= s.nextID; id++ {
		item, ok := s.items[id]
		if ok && wanted[item.ProcessingState] {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *memItemStore) ListSummarized(_ context.Context, since time.Time) ([]domain.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Item
	for id := int64(1); id <= s.nextID; id++ {
		item, ok := s.items[id]
		if ok && item.ProcessingState == domain.ProcessingSummarized && !item.EffectiveTime().Before(since) {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *memItemStore) SaveEnrichment(_ context.Context, itemID int64, content string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	if item.ProcessingState != domain.ProcessingNew {
		return domain.ErrInvalidStateTransition
	}
	item.Content = strptr(content)
	item.ProcessingState = domain.ProcessingEnriched
	return nil
}

func (s *memItemStore) SaveSummary(_ context.Context, itemID int64, summary string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	if item.ProcessingState == domain.ProcessingSummarized {
		return domain.ErrInvalidStateTransition
	}
	item.Summary = strptr(summary)
	item.ProcessingState = domain.ProcessingSummarized
	item.SummarizationFailed = false
	return nil
}

func (s *memItemStore) MarkSummarizationFailed(_ context.Context, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	item.SummarizationFailed = true
	return nil
}

func (s *memItemStore) MarkSending(_ context.Context, itemIDs []int64) ([]int64, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []int64
	for _, id := range itemIDs {
		item, ok := s.items[id]
		if ok && item.DeliveryState == domain.DeliveryUnsent {
			item.DeliveryState = domain.DeliverySending
			s.claimedAt[id] = s.now()
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

func (s *memItemStore) MarkSent(_ context.Context, itemIDs []int64) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	return s.moveFromSending(itemIDs, domain.DeliverySent)
}

func (s *memItemStore) MarkUnsent(_ context.Context, itemIDs []int64) error {
	return s.moveFromSending(itemIDs, domain.DeliveryUnsent)
}

func (s *memItemStore) moveFromSending(itemIDs []int64, to domain.DeliveryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range itemIDs {
		item, ok := s.items[id]
		if ok && item.DeliveryState == domain.DeliverySending {
			item.DeliveryState = to
			delete(s.claimedAt, id)
		}
	}
	return nil
}

func (s *memItemStore) ReclaimStuckSending(_ context.Context, claimedBefore time.Time) (int64, error) {
	if s.reclaimErr != nil {
		return 0, s.reclaimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var reclaimed int64
	for id, at := range s.claimedAt {
		if at.Before(claimedBefore) {
			s.items[id].DeliveryState = domain.DeliveryUnsent
			delete(s.claimedAt, id)
			reclaimed++
		}
	}
	return reclaimed, nil
}
