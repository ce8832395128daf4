package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

var (
	ErrDealExists   = errors.New("deal already exists")
	ErrDealNotFound = errors.New("deal not found")
	ErrDealArchived = errors.New("deal is archived")
)

// MemoryDealStore is the in-process fallback used when MONGO_URI is unset,
// and the store the unit tests run against.
type MemoryDealStore struct {
	mu       sync.RWMutex
	live     map[string]model.Deal
	archived map[string]model.Deal
}

func NewMemoryDealStore() *MemoryDealStore {
	return &MemoryDealStore{
		live:     map[string]model.Deal{},
		archived: map[string]model.Deal{},
	}
}

func (s *MemoryDealStore) Save(ctx context.Context, deal model.Deal) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[deal.DealID]; ok {
		return fmt.Errorf("%w: %s", ErrDealExists, deal.DealID)
	}
	if _, ok := s.archived[deal.DealID]; ok {
		return fmt.Errorf("%w: %s", ErrDealExists, deal.DealID)
	}
	s.live[deal.DealID] = deal.Clone()
	return nil
}

func (s *MemoryDealStore) Get(ctx context.Context, dealID string) (*model.Deal, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	deal, ok := s.live[dealID]
	if !ok {
		return nil, nil
	}
	out := deal.Clone()
	return &out, nil
}

func (s *MemoryDealStore) Update(ctx context.Context, deal model.Deal) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.archived[deal.DealID]; ok {
		return fmt.Errorf("%w: %s", ErrDealArchived, deal.DealID)
	}
	if _, ok := s.live[deal.DealID]; !ok {
		return fmt.Errorf("%w: %s", ErrDealNotFound, deal.DealID)
	}
	s.live[deal.DealID] = deal.Clone()
	return nil
}

// Archive moves the record to the archive map. Further updates fail with a
// terminal-state error; the archived copy stays readable forever.
func (s *MemoryDealStore) Archive(ctx context.Context, deal model.Deal) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.archived[deal.DealID]; ok {
		return fmt.Errorf("%w: %s", ErrDealArchived, deal.DealID)
	}
	s.archived[deal.DealID] = deal.Clone()
	delete(s.live, deal.DealID)
	return nil
}

func (s *MemoryDealStore) GetArchived(ctx context.Context, dealID string) (*model.Deal, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	deal, ok := s.archived[dealID]
	if !ok {
		return nil, nil
	}
	out := deal.Clone()
	return &out, nil
}

func (s *MemoryDealStore) ListOpen(ctx context.Context) ([]model.Deal, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Deal, 0, len(s.live))
	for _, deal := range s.live {
		if deal.Status.Active() {
			out = append(out, deal.Clone())
		}
	}
	return out, nil
}
