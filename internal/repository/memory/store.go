package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/repository"
)

// Store is an in-process implementation of the lot and settlement
// repositories, used for local runs without MongoDB and in tests.
type Store struct {
	mu          sync.RWMutex
	lots        map[string]models.Lot
	settlements map[string]models.DailySettlement
}

var (
	_ repository.LotRepository        = (*Store)(nil)
	_ repository.SettlementRepository = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		lots:        make(map[string]models.Lot),
		settlements: make(map[string]models.DailySettlement),
	}
}

func (s *Store) InsertLot(_ context.Context, lot models.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lots[lot.ID]; exists {
		return repository.ErrDuplicate
	}
	s.lots[lot.ID] = clone(lot)
	return nil
}

func (s *Store) FindLot(_ context.Context, id string) (models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lot, ok := s.lots[id]
	if !ok {
		return models.Lot{}, repository.ErrNotFound
	}
	return clone(lot), nil
}

func (s *Store) ListLots(_ context.Context, filter repository.LotFilter) ([]models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lots := make([]models.Lot, 0, len(s.lots))
	for _, lot := range s.lots {
		if filter.Matches(lot) {
			lots = append(lots, clone(lot))
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].CreatedAt.After(lots[j].CreatedAt)
	})
	return lots, nil
}

func (s *Store) ReplaceLot(_ context.Context, lot models.Lot, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.lots[lot.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	s.lots[lot.ID] = clone(lot)
	return nil
}

func (s *Store) DeleteLot(_ context.Context, id string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.lots[id]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	delete(s.lots, id)
	return nil
}

func (s *Store) SaveDailySettlement(_ context.Context, settlement models.DailySettlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[settlement.Date.Format("2006-01-02")] = settlement
	return nil
}

// DailySettlements returns the stored digests keyed by day.
func (s *Store) DailySettlements() map[string]models.DailySettlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.DailySettlement, len(s.settlements))
	for k, v := range s.settlements {
		out[k] = v
	}
	return out
}

func clone(lot models.Lot) models.Lot {
	if lot.Splits != nil {
		lot.Splits = append([]models.Split(nil), lot.Splits...)
	}
	if lot.SoldAt != nil {
		soldAt := *lot.SoldAt
		lot.SoldAt = &soldAt
	}
	return lot
}
