package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict indicates the document changed since it was read.
	ErrVersionConflict = errors.New("record was modified concurrently")
	// ErrDuplicate indicates a document with the same id already exists.
	ErrDuplicate = errors.New("record already exists")
)

// LotFilter narrows lot listings. Zero fields do not filter. From/To select
// lots with activity (creation, a split or a standalone sale) in [From, To).
type LotFilter struct {
	FarmerID string
	TraderID string
	From     time.Time
	To       time.Time
}

// LotRepository persists lots. Writes are guarded by the lot version.
type LotRepository interface {
	InsertLot(ctx context.Context, lot models.Lot) error
	FindLot(ctx context.Context, id string) (models.Lot, error)
	ListLots(ctx context.Context, filter LotFilter) ([]models.Lot, error)
	ReplaceLot(ctx context.Context, lot models.Lot, expectedVersion int64) error
	DeleteLot(ctx context.Context, id string, expectedVersion int64) error
}

// SettlementRepository stores the daily committee digests.
type SettlementRepository interface {
	SaveDailySettlement(ctx context.Context, settlement models.DailySettlement) error
}

// Matches reports whether the lot satisfies the filter. Stores that cannot
// push the filter down use it directly.
func (f LotFilter) Matches(lot models.Lot) bool {
	if f.FarmerID != "" && lot.FarmerID != f.FarmerID {
		return false
	}
	if f.TraderID != "" && !tradedWith(lot, f.TraderID) {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	if f.Covers(lot.CreatedAt) {
		return true
	}
	if lot.SoldAt != nil && f.Covers(*lot.SoldAt) {
		return true
	}
	for _, s := range lot.Splits {
		if f.Covers(s.Date) {
			return true
		}
	}
	return false
}

// Covers reports whether t falls inside the filter's [From, To) window.
func (f LotFilter) Covers(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To) {
		return false
	}
	return true
}

func tradedWith(lot models.Lot, traderID string) bool {
	if lot.TraderID == traderID {
		return true
	}
	for _, s := range lot.Splits {
		if s.TraderID == traderID {
			return true
		}
	}
	return false
}
