package mandi

import (
	"sort"
	"sync"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

// RecordCache holds the caller's lots between polls.
//
// Poll responses are applied only when their sequence number is newer than
// the last applied one and no Invalidate happened while they were in flight.
// Within an applied response a record never moves back to an older version.
type RecordCache struct {
	mu         sync.RWMutex
	records    map[string]models.Lot
	epoch      uint64
	appliedSeq uint64
}

// NewRecordCache returns an empty cache.
func NewRecordCache() *RecordCache {
	return &RecordCache{records: make(map[string]models.Lot)}
}

// Epoch returns the current invalidation epoch. Capture it before issuing a
// request and pass it to Apply.
func (c *RecordCache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Invalidate drops every record, e.g. on logout or a profile change. Responses
// to requests issued before the call are discarded.
func (c *RecordCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.records = make(map[string]models.Lot)
}

// Apply replaces the cached set with a full listing. It reports whether the
// listing was accepted.
func (c *RecordCache) Apply(seq, epoch uint64, records []models.Lot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || seq <= c.appliedSeq {
		return false
	}
	c.appliedSeq = seq

	next := make(map[string]models.Lot, len(records))
	for _, lot := range records {
		if current, ok := c.records[lot.ID]; ok && current.Version > lot.Version {
			lot = current
		}
		next[lot.ID] = lot
	}
	c.records = next
	return true
}

// Put stores a single record fetched or returned by a mutation. Older
// versions than the cached one are ignored.
func (c *RecordCache) Put(lot models.Lot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.records[lot.ID]; ok && current.Version > lot.Version {
		return false
	}
	c.records[lot.ID] = lot
	return true
}

// Get returns a cached record.
func (c *RecordCache) Get(id string) (models.Lot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lot, ok := c.records[id]
	return lot, ok
}

// List returns the cached records, newest first.
func (c *RecordCache) List() []models.Lot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Lot, 0, len(c.records))
	for _, lot := range c.records {
		out = append(out, lot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
