package mandi

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

// DefaultPollInterval matches the dashboard record refresh.
const DefaultPollInterval = 30 * time.Second

// FetchFunc loads the full record listing.
type FetchFunc func(ctx context.Context) ([]models.Lot, error)

// Poller refreshes a RecordCache periodically.
type Poller struct {
	fetch    FetchFunc
	cache    *RecordCache
	interval time.Duration
	seq      atomic.Uint64
	onUpdate func([]models.Lot)
	logger   *zap.Logger
}

// NewPoller builds a poller. A non-positive interval selects DefaultPollInterval.
func NewPoller(fetch FetchFunc, cache *RecordCache, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{fetch: fetch, cache: cache, interval: interval, logger: logger}
}

// OnUpdate registers a callback invoked with the cached records after every
// accepted refresh.
func (p *Poller) OnUpdate(fn func([]models.Lot)) {
	p.onUpdate = fn
}

// Refresh performs one poll. It reports whether the response was applied;
// stale responses are dropped without error.
func (p *Poller) Refresh(ctx context.Context) (bool, error) {
	seq := p.seq.Add(1)
	epoch := p.cache.Epoch()

	records, err := p.fetch(ctx)
	if err != nil {
		return false, err
	}
	if !p.cache.Apply(seq, epoch, records) {
		p.logger.Debug("discarding stale poll response", zap.Uint64("seq", seq))
		return false, nil
	}
	if p.onUpdate != nil {
		p.onUpdate(p.cache.List())
	}
	return true, nil
}

// Run polls immediately and then every interval until ctx is cancelled.
// Failed polls are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("record refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
