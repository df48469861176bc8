package mandi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

func lotAt(id string, version int64) models.Lot {
	return models.Lot{ID: id, Version: version}
}

func TestRecordCache_Apply(t *testing.T) {
	c := NewRecordCache()

	assert.True(t, c.Apply(2, 0, []models.Lot{lotAt("a", 2), lotAt("b", 1)}))
	assert.False(t, c.Apply(1, 0, []models.Lot{lotAt("a", 1)}), "older sequence")
	assert.False(t, c.Apply(2, 0, []models.Lot{}), "same sequence")

	assert.True(t, c.Apply(3, 0, []models.Lot{lotAt("a", 1)}))
	a, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(2), a.Version, "version never goes backwards")
	_, ok = c.Get("b")
	assert.False(t, ok, "records absent from a listing are dropped")
}

func TestRecordCache_InvalidateDiscardsInFlight(t *testing.T) {
	c := NewRecordCache()
	epoch := c.Epoch()
	c.Put(lotAt("a", 1))

	c.Invalidate()
	assert.Empty(t, c.List())
	assert.False(t, c.Apply(1, epoch, []models.Lot{lotAt("a", 1)}))
	assert.True(t, c.Apply(2, c.Epoch(), []models.Lot{lotAt("z", 1)}))
}

func TestRecordCache_Put(t *testing.T) {
	c := NewRecordCache()
	assert.True(t, c.Put(lotAt("a", 3)))
	assert.False(t, c.Put(lotAt("a", 2)))
	assert.True(t, c.Put(lotAt("a", 3)))
}

func TestPoller_SlowResponseDoesNotOverwriteNewer(t *testing.T) {
	cache := NewRecordCache()
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	fetch := func(ctx context.Context) ([]models.Lot, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-release
			return []models.Lot{lotAt("a", 1)}, nil
		}
		return []models.Lot{lotAt("a", 2), lotAt("b", 1)}, nil
	}
	p := NewPoller(fetch, cache, time.Hour, nil)

	slow := make(chan bool, 1)
	go func() {
		applied, _ := p.Refresh(context.Background())
		slow <- applied
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)

	applied, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, applied)

	close(release)
	assert.False(t, <-slow)
	assert.Len(t, cache.List(), 2)
	a, _ := cache.Get("a")
	assert.Equal(t, int64(2), a.Version)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	cache := NewRecordCache()
	updates := make(chan []models.Lot, 8)
	fails := true
	fetch := func(context.Context) ([]models.Lot, error) {
		if fails {
			fails = false
			return nil, errors.New("network down")
		}
		return []models.Lot{lotAt("a", 1)}, nil
	}
	p := NewPoller(fetch, cache, 5*time.Millisecond, nil)
	p.OnUpdate(func(records []models.Lot) {
		select {
		case updates <- records:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case records := <-updates:
		assert.Len(t, records, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("poller never recovered from a failed refresh")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
