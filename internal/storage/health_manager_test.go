package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/chrissnell/xrdquant/internal/types"
)

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager()
	assert.False(t, hm.IsHealthy("sqlite", time.Minute))

	hm.UpdateHealth("sqlite", CreateHealthData(StatusHealthy, "ok", nil))
	assert.True(t, hm.IsHealthy("sqlite", time.Minute))

	hm.UpdateHealth("timescaledb", CreateHealthData(StatusUnhealthy, "down", errors.New("refused")))
	assert.False(t, hm.IsHealthy("timescaledb", time.Minute))
	h, ok := hm.GetHealth("timescaledb")
	assert.True(t, ok)
	assert.Equal(t, "refused", h.Error)

	stale := CreateHealthData(StatusHealthy, "old", nil)
	stale.LastCheck = time.Now().Add(-time.Hour)
	hm.UpdateHealth("sqlite", stale)
	assert.False(t, hm.IsHealthy("sqlite", time.Minute))
	assert.Len(t, hm.GetAllHealth(), 2)
}

func TestProcessFitsContinuesAfterErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan types.FitRecord)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var seen []string

	wg.Add(1)
	go ProcessFits(ctx, &wg, ch, func(_ context.Context, r types.FitRecord) error {
		mu.Lock()
		seen = append(seen, r.Sample)
		mu.Unlock()
		if r.Sample == "bad" {
			return errors.New("boom")
		}
		return nil
	}, "test", zap.NewNop().Sugar())

	ch <- types.FitRecord{Sample: "bad"}
	ch <- types.FitRecord{Sample: "good"}
	cancel()
	wg.Wait()

	assert.Equal(t, []string{"bad", "good"}, seen)
}
