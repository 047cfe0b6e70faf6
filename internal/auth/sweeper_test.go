package auth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
)

type countingBlacklist struct {
	failingBlacklist
	sweeps atomic.Int32
	panic  bool
}

func (c *countingBlacklist) Sweep(context.Context) (int, error) {
	n := c.sweeps.Add(1)
	if c.panic && n == 1 {
		panic("boom")
	}
	return 1, nil
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bl := &countingBlacklist{}
	done := StartSweeper(ctx, bl, 5*time.Millisecond, zap.NewNop().Sugar(), metrics.NewRegistry())

	require.Eventually(t, func() bool { return bl.sweeps.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperSurvivesPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bl := &countingBlacklist{panic: true}
	StartSweeper(ctx, bl, 5*time.Millisecond, zap.NewNop().Sugar(), nil)

	assert.Eventually(t, func() bool { return bl.sweeps.Load() >= 2 }, time.Second, time.Millisecond)
}
