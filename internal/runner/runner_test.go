package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicTask_RunsAfterInitialDelayThenOnInterval(t *testing.T) {
	r := New(zerolog.Nop())
	var runs int32

	r.Add(&PeriodicTask{
		Name:         "tick",
		InitialDelay: 5 * time.Millisecond,
		Interval:     10 * time.Millisecond,
		RunFunc: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	r.Stop()
}

func TestStop_HaltsFurtherRuns(t *testing.T) {
	r := New(zerolog.Nop())
	var runs int32

	r.Add(&PeriodicTask{
		Name:         "tick",
		InitialDelay: time.Millisecond,
		Interval:     5 * time.Millisecond,
		RunFunc: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})

	ctx := context.Background()
	r.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	after := atomic.LoadInt32(&runs)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs), "no run should happen after Stop returns")
}
