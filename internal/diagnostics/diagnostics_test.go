package diagnostics

import (
	"testing"
	"time"

	"github.com/kepler-ems/planner/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToSubscriber(t *testing.T) {
	b := NewBus(zerolog.Nop())
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	rec := b.Publish("executor", model.KindStaleForecast, "plan is stale")

	select {
	case got := <-ch:
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "executor", got.Component)
		assert.Equal(t, model.KindStaleForecast, got.Kind)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the published record")
	}
}

func TestUnsubscribe_StopsFurtherDelivery(t *testing.T) {
	b := NewBus(zerolog.Nop())
	ch, unsubscribe := b.Subscribe()
	unsubscribe()

	b.Publish("executor", model.KindStaleForecast, "plan is stale")

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPublish_FansOutToMultipleSubscribers(t *testing.T) {
	b := NewBus(zerolog.Nop())
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	b.Publish("kepler", model.KindInfeasible, "no feasible schedule")

	for _, ch := range []<-chan Record{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, model.KindInfeasible, got.Kind)
		case <-time.After(time.Second):
			t.Fatal("a subscriber missed the published record")
		}
	}
}

func TestPublish_DoesNotBlockWhenSubscriberBufferIsFull(t *testing.T) {
	b := NewBus(zerolog.Nop())
	_, unsubscribe := b.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish("executor", model.KindStaleForecast, "flood")
		}
		close(done)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
