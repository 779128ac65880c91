package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_FanOut(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	a, cancelA := b.Subscribe(4)
	defer cancelA()
	c, cancelC := b.Subscribe(4)
	defer cancelC()

	b.Publish(Event{Kind: EventTurnAppended, Data: map[string]any{"index": 0}})

	for _, ch := range []<-chan Event{a, c} {
		ev, ok := Next(context.Background(), ch)
		require.True(t, ok)
		assert.Equal(t, EventTurnAppended, ev.Kind)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestEventBus_PublishNeverBlocks(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Kind: EventPhaseChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Equal(t, int64(9), b.Dropped())
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewEventBus()
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Kind: EventSessionFinished})
}

func TestEventBus_NextHonoursContext(t *testing.T) {
	b := NewEventBus()
	defer b.Close()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	_, ok := Next(ctx, ch)
	assert.False(t, ok)
}

func TestScoped_StampsSessionID(t *testing.T) {
	b := NewEventBus()
	defer b.Close()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	Scoped{SessionID: "abc", Target: b}.Publish(Event{Kind: EventSessionStarted})

	ev := <-ch
	assert.Equal(t, "abc", ev.SessionID)

	Scoped{SessionID: "abc"}.Publish(Event{Kind: EventSessionStarted})
}
