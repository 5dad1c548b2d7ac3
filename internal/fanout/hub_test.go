package fanout

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aetherlink/commandcenter/internal/eventstore"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := New(nil)
	ch := h.Subscribe("sub-1")

	h.Publish(eventstore.Event{EventID: "e1", EventType: "x"})

	select {
	case msg := <-ch:
		require.Contains(t, string(msg), "e1")
	case <-time.After(time.Second):
		t.Fatal("expected a message")
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	var drops atomic.Int32
	h := New(func(subscriberID string) { drops.Add(1) })
	h.Subscribe("slow")

	for i := 0; i < SubscriberQueueSize+10; i++ {
		h.Publish(eventstore.Event{EventID: "e", EventType: "x"})
	}

	require.Greater(t, drops.Load(), int32(0))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New(nil)
	ch := h.Subscribe("sub-1")
	h.Unsubscribe("sub-1")

	_, ok := <-ch
	require.False(t, ok)
	require.Equal(t, 0, h.SubscriberCount())
}

func TestNewSubscriberMissesPriorHistory(t *testing.T) {
	h := New(nil)
	h.Publish(eventstore.Event{EventID: "before", EventType: "x"})

	ch := h.Subscribe("late")
	select {
	case msg := <-ch:
		t.Fatalf("expected no history, got %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
