package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(16)

	bus.Publish(Event{Type: TypeTickStarted, Symbol: "a"})
	bus.Publish(Event{Type: TypeTradeExecuted, Symbol: "b"})
	bus.Publish(Event{Type: TypeSessionEnded, Symbol: "c"})

	assert.Equal(t, "a", (<-sub).Symbol)
	assert.Equal(t, "b", (<-sub).Symbol)
	assert.Equal(t, "c", (<-sub).Symbol)
}

func TestBus_AllSubscribersReceive(t *testing.T) {
	bus := NewBus()
	first := bus.Subscribe(4)
	second := bus.Subscribe(4)

	bus.Publish(Event{Type: TypeTradeExecuted, Symbol: "BTCUSDT"})

	assert.Equal(t, TypeTradeExecuted, (<-first).Type)
	assert.Equal(t, TypeTradeExecuted, (<-second).Type)
}

func TestBus_PublishFillsTimestamp(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)

	bus.Publish(Event{Type: TypeTickStarted})
	e := <-sub
	assert.False(t, e.Timestamp.IsZero())

	stamped := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	bus.Publish(Event{Type: TypeTickStarted, Timestamp: stamped})
	assert.Equal(t, stamped, (<-sub).Timestamp)
}

func TestBus_PublishBlocksOnFullBuffer(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)

	bus.Publish(Event{Type: TypeTickStarted})

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeTradeExecuted})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("publish should block while the subscriber buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	<-sub // drain one slot
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish should complete after the buffer drains")
	}
}

func TestBus_UnsubscribeUnblocksPublisher(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)

	bus.Publish(Event{Type: TypeTickStarted}) // fills the buffer

	published := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeTradeExecuted})
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("publish should block while the subscriber buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	bus.Unsubscribe(sub)

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe must release the blocked publisher")
	}

	require.Eventually(t, func() bool {
		_, ok := <-sub
		return !ok
	}, time.Second, 5*time.Millisecond, "unsubscribed channel must be closed")

	// Later publishes no longer reach the removed subscriber
	bus.Publish(Event{Type: TypeSessionEnded})
	bus.Close()
}

func TestBus_UnsubscribeUnknownChannelIsNoOp(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub) // already removed, no panic, no double close

	bus.Publish(Event{Type: TypeTickStarted})
	bus.Close()
}

func TestBus_CloseEndsSubscriptions(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)

	bus.Close()

	_, ok := <-sub
	assert.False(t, ok)

	// Publishing and closing again must not panic
	bus.Publish(Event{Type: TypeTickStarted})
	bus.Close()

	late := bus.Subscribe(1)
	_, ok = <-late
	require.False(t, ok, "subscriptions after close are immediately closed")
}
