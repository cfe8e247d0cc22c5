package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/querystream-gateway/backend/internal/model"
)

func testEvent(traceID string) model.Event {
	return model.Event{
		UserID:  "u1",
		TraceID: traceID,
		Payload: json.RawMessage(`{"type":"QueryResult"}`),
	}
}

func TestBusBroadcastsToAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	chA, cancelA := bus.Subscribe()
	defer cancelA()
	chB, cancelB := bus.Subscribe()
	defer cancelB()

	if bus.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}

	bus.Publish(testEvent("t1"))

	for name, ch := range map[string]<-chan model.Event{"A": chA, "B": chB} {
		select {
		case ev := <-ch:
			if ev.TraceID != "t1" {
				t.Fatalf("subscriber %s got wrong event: %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive the event", name)
		}
	}
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()
	// Cancel is idempotent.
	cancel()

	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", bus.SubscriberCount())
	}

	// The channel is closed, not left dangling.
	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel closed after cancel")
	}

	bus.Publish(testEvent("t1"))
}

func TestBusDropsForLaggingSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; the publisher must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(testEvent("t1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a lagging subscriber")
	}

	// The buffered prefix is still readable.
	for i := 0; i < subscriberBuffer; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, i)
		}
	}
}

func TestBusCloseShutsSubscribers(t *testing.T) {
	bus := NewBus()

	ch, _ := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel closed on bus close")
	}

	// Subscribing after close yields a closed channel.
	late, cancel := bus.Subscribe()
	defer cancel()
	if _, ok := <-late; ok {
		t.Fatal("expected closed channel for late subscriber")
	}

	// Publishing after close is a no-op.
	bus.Publish(testEvent("t1"))
}
