package service

import (
	"testing"
	"time"
)

func TestEventBusPublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventTypeVideoLoaded)

	bus.Publish(Event{
		Type:   EventTypeVideoLoaded,
		Source: "test",
		Data:   map[string]interface{}{"path": "/tmp/clip.mp4"},
	})

	select {
	case event := <-ch:
		if event.Type != EventTypeVideoLoaded {
			t.Errorf("Expected video.loaded, got %s", event.Type)
		}
		if event.Source != "test" {
			t.Errorf("Expected source test, got %s", event.Source)
		}
		if event.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestEventBusRegistrationOrder(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	first := bus.Subscribe(EventTypeMarkerAdded)
	second := bus.Subscribe(EventTypeMarkerAdded)

	bus.Publish(Event{Type: EventTypeMarkerAdded, Source: "test"})

	// Both subscribers receive the event; the first registered sees it
	// without waiting on the second.
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("First subscriber did not receive event")
	}
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("Second subscriber did not receive event")
	}
}

func TestEventBusNonBlockingPublish(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventTypeTimeUpdate)

	// Fill the buffer and keep publishing; Publish must not block even
	// though nothing drains the channel.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Type: EventTypeTimeUpdate, Source: "test"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventTypeAnalysisComplete)
	bus.Unsubscribe(EventTypeAnalysisComplete, ch)

	// Channel is closed after unsubscribe
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed after unsubscribe")
	}
}
