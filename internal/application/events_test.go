// File: internal/application/events_test.go
package application

import (
	"testing"
	"time"
)

func TestEventBus(t *testing.T) {
	t.Run("should deliver events to subscribers with id and timestamp", func(t *testing.T) {
		bus := NewEventBus()
		ch, unsub := bus.Subscribe(4)
		defer unsub()

		bus.Publish(Event{Type: EventAdded, CustomerID: "a"})

		select {
		case ev := <-ch:
			if ev.Type != EventAdded || ev.CustomerID != "a" {
				t.Errorf("unexpected event %+v", ev)
			}
			if ev.ID == "" {
				t.Error("expected a generated event id")
			}
			if ev.At.IsZero() {
				t.Error("expected a timestamp")
			}
		case <-time.After(time.Second):
			t.Fatal("event never arrived")
		}
	})

	t.Run("should not block with zero subscribers", func(t *testing.T) {
		bus := NewEventBus()
		done := make(chan struct{})
		go func() {
			for i := 0; i < 1000; i++ {
				bus.Publish(Event{Type: EventUpdated})
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked without subscribers")
		}
	})

	t.Run("should drop events for a saturated subscriber instead of stalling", func(t *testing.T) {
		bus := NewEventBus()
		_, unsub := bus.Subscribe(1)
		defer unsub()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				bus.Publish(Event{Type: EventError})
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a slow subscriber")
		}
	})

	t.Run("should close subscriber channels on unsubscribe and Close", func(t *testing.T) {
		bus := NewEventBus()
		ch1, unsub1 := bus.Subscribe(1)
		ch2, _ := bus.Subscribe(1)

		unsub1()
		if _, ok := <-ch1; ok {
			t.Error("expected closed channel after unsubscribe")
		}
		unsub1() // second call is a no-op

		bus.Close()
		if _, ok := <-ch2; ok {
			t.Error("expected closed channel after bus close")
		}

		// Publishing after close must not panic.
		bus.Publish(Event{Type: EventRemoved})
	})
}
