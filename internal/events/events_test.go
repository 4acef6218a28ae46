package events

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBusFanOut(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx := context.Background()

	first, cancelFirst := bus.Subscribe(ctx)
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe(ctx)
	defer cancelSecond()

	event := Event{Kind: KindStudents, GradeID: "g-2"}
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	for _, ch := range []<-chan Event{first, second} {
		select {
		case got := <-ch:
			if got != event {
				t.Fatalf("expected %+v, got %+v", event, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event")
		}
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected channel to close after context cancel")
	}
	if err := bus.Publish(context.Background(), Event{Kind: KindGrades}); err != nil {
		t.Fatalf("publish after unsubscribe: %v", err)
	}
}

func TestMemoryBusDoesNotBlock(t *testing.T) {
	bus := NewMemoryBus(nil)
	_, cancel := bus.Subscribe(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = bus.Publish(context.Background(), Event{Kind: KindFiles})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publisher blocked on a slow subscriber")
	}
}

func TestMemoryBusCancelReleasesSubscription(t *testing.T) {
	bus := NewMemoryBus(nil)
	ch, cancel := bus.Subscribe(context.Background())
	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected cancel to close the subscription")
	}
	bus.mu.Lock()
	remaining := len(bus.subs)
	bus.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected no subscribers after cancel, got %d", remaining)
	}
}
