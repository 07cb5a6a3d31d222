package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	mapperr "jordanella.com/screen-mapper/internal/errors"
)

func TestEventBus_DeliversInOrder(t *testing.T) {
	bus := NewEventBus(16)

	var (
		mu    sync.Mutex
		ticks []int
	)
	bus.Subscribe(EventTypeFrameCaptured, func(e Event) {
		mu.Lock()
		ticks = append(ticks, e.Data["tick"].(int))
		mu.Unlock()
	})

	for i := 1; i <= 5; i++ {
		bus.Publish(NewFrameCapturedEvent(i, ""))
	}
	bus.Stop()

	if len(ticks) != 5 {
		t.Fatalf("received %d events, want 5", len(ticks))
	}
	for i, tick := range ticks {
		if tick != i+1 {
			t.Errorf("event %d has tick %d", i, tick)
		}
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Stop()

	id := bus.Subscribe(EventTypeError, func(Event) {})
	if bus.GetSubscriberCount(EventTypeError) != 1 {
		t.Fatal("expected one subscriber")
	}
	bus.Unsubscribe(id)
	if bus.GetSubscriberCount(EventTypeError) != 0 {
		t.Error("subscriber not removed")
	}
}

func TestEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewEventBus(4)

	done := make(chan struct{})
	bus.Subscribe(EventTypeError, func(Event) { panic("boom") })
	bus.Subscribe(EventTypeError, func(Event) { close(done) })

	bus.Publish(NewErrorEvent("test", "failed", errors.New("cause")))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second handler never ran")
	}
	bus.Stop()
}

func TestEventBus_PublishAfterStop(t *testing.T) {
	bus := NewEventBus(4)
	called := false
	bus.Subscribe(EventTypeSessionStopped, func(Event) { called = true })

	bus.Stop()
	bus.Stop()
	bus.Publish(NewSessionStoppedEvent("folder", 3))

	if called {
		t.Error("handler called after Stop")
	}
}

func TestNewErrorEvent(t *testing.T) {
	e := NewErrorEvent("capture", "tick failed", errors.New("disk full"))
	if e.Data["error"] != "disk full" || e.Data["message"] != "tick failed" {
		t.Errorf("data = %v", e.Data)
	}
	if _, ok := e.Data["code"]; ok {
		t.Error("plain errors carry no code")
	}
	coded := NewErrorEvent("capture", "tick failed", mapperr.NewCaptureFailed(errors.New("asleep")))
	if coded.Data["code"] != "CAPTURE_FAILED" {
		t.Errorf("code = %v", coded.Data["code"])
	}
	if _, ok := NewErrorEvent("capture", "no cause", nil).Data["error"]; ok {
		t.Error("nil error should not be recorded")
	}
}
