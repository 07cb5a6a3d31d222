package gui

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"

	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/logging"
)

// UIHandler processes an event on the UI thread
type UIHandler func(events.Event)

// EventBus moves events from the capture goroutines onto the UI thread.
// Events are queued as they arrive and drained every tick through run,
// which is fyne.Do in the application.
type EventBus struct {
	events   chan events.Event
	handlers map[events.EventType][]UIHandler
	all      []UIHandler
	mu       sync.RWMutex

	stopCh   chan struct{}
	stopOnce sync.Once
	run      func(func())
	logger   *logging.Logger

	source        events.EventBus
	subscriptions []events.SubscriptionID
}

// NewEventBus creates a UI event bus with room for size pending events
func NewEventBus(size int, logger *logging.Logger) *EventBus {
	if logger == nil {
		logger = logging.NewLogger("gui")
	}
	return &EventBus{
		events:   make(chan events.Event, size),
		handlers: make(map[events.EventType][]UIHandler),
		stopCh:   make(chan struct{}),
		run:      fyne.Do,
		logger:   logger,
	}
}

// Bind forwards every event published on source to this bus
func (eb *EventBus) Bind(source events.EventBus) {
	eb.source = source
	for _, eventType := range events.AllEventTypes() {
		eb.subscriptions = append(eb.subscriptions, source.Subscribe(eventType, eb.Publish))
	}
}

// Subscribe registers a handler for one event type
func (eb *EventBus) Subscribe(eventType events.EventType, handler UIHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event
func (eb *EventBus) SubscribeAll(handler UIHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.all = append(eb.all, handler)
}

// Publish queues an event. A full queue drops the event.
func (eb *EventBus) Publish(event events.Event) {
	select {
	case eb.events <- event:
	case <-eb.stopCh:
	default:
		eb.logger.WarnWithContext("UI event queue full, dropping event", map[string]interface{}{
			"type": string(event.Type),
		})
	}
}

// Start drains the queue every interval until Stop
func (eb *EventBus) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				eb.Drain()
			case <-eb.stopCh:
				return
			}
		}
	}()
}

// Drain dispatches every queued event and returns how many there were
func (eb *EventBus) Drain() int {
	n := 0
	for {
		select {
		case event := <-eb.events:
			eb.dispatch(event)
			n++
		default:
			return n
		}
	}
}

// Stop detaches from the source bus and ends the drain loop
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		if eb.source != nil {
			for _, id := range eb.subscriptions {
				eb.source.Unsubscribe(id)
			}
			eb.subscriptions = nil
		}
		close(eb.stopCh)
	})
}

func (eb *EventBus) dispatch(event events.Event) {
	eb.mu.RLock()
	handlers := make([]UIHandler, 0, len(eb.all)+len(eb.handlers[event.Type]))
	handlers = append(handlers, eb.all...)
	handlers = append(handlers, eb.handlers[event.Type]...)
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	eb.run(func() {
		for _, handler := range handlers {
			handler(event)
		}
	})
}
