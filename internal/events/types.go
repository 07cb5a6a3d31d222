package events

import (
	"time"

	mapperr "jordanella.com/screen-mapper/internal/errors"
)

// EventType represents different types of events in the system
type EventType string

const (
	// Capture session events
	EventTypeSessionStarted EventType = "session.started"
	EventTypeSessionStopped EventType = "session.stopped"

	// Per-tick events
	EventTypeFrameCaptured EventType = "frame.captured"
	EventTypeFrameAnalyzed EventType = "frame.analyzed"

	// Library events
	EventTypeLibrarySaved EventType = "library.saved"

	// Error events
	EventTypeError EventType = "error"
)

// AllEventTypes lists every event type, for subscribers that want everything
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeSessionStarted,
		EventTypeSessionStopped,
		EventTypeFrameCaptured,
		EventTypeFrameAnalyzed,
		EventTypeLibrarySaved,
		EventTypeError,
	}
}

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted event (e.g., "capture", "gui")
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish sends an event to all subscribers (blocking until queued)
	Publish(event Event)

	// PublishAsync sends an event asynchronously (non-blocking)
	PublishAsync(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// Helper functions to create common events

// NewSessionStartedEvent creates a session started event
func NewSessionStartedEvent(folder string, period time.Duration, analyzing bool) Event {
	return Event{
		Type:      EventTypeSessionStarted,
		Source:    "capture",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"folder":    folder,
			"period_ms": period.Milliseconds(),
			"analyzing": analyzing,
		},
	}
}

// NewSessionStoppedEvent creates a session stopped event
func NewSessionStoppedEvent(folder string, ticks int) Event {
	return Event{
		Type:      EventTypeSessionStopped,
		Source:    "capture",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"folder": folder,
			"ticks":  ticks,
		},
	}
}

// NewFrameCapturedEvent creates a frame captured event. path is empty when frames are not saved.
func NewFrameCapturedEvent(tick int, path string) Event {
	return Event{
		Type:      EventTypeFrameCaptured,
		Source:    "capture",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"tick": tick,
			"path": path,
		},
	}
}

// NewFrameAnalyzedEvent creates a frame analyzed event carrying the tick's report
func NewFrameAnalyzedEvent(tick int, failures int, report interface{}) Event {
	return Event{
		Type:      EventTypeFrameAnalyzed,
		Source:    "capture",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"tick":     tick,
			"failures": failures,
			"report":   report,
		},
	}
}

// NewLibrarySavedEvent creates a library saved event
func NewLibrarySavedEvent(path string, rules int) Event {
	return Event{
		Type:      EventTypeLibrarySaved,
		Source:    "library",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"path":  path,
			"rules": rules,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, message string, err error) Event {
	data := map[string]interface{}{
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
		if code := mapperr.CodeOf(err); code != "" {
			data["code"] = string(code)
		}
	}

	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
