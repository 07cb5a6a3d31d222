package logging

import (
	"fmt"

	"jordanella.com/screen-mapper/internal/events"
)

// EventLogger subscribes to the event bus and logs every event
type EventLogger struct {
	logger        *Logger
	eventBus      events.EventBus
	subscriptions []events.SubscriptionID
}

// NewEventLogger logs all events published on eventBus through logger
func NewEventLogger(eventBus events.EventBus, logger *Logger) *EventLogger {
	el := &EventLogger{
		logger:   logger,
		eventBus: eventBus,
	}

	for _, eventType := range events.AllEventTypes() {
		el.subscriptions = append(el.subscriptions, eventBus.Subscribe(eventType, el.handleEvent))
	}
	return el
}

// handleEvent handles incoming events and logs them
func (el *EventLogger) handleEvent(event events.Event) {
	context := map[string]interface{}{
		"source": event.Source,
	}
	for k, v := range event.Data {
		// Reports are logged by the capture sinks
		if k == "report" {
			continue
		}
		context[k] = v
	}

	message := fmt.Sprintf("Event: %s", event.Type)
	switch event.Type {
	case events.EventTypeError:
		el.logger.WarnWithContext(message, context)
	case events.EventTypeFrameCaptured, events.EventTypeFrameAnalyzed:
		el.logger.DebugWithContext(message, context)
	default:
		el.logger.InfoWithContext(message, context)
	}
}

// Close unsubscribes from the bus
func (el *EventLogger) Close() {
	for _, id := range el.subscriptions {
		el.eventBus.Unsubscribe(id)
	}
	el.subscriptions = nil
}
