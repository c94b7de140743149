package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	Payload() interface{}
}

type BaseEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func (e BaseEvent) Payload() interface{} {
	return e.Data
}

type Handler func(ctx context.Context, event Event) error

type EventBus struct {
	handlers      map[string][]Handler
	watchers      map[string]map[uint64]func(Event)
	nextWatcherID uint64
	logger        *slog.Logger
	mu            sync.RWMutex
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		watchers: make(map[string]map[uint64]func(Event)),
		logger:   logger,
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Info("event handler registered",
		"event_type", eventType,
		"total_handlers", len(eb.handlers[eventType]))
}

func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	eb.notifyWatchers(event)

	eb.mu.RLock()
	handlers, exists := eb.handlers[event.EventType()]
	eb.mu.RUnlock()

	if !exists || len(handlers) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}

	eb.logger.Info("publishing event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"handlers_count", len(handlers))

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				eb.logger.Error("event handler failed",
					"event_type", event.EventType(),
					"event_id", event.EventID(),
					"error", err)
			}
		}(handler)
	}

	return nil
}

func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	eb.notifyWatchers(event)

	eb.mu.RLock()
	handlers, exists := eb.handlers[event.EventType()]
	eb.mu.RUnlock()

	if !exists || len(handlers) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}

	eb.logger.Info("publishing event synchronously",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"handlers_count", len(handlers))

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			eb.logger.Error("event handler failed",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
			return fmt.Errorf("handler failed for event %s: %w", event.EventType(), err)
		}
	}

	return nil
}

// Watch registers a channel-backed observer for eventType. Events are
// delivered without blocking the publisher; when the buffer is full the event
// is dropped for that watcher. The returned cancel func stops delivery and
// closes the channel.
func (eb *EventBus) Watch(eventType string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	var once sync.Once
	var closed bool
	var chMu sync.Mutex

	eb.mu.Lock()
	id := eb.nextWatcherID
	eb.nextWatcherID++
	if eb.watchers == nil {
		eb.watchers = make(map[string]map[uint64]func(Event))
	}
	if eb.watchers[eventType] == nil {
		eb.watchers[eventType] = make(map[uint64]func(Event))
	}
	eb.watchers[eventType][id] = func(e Event) {
		chMu.Lock()
		defer chMu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			eb.logger.Warn("watcher buffer full, dropping event",
				"event_type", e.EventType(),
				"event_id", e.EventID())
		}
	}
	eb.mu.Unlock()

	cancel := func() {
		once.Do(func() {
			eb.mu.Lock()
			delete(eb.watchers[eventType], id)
			eb.mu.Unlock()

			chMu.Lock()
			closed = true
			close(ch)
			chMu.Unlock()
		})
	}
	return ch, cancel
}

func (eb *EventBus) notifyWatchers(event Event) {
	eb.mu.RLock()
	deliver := make([]func(Event), 0, len(eb.watchers[event.EventType()]))
	for _, fn := range eb.watchers[event.EventType()] {
		deliver = append(deliver, fn)
	}
	eb.mu.RUnlock()

	for _, fn := range deliver {
		fn(event)
	}
}
