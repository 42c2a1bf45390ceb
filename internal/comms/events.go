package comms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/satlink/internal/logging"
)

// EventType classifies link-layer notifications.
type EventType string

const (
	EventConnectionChanged  EventType = "connection_changed"
	EventSatelliteHandoff   EventType = "satellite_handoff"
	EventMessageTransmitted EventType = "message_transmitted"
	EventMessageFailed      EventType = "message_failed"
	EventSOSAlert           EventType = "sos_alert"
	EventSOSCancelled       EventType = "sos_cancelled"
)

// Event is one notification. Payload carries the affected entity
// (connection, message or alert); subscribers must treat it as
// read-only.
type Event struct {
	Type       EventType
	TerminalID string
	At         time.Time
	Payload    any
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

type subscription struct {
	handler Handler
	// types is nil for "all events".
	types map[EventType]struct{}
}

// EventBus is a synchronous publish/subscribe fan-out. Subscriber
// panics are recovered and logged; they never abort delivery to other
// subscribers or propagate to the emitter.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	log    logging.Logger
}

// NewEventBus creates a bus that logs subscriber failures through log.
func NewEventBus(log logging.Logger) *EventBus {
	if log == nil {
		log = logging.Noop()
	}
	return &EventBus{
		subs: make(map[int]*subscription),
		log:  log,
	}
}

// Subscribe registers a handler for the given event types (all types
// when none are given) and returns a subscription id.
func (b *EventBus) Subscribe(h Handler, types ...EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{handler: h}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	b.subs[b.nextID] = sub
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Emit synchronously invokes every matching subscriber.
func (b *EventBus) Emit(e Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[e.Type]; !ok {
				continue
			}
		}
		matched = append(matched, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range matched {
		b.deliver(h, e)
	}
}

func (b *EventBus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(context.Background(), "event subscriber panicked",
				logging.String("event_type", string(e.Type)),
				logging.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	h(e)
}
