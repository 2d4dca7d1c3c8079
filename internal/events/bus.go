package events

import (
	"sync"
)

// Kind identifies a notification sent to the shell
type Kind string

const (
	KindSaved   Kind = "clip-saved"
	KindDeleted Kind = "clip-deleted"
	KindFailed  Kind = "clip-failed"
)

// Event is a notification delivered to listeners.
// RecordID is set for deleted events and, informationally, for saved events.
type Event struct {
	Kind     Kind
	RecordID int64
	Err      error
}

// Handler receives events
type Handler func(Event)

// Emitter publishes events
type Emitter interface {
	Emit(Event)
}

// Bus fans events out to subscribed handlers
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all future events
func (b *Bus) Subscribe(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit delivers the event synchronously to every handler in subscription order
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Discard is an Emitter that drops everything
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}
