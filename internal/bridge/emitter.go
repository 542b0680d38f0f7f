package bridge

import "sync"

// Channel names a logical event stream multiplexed over the bridge.
type Channel string

const (
	ChannelLoad             Channel = "load"
	ChannelUnload           Channel = "unload"
	ChannelUnselect         Channel = "unselect"
	ChannelSaveSegmentation Channel = "savesegmentation"
	ChannelSlicing          Channel = "slicing"
	ChannelClose            Channel = "close"
)

// Handler consumes one event on a channel.
type Handler func(payload []byte)

// Emitter is the in-process side of the bus: named channels with symmetric
// subscribe/unsubscribe so a remounted bridge never leaks handlers.
type Emitter struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Channel]map[int]Handler
}

// NewEmitter builds an emitter with no subscriptions.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[Channel]map[int]Handler)}
}

// Subscribe registers a handler and returns the function that removes
// exactly that registration.
func (e *Emitter) Subscribe(channel Channel, handler Handler) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.handlers[channel] == nil {
		e.handlers[channel] = make(map[int]Handler)
	}
	e.handlers[channel][id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers[channel], id)
	}
}

// Emit delivers a payload to every handler currently subscribed to the
// channel. Delivery is synchronous and in no particular order.
func (e *Emitter) Emit(channel Channel, payload []byte) {
	e.mu.Lock()
	handlers := make([]Handler, 0, len(e.handlers[channel]))
	for _, handler := range e.handlers[channel] {
		handlers = append(handlers, handler)
	}
	e.mu.Unlock()

	for _, handler := range handlers {
		handler(payload)
	}
}

// SubscriberCount reports how many handlers a channel currently has.
func (e *Emitter) SubscriberCount(channel Channel) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[channel])
}
