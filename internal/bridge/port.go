package bridge

import (
	"sync"

	"voxview/internal/services"
)

// Port is one end of an in-process duplex message channel. Messages posted
// on one end are delivered to the handler installed on the other end;
// messages that arrive before a handler is installed are buffered in order.
type Port struct {
	mu        sync.Mutex
	peer      *Port
	onMessage func(Envelope)
	onClose   func()
	pending   []Envelope
	closed    bool
}

// NewPortPair builds two connected port endpoints.
func NewPortPair() (*Port, *Port) {
	a := &Port{}
	b := &Port{}
	a.peer = b
	b.peer = a
	return a, b
}

// Post sends an envelope to the other end. Posting on a closed port fails;
// envelopes arriving at a closed receiver are dropped.
func (p *Port) Post(env Envelope) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return services.Wrap(services.ErrValidation, "bridge", "post", "port is closed", nil)
	}
	peer := p.peer
	p.mu.Unlock()

	peer.deliver(env)
	return nil
}

func (p *Port) deliver(env Envelope) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.onMessage == nil {
		p.pending = append(p.pending, env)
		p.mu.Unlock()
		return
	}
	handler := p.onMessage
	p.mu.Unlock()
	handler(env)
}

// OnMessage installs the receive handler and flushes any buffered envelopes
// to it in arrival order.
func (p *Port) OnMessage(handler func(Envelope)) {
	p.mu.Lock()
	p.onMessage = handler
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, env := range pending {
		handler(env)
	}
}

// OnClose installs a handler fired when this end is closed. Closing one end
// does not notify the other; each side owns its own teardown.
func (p *Port) OnClose(handler func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClose = handler
}

// Close shuts this end down. Idempotent.
func (p *Port) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	handler := p.onClose
	p.onMessage = nil
	p.pending = nil
	p.mu.Unlock()

	if handler != nil {
		handler()
	}
}

// Closed reports whether this end has been closed.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
