package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"voxview/internal/config"
	"voxview/internal/logging"
	"voxview/internal/services"
)

// SegmentationSaved is the local event payload on the savesegmentation
// channel; the bridge repackages it with the configured pipeline identity
// before it leaves the process.
type SegmentationSaved struct {
	OID      string `json:"oid"`
	Labelmap string `json:"labelmap"`
}

// Bridge connects the in-process emitter to external peers over port pairs.
// One bridge instance exists per mount; Unmount tears down every
// subscription and port it owns.
type Bridge struct {
	cfg    config.Bridge
	peerID string

	emitter *Emitter
	logger  *slog.Logger

	mu     sync.Mutex
	ports  map[string]*Port
	parent *Port

	hostReady chan struct{}
	readyOnce sync.Once

	unsubscribes []func()
	mounted      bool
}

// Option customizes bridge construction.
type Option func(*Bridge)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithParent attaches the embedding host endpoint. A bridge with a parent
// runs in host mode: it announces readiness instead of waiting for a
// handshake.
func WithParent(parent *Port) Option {
	return func(b *Bridge) { b.parent = parent }
}

// New constructs an unmounted bridge.
func New(cfg *config.Config, emitter *Emitter, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:       cfg.Bridge,
		peerID:    PeerID(cfg.Bridge),
		emitter:   emitter,
		logger:    logging.NewNop(),
		ports:     make(map[string]*Port),
		hostReady: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.WithComponent(b.logger, "bridge").
		With(logging.String(logging.FieldPeer, b.peerID))
	return b
}

// PeerID returns the local peer identity.
func (b *Bridge) PeerID() string { return b.peerID }

// Mount installs the outbound channel handlers and, in host mode, announces
// readiness to the parent endpoint.
func (b *Bridge) Mount() {
	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return
	}
	b.mounted = true
	parent := b.parent
	b.mu.Unlock()

	b.subscribe(ChannelSaveSegmentation, b.forwardSegmentation)
	b.subscribe(ChannelSlicing, func(payload []byte) {
		b.forwardToProjectTab(TypeSlicing, payload)
	})
	b.subscribe(ChannelClose, func([]byte) {
		b.forwardToProjectTab(TypeClose, nil)
	})

	if parent != nil {
		if err := parent.Post(Envelope{Type: HostReadyMessage}); err != nil {
			b.logger.Warn("readiness announcement failed", logging.Error(err))
		}
		b.SetHostReady()
	}
}

// Unmount removes every handler Mount installed and closes all owned ports.
func (b *Bridge) Unmount() {
	b.mu.Lock()
	if !b.mounted {
		b.mu.Unlock()
		return
	}
	b.mounted = false
	unsubscribes := b.unsubscribes
	b.unsubscribes = nil
	ports := b.ports
	b.ports = make(map[string]*Port)
	b.mu.Unlock()

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	for _, port := range ports {
		port.Close()
	}
}

func (b *Bridge) subscribe(channel Channel, handler Handler) {
	unsubscribe := b.emitter.Subscribe(channel, handler)
	b.mu.Lock()
	b.unsubscribes = append(b.unsubscribes, unsubscribe)
	b.mu.Unlock()
}

// AcceptHandshake consumes a response-message-port envelope and its
// accompanying port endpoint. The port is stored keyed by the other peer's
// ID; inbound load, unload, and unselect messages are translated onto the
// emitter, and closing the port removes only this side's registry entry.
func (b *Bridge) AcceptHandshake(env Envelope, port *Port) error {
	if env.Type != TypeResponseMessagePort {
		return services.Wrap(services.ErrValidation, "bridge", "handshake",
			"unexpected envelope type "+env.Type, nil)
	}
	var handshake PortHandshake
	if err := DecodePayload(env, &handshake); err != nil {
		return err
	}

	var other string
	switch b.peerID {
	case handshake.Peer1:
		other = handshake.Peer2
	case handshake.Peer2:
		other = handshake.Peer1
	default:
		return services.Wrap(services.ErrValidation, "bridge", "handshake",
			"neither handshake peer matches this bridge", nil)
	}

	b.mu.Lock()
	b.ports[other] = port
	b.mu.Unlock()

	port.OnClose(func() {
		b.mu.Lock()
		delete(b.ports, other)
		b.mu.Unlock()
	})
	port.OnMessage(func(inbound Envelope) {
		b.dispatchInbound(other, inbound)
	})

	b.logger.Info("peer port registered", logging.String("remotePeer", other))
	return nil
}

func (b *Bridge) dispatchInbound(from string, env Envelope) {
	switch env.Type {
	case TypeLoad:
		b.emitter.Emit(ChannelLoad, env.Payload)
	case TypeUnload:
		b.emitter.Emit(ChannelUnload, env.Payload)
	case TypeUnselect:
		b.emitter.Emit(ChannelUnselect, env.Payload)
	default:
		b.logger.Debug("ignoring inbound message",
			logging.String("remotePeer", from),
			logging.String(logging.FieldEventType, env.Type))
	}
}

// PeerPort returns the registered port for a peer ID.
func (b *Bridge) PeerPort(peerID string) (*Port, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	port, ok := b.ports[peerID]
	return port, ok
}

func (b *Bridge) forwardSegmentation(payload []byte) {
	if b.cfg.PipelineID == "" || b.cfg.ManualNodeID == "" {
		b.logger.Debug("segmentation event dropped, no pipeline identity")
		return
	}
	var saved SegmentationSaved
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &saved); err != nil {
			b.logger.Warn("malformed segmentation payload", logging.Error(err))
			return
		}
	}
	env, err := NewEnvelope(TypeCreatedSegmentation, CreatedSegmentation{
		PipelineID:   b.cfg.PipelineID,
		ManualNodeID: b.cfg.ManualNodeID,
		OID:          saved.OID,
		Labelmap:     saved.Labelmap,
	})
	if err != nil {
		b.logger.Warn("segmentation envelope failed", logging.Error(err))
		return
	}

	if port, ok := b.PeerPort(ComfyPeer(b.cfg.PipelineID)); ok {
		if err := port.Post(env); err != nil {
			b.logger.Warn("segmentation forward failed", logging.Error(err))
		}
		return
	}
	b.mu.Lock()
	parent := b.parent
	b.mu.Unlock()
	if parent == nil {
		b.logger.Warn("segmentation event dropped, no pipeline port or parent")
		return
	}
	if err := parent.Post(env); err != nil {
		b.logger.Warn("segmentation forward failed", logging.Error(err))
	}
}

func (b *Bridge) forwardToProjectTab(messageType string, payload []byte) {
	target := TabProjectPeer(b.peerID)
	port, ok := b.PeerPort(target)
	if !ok {
		b.logger.Debug("no project tab port",
			logging.String("remotePeer", target),
			logging.String(logging.FieldEventType, messageType))
		return
	}
	env := Envelope{Type: messageType, Payload: payload}
	if err := port.Post(env); err != nil {
		b.logger.Warn("project tab forward failed", logging.Error(err))
	}
}

// SetHostReady marks the embedding host as ready. Idempotent.
func (b *Bridge) SetHostReady() {
	b.readyOnce.Do(func() { close(b.hostReady) })
}

// WaitForHost blocks until the host signals readiness, the context is
// cancelled, or the configured timeout elapses. A zero timeout waits until
// the bridge is torn down.
func (b *Bridge) WaitForHost(ctx context.Context) error {
	var timeout <-chan time.Time
	if b.cfg.HostReadyTimeout > 0 {
		timer := time.NewTimer(time.Duration(b.cfg.HostReadyTimeout) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-b.hostReady:
		return nil
	case <-timeout:
		return services.Wrap(services.ErrTimeout, "bridge", "wait", "host never signalled readiness", nil)
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "bridge", "wait", "wait cancelled", ctx.Err())
	}
}
