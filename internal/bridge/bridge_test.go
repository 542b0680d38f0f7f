package bridge_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"voxview/internal/bridge"
	"voxview/internal/config"
	"voxview/internal/testsupport"
)

func TestPeerIDPriority(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Bridge
		want string
	}{
		{
			name: "project id wins",
			cfg:  config.Bridge{ProjectID: "p1", DatasetID: "d1", UID: "u1"},
			want: "volview-p1",
		},
		{
			name: "dataset id next",
			cfg:  config.Bridge{DatasetID: "d1", UID: "u1"},
			want: "volview-d1",
		},
		{
			name: "uid next",
			cfg:  config.Bridge{UID: "u1"},
			want: "volview-u1",
		},
		{
			name: "location fallback",
			cfg:  config.Bridge{Location: "https://example.test/view"},
			want: "volview-" + base64.StdEncoding.EncodeToString([]byte("https://example.test/view")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bridge.PeerID(tt.cfg); got != tt.want {
				t.Fatalf("PeerID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTabProjectPeerSwapsPrefix(t *testing.T) {
	if got := bridge.TabProjectPeer("volview-p1"); got != "tab-project-p1" {
		t.Fatalf("TabProjectPeer = %q", got)
	}
}

func newBridge(t *testing.T, mutate func(*config.Config)) (*bridge.Bridge, *bridge.Emitter) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	emitter := bridge.NewEmitter()
	b := bridge.New(cfg, emitter)
	t.Cleanup(b.Unmount)
	return b, emitter
}

func handshakeEnvelope(t *testing.T, peer1, peer2 string) bridge.Envelope {
	t.Helper()
	env, err := bridge.NewEnvelope(bridge.TypeResponseMessagePort,
		bridge.PortHandshake{Peer1: peer1, Peer2: peer2})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func TestHandshakeRegistersPortByOtherPeer(t *testing.T) {
	a, _ := newBridge(t, func(c *config.Config) { c.Bridge.ProjectID = "a" })
	b, _ := newBridge(t, func(c *config.Config) { c.Bridge.ProjectID = "b" })

	env := handshakeEnvelope(t, a.PeerID(), b.PeerID())
	endA, endB := bridge.NewPortPair()
	if err := a.AcceptHandshake(env, endA); err != nil {
		t.Fatalf("a handshake: %v", err)
	}
	if err := b.AcceptHandshake(env, endB); err != nil {
		t.Fatalf("b handshake: %v", err)
	}

	if _, ok := a.PeerPort(b.PeerID()); !ok {
		t.Fatal("a should key the port by b's ID")
	}
	if _, ok := b.PeerPort(a.PeerID()); !ok {
		t.Fatal("b should key the port by a's ID")
	}

	endA.Close()
	if _, ok := a.PeerPort(b.PeerID()); ok {
		t.Fatal("closing a's end should remove a's entry")
	}
	if _, ok := b.PeerPort(a.PeerID()); !ok {
		t.Fatal("closing a's end must not touch b's entry")
	}
}

func TestHandshakeRejectsForeignPeers(t *testing.T) {
	a, _ := newBridge(t, func(c *config.Config) { c.Bridge.ProjectID = "a" })

	env := handshakeEnvelope(t, "volview-x", "volview-y")
	endA, _ := bridge.NewPortPair()
	if err := a.AcceptHandshake(env, endA); err == nil {
		t.Fatal("expected rejection when neither peer matches")
	}
}

func TestInboundMessagesTranslateToEmitter(t *testing.T) {
	a, emitter := newBridge(t, func(c *config.Config) { c.Bridge.ProjectID = "a" })

	var loads [][]byte
	unsubscribe := emitter.Subscribe(bridge.ChannelLoad, func(payload []byte) {
		loads = append(loads, payload)
	})
	defer unsubscribe()

	env := handshakeEnvelope(t, a.PeerID(), "volview-host")
	endA, endHost := bridge.NewPortPair()
	if err := a.AcceptHandshake(env, endA); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	loadEnv, err := bridge.NewEnvelope(bridge.TypeLoad,
		bridge.LoadRequest{URLs: []string{"https://example.test/scan.nii"}})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := endHost.Post(loadEnv); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if err := endHost.Post(bridge.Envelope{Type: "telemetry"}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if len(loads) != 1 {
		t.Fatalf("load events = %d, want 1 (unknown types ignored)", len(loads))
	}
	var request bridge.LoadRequest
	if err := json.Unmarshal(loads[0], &request); err != nil {
		t.Fatalf("decode load payload: %v", err)
	}
	if len(request.URLs) != 1 || request.URLs[0] != "https://example.test/scan.nii" {
		t.Fatalf("load payload = %+v", request)
	}
}

func TestSegmentationRoutesThroughPipelinePort(t *testing.T) {
	a, emitter := newBridge(t, func(c *config.Config) {
		c.Bridge.ProjectID = "a"
		c.Bridge.PipelineID = "pipe-7"
		c.Bridge.ManualNodeID = "node-3"
	})
	a.Mount()

	env := handshakeEnvelope(t, a.PeerID(), bridge.ComfyPeer("pipe-7"))
	endA, endComfy := bridge.NewPortPair()
	if err := a.AcceptHandshake(env, endA); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	var received []bridge.Envelope
	endComfy.OnMessage(func(env bridge.Envelope) { received = append(received, env) })

	payload, _ := json.Marshal(bridge.SegmentationSaved{OID: "oid-1", Labelmap: "lm-1"})
	emitter.Emit(bridge.ChannelSaveSegmentation, payload)

	if len(received) != 1 || received[0].Type != bridge.TypeCreatedSegmentation {
		t.Fatalf("pipeline port received %+v", received)
	}
	var created bridge.CreatedSegmentation
	if err := bridge.DecodePayload(received[0], &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := bridge.CreatedSegmentation{
		PipelineID: "pipe-7", ManualNodeID: "node-3", OID: "oid-1", Labelmap: "lm-1",
	}
	if created != want {
		t.Fatalf("created = %+v, want %+v", created, want)
	}
}

func TestSegmentationFallsBackToParent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Bridge.ProjectID = "a"
	cfg.Bridge.PipelineID = "pipe-7"
	cfg.Bridge.ManualNodeID = "node-3"

	emitter := bridge.NewEmitter()
	local, remote := bridge.NewPortPair()
	b := bridge.New(cfg, emitter, bridge.WithParent(local))
	t.Cleanup(b.Unmount)

	var received []bridge.Envelope
	remote.OnMessage(func(env bridge.Envelope) { received = append(received, env) })
	b.Mount()

	payload, _ := json.Marshal(bridge.SegmentationSaved{OID: "oid-1"})
	emitter.Emit(bridge.ChannelSaveSegmentation, payload)

	// The readiness announcement arrives first in host mode.
	if len(received) != 2 {
		t.Fatalf("parent received %d envelopes, want 2", len(received))
	}
	if received[0].Type != bridge.HostReadyMessage {
		t.Fatalf("first envelope = %q, want readiness announcement", received[0].Type)
	}
	if received[1].Type != bridge.TypeCreatedSegmentation {
		t.Fatalf("second envelope = %q", received[1].Type)
	}
}

func TestSlicingTargetsProjectTabPeer(t *testing.T) {
	a, emitter := newBridge(t, func(c *config.Config) { c.Bridge.ProjectID = "a" })
	a.Mount()

	env := handshakeEnvelope(t, a.PeerID(), bridge.TabProjectPeer(a.PeerID()))
	endA, endTab := bridge.NewPortPair()
	if err := a.AcceptHandshake(env, endA); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	var received []bridge.Envelope
	endTab.OnMessage(func(env bridge.Envelope) { received = append(received, env) })

	emitter.Emit(bridge.ChannelSlicing, []byte(`{"axial":12}`))
	emitter.Emit(bridge.ChannelClose, nil)

	if len(received) != 2 {
		t.Fatalf("project tab received %d envelopes, want 2", len(received))
	}
	if received[0].Type != bridge.TypeSlicing || received[1].Type != bridge.TypeClose {
		t.Fatalf("envelope types = %q, %q", received[0].Type, received[1].Type)
	}
}

func TestHostModeSignalsReadiness(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Bridge.ProjectID = "a"

	local, remote := bridge.NewPortPair()
	var received []bridge.Envelope
	remote.OnMessage(func(env bridge.Envelope) { received = append(received, env) })

	b := bridge.New(cfg, bridge.NewEmitter(), bridge.WithParent(local))
	t.Cleanup(b.Unmount)
	b.Mount()

	if len(received) != 1 || received[0].Type != bridge.HostReadyMessage {
		t.Fatalf("parent received %+v", received)
	}
	if err := b.WaitForHost(context.Background()); err != nil {
		t.Fatalf("WaitForHost after host mode mount: %v", err)
	}
}

func TestWaitForHostCancellable(t *testing.T) {
	b, _ := newBridge(t, func(c *config.Config) { c.Bridge.ProjectID = "a" })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.WaitForHost(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}

	b.SetHostReady()
	b.SetHostReady()
	if err := b.WaitForHost(context.Background()); err != nil {
		t.Fatalf("WaitForHost after SetHostReady: %v", err)
	}
}

func TestUnmountRemovesSubscriptionsAndPorts(t *testing.T) {
	a, emitter := newBridge(t, func(c *config.Config) { c.Bridge.ProjectID = "a" })
	a.Mount()

	if emitter.SubscriberCount(bridge.ChannelSlicing) != 1 {
		t.Fatal("mount should subscribe slicing")
	}

	env := handshakeEnvelope(t, a.PeerID(), "volview-host")
	endA, _ := bridge.NewPortPair()
	if err := a.AcceptHandshake(env, endA); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	a.Unmount()
	if emitter.SubscriberCount(bridge.ChannelSlicing) != 0 {
		t.Fatal("unmount should remove subscriptions")
	}
	if !endA.Closed() {
		t.Fatal("unmount should close owned ports")
	}
}
