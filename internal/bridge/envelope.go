package bridge

import (
	"encoding/json"
	"fmt"

	"voxview/internal/services"
)

// Wire message types understood by the bridge.
const (
	TypeResponseMessagePort = "response-message-port"
	TypeCreatedSegmentation = "created-segmentation"
	TypeSlicing             = "slicing"
	TypeClose               = "close"
	TypeLoad                = "load"
	TypeUnload              = "unload"
	TypeUnselect            = "unselect"
)

// HostReadyMessage is the readiness announcement an embedded bridge posts to
// its parent endpoint instead of waiting for a handshake.
const HostReadyMessage = "volview:LOAD"

// Envelope is the wire form of every bridge message: a type tag plus an
// opaque payload the receiver decodes by type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PortHandshake is the payload of a response-message-port envelope. The two
// fields name the peers on either end of the accompanying port.
type PortHandshake struct {
	Peer1 string `json:"peer1"`
	Peer2 string `json:"peer2"`
}

// CreatedSegmentation is the payload sent back to the embedding pipeline
// when a segmentation has been saved.
type CreatedSegmentation struct {
	PipelineID   string `json:"pipelineId"`
	ManualNodeID string `json:"manualNodeId"`
	OID          string `json:"oid"`
	Labelmap     string `json:"labelmap"`
}

// LoadRequest is the payload of an inbound load envelope. Beyond the sources
// themselves, a sender may carry the session's initial layout and per-axis
// slice indices under the short query-parameter keys.
type LoadRequest struct {
	URLs          []string `json:"urls"`
	Names         []string `json:"names,omitempty"`
	UID           string   `json:"uid,omitempty"`
	Layout        string   `json:"v,omitempty"`
	SliceAxial    *int     `json:"s,omitempty"`
	SliceCoronal  *int     `json:"n,omitempty"`
	SliceSagittal *int     `json:"i,omitempty"`
}

// NewEnvelope encodes a payload into an envelope of the given type.
func NewEnvelope(messageType string, payload any) (Envelope, error) {
	env := Envelope{Type: messageType}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, services.Wrap(services.ErrValidation, "bridge", "encode",
			fmt.Sprintf("encode %s payload", messageType), err)
	}
	env.Payload = raw
	return env, nil
}

// DecodePayload unmarshals an envelope payload into dst.
func DecodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return services.Wrap(services.ErrValidation, "bridge", "decode",
			fmt.Sprintf("%s envelope has no payload", env.Type), nil)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return services.Wrap(services.ErrValidation, "bridge", "decode",
			fmt.Sprintf("decode %s payload", env.Type), err)
	}
	return nil
}
