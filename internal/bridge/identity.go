package bridge

import (
	"encoding/base64"
	"strings"

	"voxview/internal/config"
)

// Peer ID prefixes. A bridge instance identifies itself with PeerPrefix;
// sibling project tabs carry TabProjectPrefix instead.
const (
	PeerPrefix       = "volview-"
	TabProjectPrefix = "tab-project-"
)

// PeerID derives the deterministic local peer identity. Identity sources in
// priority order: project ID, dataset ID, UID, then a base64 encoding of the
// location string when none is configured.
func PeerID(cfg config.Bridge) string {
	for _, candidate := range []string{cfg.ProjectID, cfg.DatasetID, cfg.UID} {
		if candidate != "" {
			return PeerPrefix + candidate
		}
	}
	return PeerPrefix + base64.StdEncoding.EncodeToString([]byte(cfg.Location))
}

// TabProjectPeer maps a local peer ID onto its sibling project-tab peer by
// swapping the identity prefix.
func TabProjectPeer(peerID string) string {
	if suffix, ok := strings.CutPrefix(peerID, PeerPrefix); ok {
		return TabProjectPrefix + suffix
	}
	return TabProjectPrefix + peerID
}

// ComfyPeer names the pipeline peer that receives created-segmentation
// envelopes.
func ComfyPeer(pipelineID string) string {
	return "comfyui-" + pipelineID
}
