// Package bridge carries the cross-context event bus: an in-process emitter
// with named channels, duplex port pairs for cross-context peers, and the
// handshake protocol that registers ports by peer identity.
package bridge
