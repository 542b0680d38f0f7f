// Package daemon hosts the long-running voxview process. It mounts the
// cross-context bridge, turns inbound load events into import batches, and
// uses flock-based locking to prevent multiple concurrent instances.
package daemon
