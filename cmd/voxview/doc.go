// Package main hosts the voxview CLI entrypoint and command graph.
//
// The Cobra-based command tree covers batch imports with primary selection,
// DICOM-web retrieval, the long-running bridge host, and configuration
// scaffolding. It centralizes configuration resolution and structured logging
// setup so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
