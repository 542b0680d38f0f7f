// Package config loads, validates, and normalizes voxview configuration
// from TOML files, providing defaults for every subsystem.
package config
