// Package logging builds the slog loggers used across voxview and carries
// shared attribute helpers so call sites stay consistent about field names.
package logging
