// Package notifications delivers load progress toasts, backed by ntfy when
// configured and a noop implementation otherwise.
package notifications
