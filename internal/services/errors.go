package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecode marks a per-source decode failure. Isolated: siblings in the
	// same batch keep going.
	ErrDecode = errors.New("decode error")
	// ErrRemoteFetch marks a failed remote retrieval (URI or DICOM-web).
	ErrRemoteFetch = errors.New("remote fetch error")
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing expected data; fatal for the operation.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks an exhausted wait budget.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error should abort the whole operation rather
// than be folded into a per-source aggregate.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
