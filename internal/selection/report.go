package selection

import (
	"fmt"
	"log/slog"
	"strings"

	"voxview/internal/importer"
	"voxview/internal/logging"
)

// ErrorReport folds a failed batch into one user-facing message, one line
// per failed source named by the innermost entry of its decode lineage.
// Every failure is logged individually before being folded in.
func ErrorReport(logger *slog.Logger, failures []importer.Failure) string {
	if len(failures) == 0 {
		return ""
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d source(s) failed to load:", len(failures)))
	for _, failure := range failures {
		name := failure.InnermostName()
		message := "unknown error"
		if failure.Err != nil {
			message = failure.Err.Error()
		}
		logger.Error("source failed to load",
			logging.String(logging.FieldSource, name),
			logging.Error(failure.Err))
		b.WriteString(fmt.Sprintf("\n- %s: %s", name, message))
	}
	return b.String()
}
