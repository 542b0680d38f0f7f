package importer

import (
	"voxview/internal/catalog"
	"voxview/internal/datasource"
)

// LoadableResult is a successfully decoded dataset.
type LoadableResult struct {
	DataType catalog.DataType
	DataID   string
	Source   *datasource.DataSource
}

// IsVolume reports whether the result can become a primary selection.
func (r LoadableResult) IsVolume() bool {
	return r.DataType == catalog.DataTypeImage || r.DataType == catalog.DataTypeDICOM
}

// Failure records one source that could not be decoded, with the lineage
// needed to name the nested file that caused it.
type Failure struct {
	Source *datasource.DataSource
	Err    error
}

// InnermostName names the deepest lineage entry for error reporting.
func (f Failure) InnermostName() string {
	if f.Source == nil {
		return "<unknown>"
	}
	lineage := f.Source.Lineage()
	if len(lineage) == 0 {
		return f.Source.Name()
	}
	return lineage[0].Name()
}

// Batch partitions one ImportBatch call into successes and failures.
type Batch struct {
	Succeeded []LoadableResult
	Errored   []Failure
}
