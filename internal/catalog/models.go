package catalog

import "strings"

// DataType classifies a decoded dataset.
type DataType string

const (
	DataTypeImage DataType = "image"
	DataTypeDICOM DataType = "dicom"
	DataTypeModel DataType = "model"
)

// VolumeRecord is the catalog row for one decoded dataset. SliceCount and the
// window tags are pointers because the originating data may omit them; an
// absent slice count ranks below any known count during selection.
type VolumeRecord struct {
	DataID       string
	Name         string
	DataType     DataType
	Modality     string
	StudyUID     string
	SeriesUID    string
	SliceCount   *int
	WindowCenter *float64
	WindowWidth  *float64
	PatientName  string
}

// IsVolume reports whether the record can become a primary selection.
func (r VolumeRecord) IsVolume() bool {
	return r.DataType == DataTypeImage || r.DataType == DataTypeDICOM
}

// TrimmedModality returns the modality with surrounding whitespace removed;
// DICOM CS values are commonly space padded.
func (r VolumeRecord) TrimmedModality() string {
	return strings.TrimSpace(r.Modality)
}
