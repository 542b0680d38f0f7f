package importer

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"voxview/internal/datasource"
	"voxview/internal/services"
)

// instanceInfo is the metadata subset extracted from one DICOM instance.
type instanceInfo struct {
	Modality     string
	StudyUID     string
	SeriesUID    string
	SOPUID       string
	Frames       int
	WindowCenter *float64
	WindowWidth  *float64
	PatientName  string
}

func decodeDICOM(src *datasource.DataSource) (instanceInfo, error) {
	data := src.Bytes()
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return instanceInfo{}, services.Wrap(services.ErrDecode, "importer", "parse dicom", src.Name(), err)
	}

	decoder := charsetDecoder(elementString(ds, tag.SpecificCharacterSet))
	info := instanceInfo{
		Modality:    elementString(ds, tag.Modality),
		StudyUID:    elementString(ds, tag.StudyInstanceUID),
		SeriesUID:   elementString(ds, tag.SeriesInstanceUID),
		SOPUID:      elementString(ds, tag.SOPInstanceUID),
		PatientName: decodeText(decoder, elementString(ds, tag.PatientName)),
	}

	if frames := elementString(ds, tag.NumberOfFrames); frames != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(frames)); err == nil && n > 0 {
			info.Frames = n
		}
	}
	info.WindowCenter = elementFloat(ds, tag.WindowCenter)
	info.WindowWidth = elementFloat(ds, tag.WindowWidth)
	return info, nil
}

func elementString(ds dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	values, ok := el.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

func elementFloat(ds dicom.Dataset, t tag.Tag) *float64 {
	raw := elementString(ds, t)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	return &value
}

// charsetDecoder maps a DICOM Specific Character Set value to a text decoder.
// Unmapped or absent charsets fall through to the identity decoding.
func charsetDecoder(specificCharacterSet string) *encoding.Decoder {
	var cm *charmap.Charmap
	switch strings.TrimSpace(specificCharacterSet) {
	case "ISO_IR 100":
		cm = charmap.ISO8859_1
	case "ISO_IR 101":
		cm = charmap.ISO8859_2
	case "ISO_IR 109":
		cm = charmap.ISO8859_3
	case "ISO_IR 110":
		cm = charmap.ISO8859_4
	case "ISO_IR 144":
		cm = charmap.ISO8859_5
	case "ISO_IR 127":
		cm = charmap.ISO8859_6
	case "ISO_IR 126":
		cm = charmap.ISO8859_7
	case "ISO_IR 138":
		cm = charmap.ISO8859_8
	case "ISO_IR 148":
		cm = charmap.ISO8859_9
	default:
		return nil
	}
	return cm.NewDecoder()
}

func decodeText(decoder *encoding.Decoder, raw string) string {
	if decoder == nil || raw == "" {
		return raw
	}
	decoded, err := decoder.String(raw)
	if err != nil {
		return raw
	}
	return decoded
}
