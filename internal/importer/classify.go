package importer

import (
	"bytes"

	"voxview/internal/catalog"
)

// format is the sniffed content family of a source. Classification inspects
// decoded content, never the file extension; the segmentation name heuristic
// applied later during selection is the one deliberate exception.
type format int

const (
	formatUnknown format = iota
	formatDICOM
	formatNIfTI
	formatNRRD
	formatSTL
	formatOBJ
)

func (f format) dataType() catalog.DataType {
	switch f {
	case formatDICOM:
		return catalog.DataTypeDICOM
	case formatNIfTI, formatNRRD:
		return catalog.DataTypeImage
	case formatSTL, formatOBJ:
		return catalog.DataTypeModel
	default:
		return ""
	}
}

const dicomPreambleLength = 128

func sniff(data []byte) format {
	switch {
	case isDICOM(data):
		return formatDICOM
	case isNIfTI(data):
		return formatNIfTI
	case bytes.HasPrefix(data, []byte("NRRD00")):
		return formatNRRD
	case isSTL(data):
		return formatSTL
	case isOBJ(data):
		return formatOBJ
	default:
		return formatUnknown
	}
}

func isDICOM(data []byte) bool {
	return len(data) > dicomPreambleLength+4 &&
		bytes.Equal(data[dicomPreambleLength:dicomPreambleLength+4], []byte("DICM"))
}

// NIfTI-1 stores its magic at offset 344: "n+1\x00" for single-file images,
// "ni1\x00" for header/data pairs.
func isNIfTI(data []byte) bool {
	if len(data) < 348 {
		return false
	}
	magic := data[344:348]
	return bytes.Equal(magic, []byte("n+1\x00")) || bytes.Equal(magic, []byte("ni1\x00"))
}

func isSTL(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid "))
}

func isOBJ(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	for _, prefix := range [][]byte{[]byte("v "), []byte("# "), []byte("o ")} {
		if bytes.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
